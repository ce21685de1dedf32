package events

import (
	"context"

	"fleetrental/pkg/kafka"
	kafkaconfig "fleetrental/pkg/kafka/config"
	"fleetrental/pkg/model"
)

const (
	SourceService = "reservations"

	EventReservationCreated   = "reservation.created"
	EventReservationUpdated   = "reservation.updated"
	EventReservationCancelled = "reservation.cancelled"
)

// Publisher emits reservation lifecycle events. Publishing is best-effort:
// callers log failures and never fail the originating request over them.
type Publisher interface {
	ReservationCreated(ctx context.Context, reservation *model.Reservation) error
	ReservationUpdated(ctx context.Context, reservation *model.Reservation) error
	ReservationCancelled(ctx context.Context, reservation *model.Reservation) error
	Close() error
}

type kafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(cfg *kafkaconfig.Config, topic string) (Publisher, error) {
	producer, err := kafka.NewProducer(cfg, topic)
	if err != nil {
		return nil, err
	}
	return &kafkaPublisher{producer: producer}, nil
}

func (p *kafkaPublisher) ReservationCreated(ctx context.Context, reservation *model.Reservation) error {
	return p.publish(ctx, EventReservationCreated, reservation)
}

func (p *kafkaPublisher) ReservationUpdated(ctx context.Context, reservation *model.Reservation) error {
	return p.publish(ctx, EventReservationUpdated, reservation)
}

func (p *kafkaPublisher) ReservationCancelled(ctx context.Context, reservation *model.Reservation) error {
	return p.publish(ctx, EventReservationCancelled, reservation)
}

func (p *kafkaPublisher) publish(ctx context.Context, eventType string, reservation *model.Reservation) error {
	msg, err := kafka.NewMessage().
		WithKey(reservation.ID).
		WithValue(reservation).
		WithEventType(eventType).
		WithSource(SourceService).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher is used when event publishing is disabled.
type NoopPublisher struct{}

func (NoopPublisher) ReservationCreated(context.Context, *model.Reservation) error   { return nil }
func (NoopPublisher) ReservationUpdated(context.Context, *model.Reservation) error   { return nil }
func (NoopPublisher) ReservationCancelled(context.Context, *model.Reservation) error { return nil }
func (NoopPublisher) Close() error                                                   { return nil }
