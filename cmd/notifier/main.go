package main

import (
	"context"
	"os/signal"
	"syscall"

	"fleetrental/pkg/config"
	"fleetrental/pkg/kafka"
	kafkaconfig "fleetrental/pkg/kafka/config"
	"fleetrental/pkg/logger"
	"fleetrental/pkg/model"
)

const (
	ServiceName = "notifier"
	GroupID     = "fleetrental-notifier"
)

// The notifier tails reservation lifecycle events and emits user-facing
// notifications. Delivery is currently a structured log line; swapping in
// a real channel only touches notify.
func main() {
	cfg := config.Load(ServiceName)

	kafkaCfg := kafkaconfig.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.ReservationsTopic, GroupID, notifyHandler(cfg.Log))
	if err != nil {
		cfg.Log.Fatal("Failed to create consumer", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Notifier started", "topic", cfg.ReservationsTopic, "group_id", GroupID)
	if err := consumer.Run(ctx); err != nil {
		cfg.Log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	cfg.Log.Info("Notifier stopped")
}

func notifyHandler(log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var reservation model.Reservation
		if err := msg.DecodeValue(&reservation); err != nil {
			log.Error("Failed to decode reservation event",
				"event_id", msg.GetEventID(),
				"event_type", msg.GetEventType(),
				"error", err,
			)
			return err
		}

		notify(log, msg.GetEventType(), &reservation)
		return nil
	}
}

func notify(log *logger.Logger, eventType string, reservation *model.Reservation) {
	log.Info("Reservation notification",
		"event_type", eventType,
		"reservation_id", reservation.ID,
		"user_id", reservation.UserID,
		"category", reservation.CarType,
		"start_at", reservation.StartAt,
		"days", reservation.Days,
		"status", reservation.Status,
	)
}
