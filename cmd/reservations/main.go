package main

import (
	"fleetrental/internal/reservations/cache"
	"fleetrental/internal/reservations/events"
	"fleetrental/internal/reservations/handler"
	"fleetrental/internal/reservations/repository"
	"fleetrental/internal/reservations/service"
	"fleetrental/internal/reservations/validator"
	"fleetrental/pkg/app"
	"fleetrental/pkg/config"
	kafkaconfig "fleetrental/pkg/kafka/config"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Reservations service")
	reservationService, publisher := initServices(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}()

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewReservationHandler(reservationService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) (service.ReservationService, events.Publisher) {
	reservationValidator := validator.NewReservationValidator(cfg.Log)
	reservationRepo := repository.NewMongoReservationRepository(cfg)
	capacityRepo := repository.NewMongoCapacityRepository(cfg)
	lockRepo := repository.NewReservationLockRepository(cfg)
	availabilityCache := cache.New(cfg.Log)
	publisher := initPublisher(cfg)

	reservationService := service.NewReservationService(
		reservationRepo,
		capacityRepo,
		lockRepo,
		reservationValidator,
		availabilityCache,
		publisher,
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService, publisher
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Event publishing disabled")
		return events.NoopPublisher{}
	}

	kafkaCfg := kafkaconfig.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	publisher, err := events.NewKafkaPublisher(kafkaCfg, cfg.ReservationsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "error", err)
	}

	cfg.Log.Info("Event publishing enabled", "topic", cfg.ReservationsTopic)
	return publisher
}
