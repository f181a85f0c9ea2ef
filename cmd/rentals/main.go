package main

import (
	"context"
	"time"

	"bikerent/internal/bookings/events"
	bookingshandler "bikerent/internal/bookings/handler"
	bookingsrepo "bikerent/internal/bookings/repository"
	bookingsservice "bikerent/internal/bookings/service"
	bookingsvalidator "bikerent/internal/bookings/validator"
	vehicleshandler "bikerent/internal/vehicles/handler"
	vehiclesrepo "bikerent/internal/vehicles/repository"
	"bikerent/internal/vehicles/seed"
	vehiclesservice "bikerent/internal/vehicles/service"
	vehiclesvalidator "bikerent/internal/vehicles/validator"
	"bikerent/pkg/app"
	"bikerent/pkg/config"
	"bikerent/pkg/kafka"
	kafka_config "bikerent/pkg/kafka/config"
	kafka_middleware "bikerent/pkg/kafka/middleware"
	"bikerent/pkg/metrics"
)

const ServiceName = "rentals"

const seedTimeout = 30 * time.Second

type repositories struct {
	vehicles vehiclesrepo.VehicleRepository
	bookings bookingsrepo.BookingRepository
	locks    bookingsrepo.BookingLockRepository
}

func main() {
	cfg := config.Load(ServiceName)

	m, err := metrics.New(nil)
	if err != nil {
		cfg.Log.Fatal("Failed to register metrics", "error", err)
	}

	repos := initRepositories(cfg)
	seedFleet(cfg, repos.vehicles)

	serverApp := app.NewApplication(cfg, m)
	publisher := initEvents(cfg, m, serverApp)

	bookingService := bookingsservice.NewBookingService(
		repos.bookings,
		repos.locks,
		repos.vehicles,
		bookingsvalidator.NewBookingValidator(cfg.Log),
		publisher,
		m,
		cfg,
	)
	vehicleService := vehiclesservice.NewVehicleService(repos.vehicles, cfg)

	if cfg.KafkaEnabled {
		initCommandConsumer(cfg, m, serverApp, bookingService)
	}

	cfg.Log.Info("Starting Rentals service", "store_backend", cfg.StoreBackend)
	serverApp.SetApp(
		vehicleshandler.NewVehicleHandler(vehicleService, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
	)
	serverApp.Run()
}

func initRepositories(cfg *config.Config) repositories {
	if !cfg.UsesMongo() {
		cfg.Log.Warn("Using in-memory store; bookings are lost on restart and admission is only serialized within this process")
		return repositories{
			vehicles: vehiclesrepo.NewMemoryVehicleRepository(),
			bookings: bookingsrepo.NewMemoryBookingRepository(),
			locks:    bookingsrepo.NewMemoryBookingLockRepository(),
		}
	}

	cfg.SetMongo()
	cfg.Log.Info("Repositories initialized", "database", cfg.MongoDatabaseName)
	return repositories{
		vehicles: vehiclesrepo.NewMongoVehicleRepository(cfg),
		bookings: bookingsrepo.NewMongoBookingRepository(cfg),
		locks:    bookingsrepo.NewMongoBookingLockRepository(cfg),
	}
}

func seedFleet(cfg *config.Config, repo vehiclesrepo.VehicleRepository) {
	if cfg.FleetSeedFile == "" {
		return
	}

	fleet, err := seed.LoadFile(cfg.FleetSeedFile)
	if err != nil {
		cfg.Log.Fatal("Failed to load fleet seed file", "path", cfg.FleetSeedFile, "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	report, err := seed.NewSeeder(repo, vehiclesvalidator.NewVehicleValidator(), cfg.Log).Seed(ctx, fleet)
	if err != nil {
		cfg.Log.Fatal("Failed to seed fleet", "path", cfg.FleetSeedFile, "error", err)
	}
	cfg.Log.Info("Fleet seed applied", "inserted", report.Inserted, "skipped", report.Skipped)
}

func loadKafkaConfig(cfg *config.Config) *kafka_config.Config {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)
	return kafkaCfg
}

func initEvents(cfg *config.Config, m *metrics.Metrics, serverApp *app.Application) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled; booking events are not published")
		return events.NewNoopPublisher()
	}

	kafkaCfg := loadKafkaConfig(cfg)
	topic := cfg.KafkaBookingEventsTopic
	producer, err := kafka.NewProducer(kafkaCfg, topic, kafkaCfg.DLQTopic(topic), cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware(m))
	}
	serverApp.OnShutdown("kafka-producer", producer.Close)

	cfg.Log.Info("Booking events publisher initialized", "topic", topic)
	return events.NewKafkaPublisher(producer, ServiceName)
}

func initCommandConsumer(cfg *config.Config, m *metrics.Metrics, serverApp *app.Application, canceller events.Canceller) {
	kafkaCfg := loadKafkaConfig(cfg)
	topic := cfg.KafkaBookingCommandsTopic
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		topic,
		cfg.KafkaConsumerGroup,
		kafkaCfg.DLQTopic(topic),
		events.CancelCommandHandler(canceller, cfg.Log),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "topic", topic, "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware(m))
	}
	serverApp.AddWorker("booking-commands", consumer)

	cfg.Log.Info("Booking command consumer initialized", "topic", topic, "group", cfg.KafkaConsumerGroup)
}
