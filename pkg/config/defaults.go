package config

import "time"

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "bikerent"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultStoreBackend = StoreMongo

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultAdmissionMaxRetries   = 3
	DefaultAdmissionRetryBackoff = 50 * time.Millisecond
	DefaultBookingLockTTL        = 30 * time.Second
	DefaultPriceTolerance        = 1

	DefaultKafkaEnabled              = false
	DefaultKafkaBookingEventsTopic   = "bikerent.booking-events"
	DefaultKafkaBookingCommandsTopic = "bikerent.booking-commands"
	DefaultKafkaConsumerGroup        = "bikerent-rentals"

	DefaultPaginationLimit  = 100
	FallbackPaginationLimit = 10
)
