package config

const (
	EnvFile = "ENV_FILE"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvStoreBackend = "STORE_BACKEND"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvJWTSecret = "JWT_SECRET"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvAdmissionMaxRetries   = "ADMISSION_MAX_RETRIES"
	EnvAdmissionRetryBackoff = "ADMISSION_RETRY_BACKOFF"
	EnvBookingLockTTL        = "BOOKING_LOCK_TTL"
	EnvPriceTolerance        = "PRICE_TOLERANCE"

	EnvKafkaEnabled              = "KAFKA_ENABLED"
	EnvKafkaBookingEventsTopic   = "KAFKA_BOOKING_EVENTS_TOPIC"
	EnvKafkaBookingCommandsTopic = "KAFKA_BOOKING_COMMANDS_TOPIC"
	EnvKafkaConsumerGroup        = "KAFKA_CONSUMER_GROUP"

	EnvFleetSeedFile = "FLEET_SEED_FILE"
)
