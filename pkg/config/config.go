package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bikerent/pkg/client"
	"bikerent/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	StoreBackend string

	Port string

	JWTSecret string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	AdmissionMaxRetries   int
	AdmissionRetryBackoff time.Duration
	BookingLockTTL        time.Duration
	PriceTolerance        int64

	KafkaEnabled              bool
	KafkaBookingEventsTopic   string
	KafkaBookingCommandsTopic string
	KafkaConsumerGroup        string

	// FleetSeedFile is a TOML fleet loaded into the catalog at startup.
	FleetSeedFile string

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file, builds the configuration from the
// environment and exits the process when validation fails.
func Load(serviceName string) *Config {
	envFileErr := loadEnvFile()

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
		Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if envFileErr != nil {
		cfg.Log.Warn("Failed to load env file", "error", envFileErr)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables only. Log and Client
// are left unset.
func FromEnv() *Config {
	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		StoreBackend: strings.ToLower(getEnvStr(EnvStoreBackend, DefaultStoreBackend)),

		Port: getEnvStr(EnvPort, DefaultPort),

		JWTSecret: getEnvStr(EnvJWTSecret, ""),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		AdmissionMaxRetries:   getEnvNum(EnvAdmissionMaxRetries, DefaultAdmissionMaxRetries),
		AdmissionRetryBackoff: getEnvDuration(EnvAdmissionRetryBackoff, DefaultAdmissionRetryBackoff),
		BookingLockTTL:        getEnvDuration(EnvBookingLockTTL, DefaultBookingLockTTL),
		PriceTolerance:        int64(getEnvNum(EnvPriceTolerance, DefaultPriceTolerance)),

		KafkaEnabled:              getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaBookingEventsTopic:   getEnvStr(EnvKafkaBookingEventsTopic, DefaultKafkaBookingEventsTopic),
		KafkaBookingCommandsTopic: getEnvStr(EnvKafkaBookingCommandsTopic, DefaultKafkaBookingCommandsTopic),
		KafkaConsumerGroup:        getEnvStr(EnvKafkaConsumerGroup, DefaultKafkaConsumerGroup),

		FleetSeedFile: getEnvStr(EnvFleetSeedFile, ""),
	}
}

// loadEnvFile never overrides variables already present in the process
// environment. A missing default .env is not an error.
func loadEnvFile() error {
	path := os.Getenv(EnvFile)
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) UsesMongo() bool {
	return cfg.StoreBackend == StoreMongo
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreBackend {
	case StoreMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StoreMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be %q or %q, got: %s", StoreMongo, StoreMemory, cfg.StoreBackend))
	}

	if cfg.JWTSecret == "" {
		errors = append(errors, "JWTSecret cannot be empty")
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.AdmissionMaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("AdmissionMaxRetries cannot be negative, got: %d", cfg.AdmissionMaxRetries))
	}
	if cfg.AdmissionRetryBackoff < 0 {
		errors = append(errors, fmt.Sprintf("AdmissionRetryBackoff cannot be negative, got: %s", cfg.AdmissionRetryBackoff))
	}
	if cfg.BookingLockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("BookingLockTTL must be positive, got: %s", cfg.BookingLockTTL))
	}
	if cfg.PriceTolerance < 0 {
		errors = append(errors, fmt.Sprintf("PriceTolerance cannot be negative, got: %d", cfg.PriceTolerance))
	}

	if cfg.KafkaEnabled {
		if cfg.KafkaBookingEventsTopic == "" {
			errors = append(errors, "KafkaBookingEventsTopic cannot be empty when Kafka is enabled")
		}
		if cfg.KafkaBookingCommandsTopic == "" {
			errors = append(errors, "KafkaBookingCommandsTopic cannot be empty when Kafka is enabled")
		}
		if cfg.KafkaConsumerGroup == "" {
			errors = append(errors, "KafkaConsumerGroup cannot be empty when Kafka is enabled")
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_backend", cfg.StoreBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"admission_max_retries", cfg.AdmissionMaxRetries,
		"admission_retry_backoff", cfg.AdmissionRetryBackoff,
		"booking_lock_ttl", cfg.BookingLockTTL,
		"price_tolerance", cfg.PriceTolerance,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_booking_events_topic", cfg.KafkaBookingEventsTopic,
		"kafka_booking_commands_topic", cfg.KafkaBookingCommandsTopic,
		"kafka_consumer_group", cfg.KafkaConsumerGroup,
		"fleet_seed_file", cfg.FleetSeedFile,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	if cfg.Client != nil {
		cfg.Client.GracefulShutdown(cfg.Log)
	}
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = FallbackPaginationLimit
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
