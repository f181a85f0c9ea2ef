package kafka_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, DefaultProducerCompression, cfg.ProducerCompression)
	assert.Equal(t, int64(-1), cfg.ConsumerStartOffset)
	assert.Equal(t, "bookings.dlq", cfg.DLQTopic("bookings"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " kafka-1:9092 , kafka-2:9092")
	t.Setenv(EnvKafkaConsumerMaxWait, "2s")
	t.Setenv(EnvKafkaProducerRequireAcks, "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, 2*time.Second, cfg.ConsumerMaxWait)
	assert.Equal(t, 1, cfg.ProducerRequireAcks)
}

func TestLoad_InvalidConfigReturnsError(t *testing.T) {
	t.Setenv(EnvKafkaProducerCompression, "brotli")
	t.Setenv(EnvKafkaProducerRequireAcks, "2")

	cfg, err := Load()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1. ProducerCompression")
	assert.Contains(t, err.Error(), "2. ProducerRequireAcks")
}

func TestValidate_EmptyBroker(t *testing.T) {
	cfg := FromEnv()
	cfg.Brokers = []string{"kafka:9092", ""}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broker 1 cannot be empty")
}

func TestDLQTopic_Disabled(t *testing.T) {
	cfg := FromEnv()
	cfg.DLQSuffix = ""
	assert.Empty(t, cfg.DLQTopic("bookings"))
}

func TestFromEnv_EmptyDLQSuffixDisablesDeadLettering(t *testing.T) {
	t.Setenv(EnvKafkaDLQSuffix, "")
	assert.Empty(t, FromEnv().DLQTopic("bookings"))
}
