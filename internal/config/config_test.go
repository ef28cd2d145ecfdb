package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SERVER_PORT", "KAFKA_BROKERS", "REDIS_ADDR", "S3_ENDPOINT", "LOG_LEVEL", "LOG_FORMAT", "REDIS_DB", "S3_USE_SSL", "MIGRATIONS_AUTO", "REDIS_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.S3.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Redis.Timeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("MIGRATIONS_AUTO", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.S3.UseSSL)
	assert.True(t, cfg.MigrationsAuto)
}

func TestLoad_RejectsMalformedNumbers(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_DB")

	t.Setenv("REDIS_DB", "")
	t.Setenv("S3_USE_SSL", "maybe")
	_, err = Load()
	assert.ErrorContains(t, err, "S3_USE_SSL")
}

func TestValidate(t *testing.T) {
	cfg := AppConfig{DatabaseURL: "postgres://x", JWTSecret: "s"}
	assert.NoError(t, cfg.Validate())

	cfg.S3.Endpoint = "minio:9000"
	assert.Error(t, cfg.Validate())

	cfg = AppConfig{JWTSecret: "s"}
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
}
