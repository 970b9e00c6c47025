package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REOPEN_WINDOW_DAYS", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("APP_PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*24*time.Hour, cfg.Lifecycle.ReopenWindow())
	assert.Equal(t, 7*24*time.Hour, cfg.Lifecycle.AutoCloseAfter())
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REOPEN_WINDOW_DAYS", "14")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("AUTO_CLOSE_ENABLED", "true")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 14*24*time.Hour, cfg.Lifecycle.ReopenWindow())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.True(t, cfg.Lifecycle.AutoCloseEnabled)
	assert.Zero(t, cfg.App.RequestTimeout())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("REDIS_DB", "0")
	t.Setenv("REOPEN_WINDOW_DAYS", "-1")
	_, err = Load()
	require.Error(t, err)
}
