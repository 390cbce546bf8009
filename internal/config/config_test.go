package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "localhost:6379", cfg.Redis.Address)
	require.Equal(t, 25, cfg.MySQL.MaxOpenConns)
	require.Equal(t, 2*time.Second, cfg.Bidding.LockTimeout)
	require.Equal(t, 3, cfg.Bidding.StorageRetries)
	require.Equal(t, 50*time.Millisecond, cfg.Bidding.RetryBackoff)
	require.Equal(t, "@every 15s", cfg.Sweep.Schedule)
	require.Equal(t, 30*time.Second, cfg.Leader.TTL)
	require.NotEmpty(t, cfg.Instance.ID)
}

func TestLoadEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REDIS_ADDRESS", "redis.internal:6380")
	t.Setenv("BIDDING_STORAGE_RETRIES", "5")
	t.Setenv("SWEEP_SCHEDULE", "@every 5s")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Address)
	require.Equal(t, 5, cfg.Bidding.StorageRetries)
	require.Equal(t, "@every 5s", cfg.Sweep.Schedule)

	viper.Reset()
}
