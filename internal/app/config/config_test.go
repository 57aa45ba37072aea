package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
env: test
redis:
  addr: redis:6380
cart:
  store: memory
  ttl: 2h
  max_attempts: 8
nats:
  url: nats://nats:4222
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, StoreMemory, cfg.Cart.Store)
	assert.Equal(t, 2*time.Hour, cfg.Cart.TTL)
	assert.Equal(t, 8, cfg.Cart.MaxAttempts)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, "cart-service", cfg.NATS.QueueGroup)
	assert.Equal(t, "50055", cfg.GRPCServer.Port)
}

func TestLoadConfig_MissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("CART_TTL", "48h")
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.Cart.TTL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, StoreRedis, cfg.Cart.Store)
	assert.Equal(t, 5, cfg.Cart.MaxAttempts)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Cart: CartConfig{Store: "disk", TTL: time.Hour, MaxAttempts: 1}}
	assert.Error(t, cfg.Validate())

	cfg.Cart.Store = StoreRedis
	assert.NoError(t, cfg.Validate())

	cfg.Cart.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg.Cart.MaxAttempts = 3
	cfg.Cart.TTL = 0
	assert.Error(t, cfg.Validate())
}
