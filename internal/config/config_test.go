package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOLD_DURATION", "")
	t.Setenv("INVENTORY_BACKEND", "")
	t.Setenv("PAYMENT_PROVIDER", "")
	t.Setenv("DIRECT_PURCHASE_ENABLED", "")

	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.Inventory.HoldDuration)
	assert.Equal(t, 30*time.Minute, cfg.Inventory.HoldMaxDuration)
	assert.Equal(t, BackendPostgres, cfg.Inventory.Backend)
	assert.Equal(t, ProviderStripe, cfg.Payment.Provider)
	assert.Equal(t, 3, cfg.Database.Retry.MaxAttempts)
	assert.Equal(t, "tickets", cfg.Elasticsearch.Index)
	assert.False(t, cfg.Inventory.DirectPurchase)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HOLD_DURATION", "300")
	t.Setenv("LOCK_TIMEOUT", "2s")
	t.Setenv("INVENTORY_BACKEND", "Memory")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("RATE_LIMIT_CAPACITY", "5")
	t.Setenv("DIRECT_PURCHASE_ENABLED", "1")
	t.Setenv("SEED_EVENT_ID", "4")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.Inventory.HoldDuration)
	assert.Equal(t, 2*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, BackendMemory, cfg.Inventory.Backend)
	assert.Equal(t, "eur", cfg.Inventory.Currency)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, 5, cfg.RateLimit.Capacity)
	assert.True(t, cfg.Inventory.DirectPurchase)
	assert.Equal(t, int64(4), cfg.Inventory.Seed.EventID)
	assert.Equal(t, 20, cfg.Inventory.Seed.SeatsPerRow)
}

func TestGetEnvDurationFallsBack(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_DURATION", time.Minute))
}
