package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_PolicyFromEnvironment(t *testing.T) {
	t.Setenv("DUAL_AUTH_THRESHOLD", "1000000")
	t.Setenv("BUSINESS_DAYS", "Mon,Wednesday,fri")
	t.Setenv("BUSINESS_HOURS_START", "9")
	t.Setenv("STORE_BACKEND", "Memory")

	cfg := Load()

	assert.True(t, cfg.Policy.DualAuthThreshold.Equal(decimal.NewFromInt(1000000)))
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, cfg.Policy.BusinessHours.Days)
	assert.Equal(t, 9, cfg.Policy.BusinessHours.StartHour)
	assert.Equal(t, StoreBackendMemory, cfg.Store.Backend)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("DUAL_AUTH_THRESHOLD", "lots")
	t.Setenv("BUSINESS_DAYS", "someday")

	cfg := Load()

	assert.True(t, cfg.Policy.DualAuthThreshold.Equal(decimal.NewFromInt(250000)))
	assert.Len(t, cfg.Policy.BusinessHours.Days, 5)
}

func TestValidateCore(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg := Load()
	err := cfg.ValidateCore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg.Store.Backend = StoreBackendMemory
	cfg.JWT.Secret = "s3cret"
	assert.NoError(t, cfg.ValidateCore())

	cfg.Policy.BusinessHours.StartHour = 20
	assert.Error(t, cfg.ValidateCore())
}

func TestPolicyLocation_FallsBackToUTC(t *testing.T) {
	p := PolicyConfig{Timezone: "Nowhere/Special"}
	assert.Equal(t, time.UTC, p.Location())
}
