package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "medeasy.db", cfg.DatabaseDSN)
	assert.Equal(t, int64(20), cfg.LowStockThreshold)
	assert.Equal(t, 90*24*time.Hour, cfg.ExpiringWindow)
	assert.Equal(t, 5*time.Second, cfg.ApplyTimeout)
	assert.Empty(t, cfg.SeedCSV)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MEDEASY_HTTP_PORT", "9090")
	t.Setenv("MEDEASY_LOW_STOCK_THRESHOLD", "5")
	t.Setenv("MEDEASY_EXPIRING_WINDOW", "720h")
	t.Setenv("MEDEASY_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, int64(5), cfg.LowStockThreshold)
	assert.Equal(t, 30*24*time.Hour, cfg.ExpiringWindow)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"MEDEASY_HTTP_PORT":           "70000",
		"MEDEASY_LOW_STOCK_THRESHOLD": "-1",
		"MEDEASY_APPLY_TIMEOUT":       "0s",
		"MEDEASY_EXPIRING_WINDOW":     "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
