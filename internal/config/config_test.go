package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/presence-tracker/internal/presence"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 60*time.Second, cfg.SampleInterval)
	assert.Equal(t, 10, cfg.RetentionDays)
	assert.Equal(t, 1, cfg.ActiveThreshold)
	assert.Equal(t, "all", cfg.DefaultFilter)
	assert.False(t, cfg.SlackEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SAMPLE_INTERVAL", "30s")
	t.Setenv("RETENTION_DAYS", "7")
	t.Setenv("DEFAULT_FILTER", "active")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.SlackEnabled())
	assert.Equal(t, 30*time.Second, cfg.SampleInterval)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, "active", cfg.DefaultFilter)
}

func TestPreferences_InvalidFilterFallsBack(t *testing.T) {
	os.Clearenv()
	t.Setenv("DEFAULT_FILTER", "everyone")

	cfg, err := Load()
	require.NoError(t, err)

	prefs := cfg.Preferences()
	assert.Equal(t, presence.FilterAll, prefs.Filter)
	assert.Equal(t, 10, prefs.HorizonDays)
}
