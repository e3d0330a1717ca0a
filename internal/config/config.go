package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/p-blackswan/presence-tracker/internal/presence"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	DBPath      string `envconfig:"DB_PATH" default:"presence.db"`

	// Slack — the snapshot source. The tracker can start without a token
	// for local development against a fake source, but samples nothing.
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN"`

	// Sampling & retention. These seed the preference defaults; persisted
	// preferences override them at runtime.
	SampleInterval  time.Duration `envconfig:"SAMPLE_INTERVAL" default:"60s"`
	RetentionDays   int           `envconfig:"RETENTION_DAYS" default:"10"`
	ActiveThreshold int           `envconfig:"ACTIVE_THRESHOLD" default:"1"`
	DefaultFilter   string        `envconfig:"DEFAULT_FILTER" default:"all"`

	// Vacation heuristic: optional YAML file extending the built-in vocabulary.
	VacationVocabPath string `envconfig:"VACATION_VOCAB_PATH"`

	// API
	AuthMode       string `envconfig:"AUTH_MODE" default:"api-key"` // "api-key" or "none"
	APIKey         string `envconfig:"API_KEY"`
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"100"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS"`
}

// SlackEnabled returns true if a bot token is configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != ""
}

// Preferences builds the default preference record from configuration.
// Invalid values fall back to the shipped defaults rather than failing
// startup.
func (c *Config) Preferences() presence.Preferences {
	return presence.MergePrefs(presence.DefaultPreferences(), presence.Preferences{
		SampleInterval:  c.SampleInterval,
		HorizonDays:     c.RetentionDays,
		ActiveThreshold: c.ActiveThreshold,
		Filter:          presence.Filter(c.DefaultFilter),
	})
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
