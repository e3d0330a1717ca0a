package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/presence-tracker/internal/api"
	"github.com/p-blackswan/presence-tracker/internal/config"
	"github.com/p-blackswan/presence-tracker/internal/health"
	"github.com/p-blackswan/presence-tracker/internal/kvstore"
	"github.com/p-blackswan/presence-tracker/internal/metrics"
	"github.com/p-blackswan/presence-tracker/internal/presence"
	"github.com/p-blackswan/presence-tracker/internal/sampler"
	"github.com/p-blackswan/presence-tracker/internal/snapshot"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting presence tracker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Persistence
	kv, err := kvstore.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open kvstore")
	}
	defer kv.Close()

	// Metrics & health
	m := metrics.New()
	checker := health.NewChecker(logger)
	checker.Register("kvstore", func(ctx context.Context) health.Status {
		if err := kv.Ping(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// Snapshot source. Without a token the tracker still starts and
	// serves persisted history; it just samples nothing.
	var source snapshot.Source = snapshot.NopSource{}
	if cfg.SlackEnabled() {
		slackSource := snapshot.NewSlackSource(cfg.SlackBotToken, logger)
		source = slackSource
		checker.Register("slack", func(ctx context.Context) health.Status {
			if err := slackSource.AuthCheck(ctx); err != nil {
				return health.StatusDown
			}
			return health.StatusOK
		})
	} else {
		logger.Warn().Msg("SLACK_BOT_TOKEN not set, sampling disabled")
	}

	// Vacation vocabulary
	vocab := presence.DefaultVacationVocab()
	if cfg.VacationVocabPath != "" {
		v, err := presence.LoadVacationVocab(cfg.VacationVocabPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.VacationVocabPath).
				Msg("failed to load vacation vocabulary, using defaults")
		}
		vocab = v
	}

	// Sampler
	smp := sampler.New(source, kv, cfg.Preferences(), m, logger)

	samplerDone := make(chan struct{})
	go func() {
		defer close(samplerDone)
		smp.Run(ctx)
	}()

	// API server
	handlers := api.NewHandlers(smp, vocab, logger)
	server := api.NewServer(api.ServerConfig{
		ListenAddr:  cfg.ListenAddr,
		Auth:        api.AuthConfig{Mode: cfg.AuthMode, APIKey: cfg.APIKey},
		RateLimit:   api.RateLimitConfig{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
		CORSOrigins: cfg.CORSOrigins,
	}, checker, m, handlers, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("api server failed")
		}
	}

	cancel()
	// Wait for the in-flight cycle to finish and the final persist to run.
	<-samplerDone

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("presence tracker stopped")
}
