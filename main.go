package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"options-scalping-bot/config"
	"options-scalping-bot/internal/api"
	"options-scalping-bot/internal/commands"
	"options-scalping-bot/internal/database"
	"options-scalping-bot/internal/logging"
	"options-scalping-bot/internal/oracle"
	"options-scalping-bot/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(&cfg.LoggingConfig)
	logger.Info().Msg("options scalping bot starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the risk counters and the command bus. Without it the
	// process still runs: counters degrade to in-memory and the bus is
	// disabled, leaving only the local HTTP surface.
	var redisClient *redis.Client
	if cfg.RedisConfig.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
	}

	counterStore := database.NewRedisCounterStore(redisClient, logging.Component(logger, "risk-counters"))

	var store *database.Store
	if cfg.PostgresConfig.Enabled {
		store, err = database.NewStore(ctx, cfg.PostgresConfig.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer store.Close()
		logger.Info().Msg("postgres connected")
	} else {
		logger.Warn().Msg("postgres disabled, trades will not be persisted")
	}

	var bus *commands.Bus
	if redisClient != nil {
		bus = commands.NewBus(redisClient, logging.Component(logger, "commands"))
	}

	var validator oracle.Validator = oracle.NoopValidator{}
	if cfg.OracleConfig.Endpoint != "" {
		validator = oracle.NewHTTPValidator(
			cfg.OracleConfig.Endpoint,
			cfg.OracleConfig.APIKey,
			time.Duration(cfg.OracleConfig.TimeoutSeconds)*time.Second,
			logging.Component(logger, "oracle"))
	}

	manager := session.NewManager(session.ManagerDeps{
		CounterStore: counterStore,
		RiskConfig:   &cfg.RiskConfig,
		SignalConfig: &cfg.SignalConfig,
		Store:        store,
		Bus:          bus,
		Validator:    validator,
		FeedURL:      cfg.FeedConfig.URL,
		Logger:       logging.Component(logger, "session"),
	})
	go manager.Run(ctx)

	server := api.NewServer(&cfg.ServerConfig, bus, manager, logging.Component(logger, "api"))
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	manager.StopAll()
	logger.Info().Msg("shutdown complete")
}
