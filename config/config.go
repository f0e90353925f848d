// Package config loads process configuration from config.json with
// environment variable overrides. Broker access tokens are per-user and
// arrive with session settings, never from the process environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"options-scalping-bot/internal/api"
	"options-scalping-bot/internal/logging"
	"options-scalping-bot/internal/risk"
	"options-scalping-bot/internal/signal"
)

// Config is the full process configuration.
type Config struct {
	LoggingConfig  logging.Config   `json:"logging"`
	ServerConfig   api.ServerConfig `json:"server"`
	RedisConfig    RedisConfig      `json:"redis"`
	PostgresConfig PostgresConfig   `json:"postgres"`
	FeedConfig     FeedConfig       `json:"feed"`
	SignalConfig   signal.Config    `json:"signal"`
	RiskConfig     risk.Config      `json:"risk"`
	OracleConfig   OracleConfig     `json:"oracle"`
}

// RedisConfig holds connection settings for risk counters and the
// command bus.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// PostgresConfig holds the persistence connection.
type PostgresConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn"`
}

// FeedConfig holds market-data feed settings.
type FeedConfig struct {
	URL string `json:"url"` // empty uses the broker default
}

// OracleConfig holds the advisory validator endpoint. An empty endpoint
// disables validation.
type OracleConfig struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Load reads config.json (if present) and applies environment
// overrides on top.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = defaults()
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LoggingConfig: *logging.DefaultConfig(),
		ServerConfig:  *api.DefaultServerConfig(),
		RedisConfig:   RedisConfig{Enabled: true, Address: "localhost:6379"},
		SignalConfig:  *signal.DefaultConfig(),
		RiskConfig:    *risk.DefaultConfig(),
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := defaults()
	if err := json.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.LoggingConfig.JSONFormat = v == "true"
	}

	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)

	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}

	cfg.PostgresConfig.DSN = getEnvOrDefault("POSTGRES_DSN", cfg.PostgresConfig.DSN)
	if cfg.PostgresConfig.DSN != "" {
		cfg.PostgresConfig.Enabled = true
	}

	cfg.FeedConfig.URL = getEnvOrDefault("FEED_URL", cfg.FeedConfig.URL)

	cfg.OracleConfig.Endpoint = getEnvOrDefault("ORACLE_ENDPOINT", cfg.OracleConfig.Endpoint)
	cfg.OracleConfig.APIKey = getEnvOrDefault("ORACLE_API_KEY", cfg.OracleConfig.APIKey)

	cfg.RiskConfig.MaxDailyTrades = getEnvIntOrDefault("RISK_MAX_DAILY_TRADES", cfg.RiskConfig.MaxDailyTrades)
	cfg.RiskConfig.MaxDailyLoss = getEnvFloatOrDefault("RISK_MAX_DAILY_LOSS", cfg.RiskConfig.MaxDailyLoss)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
