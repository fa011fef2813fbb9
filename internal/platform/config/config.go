// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/dzimika/counter-app-sphere/internal/state"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"3001"`
	AppURL    string `env:"APP_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	ReplyMode     string  `env:"REPLY_MODE" default:"broadcast"`
	InitialCount  int64   `env:"INITIAL_COUNT" default:"1"`
	InitialRadius float64 `env:"INITIAL_RADIUS" default:"1"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"0"`
	WebSocketConnectRate    float64 `env:"WEBSOCKET_CONNECT_RATE" default:"0"`
	WebSocketConnectBurst   int     `env:"WEBSOCKET_CONNECT_BURST" default:"10"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"10"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"20"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []error

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port))
	}

	switch strings.ToLower(cfg.ReplyMode) {
	case "broadcast", "direct":
	default:
		errs = append(errs, fmt.Errorf("REPLY_MODE must be broadcast or direct, got %q", cfg.ReplyMode))
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}

	if !state.ValidRadius(cfg.InitialRadius) {
		errs = append(errs, fmt.Errorf("INITIAL_RADIUS must be a positive number, got %v", cfg.InitialRadius))
	}

	if cfg.AppURL != "" {
		if u, err := url.Parse(cfg.AppURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("APP_URL must be an absolute URL, got %q", cfg.AppURL))
		}
	}

	if cfg.MaxWebSocketConnections < 0 {
		errs = append(errs, errors.New("MAX_WEBSOCKET_CONNECTIONS must not be negative"))
	}
	if cfg.WebSocketConnectRate < 0 {
		errs = append(errs, errors.New("WEBSOCKET_CONNECT_RATE must not be negative"))
	}
	if cfg.WebSocketConnectRate > 0 && cfg.WebSocketConnectBurst < 1 {
		errs = append(errs, errors.New("WEBSOCKET_CONNECT_BURST must be at least 1"))
	}
	if cfg.APIRateLimit <= 0 || cfg.APIRateBurst < 1 {
		errs = append(errs, errors.New("API_RATE_LIMIT must be positive and API_RATE_BURST at least 1"))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}
