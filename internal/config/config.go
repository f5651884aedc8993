// /internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries everything the session client needs. Values come from the
// environment, with an optional .env file loaded first.
type Config struct {
	// Playback service websocket, without the guild suffix.
	SocketURL string `env:"PLAYER_SOCKET_URL" envDefault:"wss://api.evict.bot/ws/music"`
	AuthToken string `env:"PLAYER_AUTH_TOKEN"`

	// Enrichment services.
	ArtworkURL    string        `env:"ARTWORK_SEARCH_URL" envDefault:"https://api.deezer.com/search"`
	MetadataURL   string        `env:"METADATA_URL" envDefault:"https://listen.squareweb.app"`
	MetadataKey   string        `env:"METADATA_KEY"`
	EnrichTimeout time.Duration `env:"ENRICH_TIMEOUT" envDefault:"10s"`

	// Connection recovery.
	MaxRetries  int           `env:"SOCKET_MAX_RETRIES" envDefault:"3"`
	BackoffBase time.Duration `env:"SOCKET_BACKOFF_BASE" envDefault:"1s"`
	DialTimeout time.Duration `env:"SOCKET_DIAL_TIMEOUT" envDefault:"15s"`

	// Local progress interpolation cadence.
	TickInterval time.Duration `env:"POSITION_TICK_INTERVAL" envDefault:"1s"`

	HistoryPath string `env:"HISTORY_PATH" envDefault:"history.json"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads the optional .env file and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // no .env is fine, fall back to system environment

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("SOCKET_MAX_RETRIES must not be negative")
	}
	if cfg.BackoffBase <= 0 {
		return nil, fmt.Errorf("SOCKET_BACKOFF_BASE must be positive")
	}
	return cfg, nil
}
