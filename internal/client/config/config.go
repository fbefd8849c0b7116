package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/logging"
)

// Config holds runtime settings for the chunkmail client.
type Config struct {
	ServerURL             string
	HTTPTimeout           time.Duration
	ChunkRetries          uint64
	RetryBackoff          time.Duration
	HistoryDB             string
	LogLevel              string
	RequireAllAttachments bool
	Compose               Compose
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.HTTPTimeout = 30 * time.Second
	c.ChunkRetries = 2
	c.RetryBackoff = 200 * time.Millisecond
	c.HistoryDB = "chunkmail.db"
	c.LogLevel = "warn"
	c.RequireAllAttachments = false
	c.Compose = DefaultCompose()
}

// Validate checks values that cannot be enforced by the flag parser.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server url is required")
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout must not be negative")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.Compose.Validate(); err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	return nil
}

// LoadConfig builds a Config from defaults, then the JSON file named by -c or
// -config (if any), then flags. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
