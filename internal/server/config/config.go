// Package config handles configuration for the reference mail store,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/logging"
)

// Object storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds runtime settings for the mail store.
//
// An empty DatabaseDSN selects the in-memory email repository. An empty
// SMTPRelay makes the mailer store records as sent without relaying them.
type Config struct {
	ListenAddr      string
	DatabaseDSN     string
	DataDir         string
	ObjectStorage   string
	S3RootUser      string
	S3RootPassword  string
	S3Bucket        string
	S3Region        string
	S3BaseEndpoint  string
	SMTPRelay       string
	SMTPUser        string
	SMTPPassword    string
	MaxChunkSize    int64
	MaxFileSize     int64
	UploadTTL       time.Duration
	CleanupInterval time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.DatabaseDSN = ""
	c.DataDir = "data"
	c.ObjectStorage = StorageLocal
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "attachments"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.SMTPRelay = ""
	c.MaxChunkSize = 5 * 1024 * 1024
	c.MaxFileSize = 25 * 1024 * 1024
	c.UploadTTL = 24 * time.Hour
	c.CleanupInterval = time.Minute
	c.ShutdownTimeout = 10 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data dir is required"))
	}
	switch c.ObjectStorage {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("s3 bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown object storage %q, expected local or s3", c.ObjectStorage))
	}
	if c.MaxChunkSize <= 0 {
		errs = append(errs, errors.New("max chunk size must be positive"))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, errors.New("max file size must be positive"))
	}
	if c.UploadTTL <= 0 {
		errs = append(errs, errors.New("upload ttl must be positive"))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, errors.New("cleanup interval must be positive"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("unknown log format %q, expected json or text", c.LogFormat))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags. args
// excludes the program name.
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
