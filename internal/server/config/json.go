package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/chunkmail/internal/flagx"
	"github.com/dmitrijs2005/chunkmail/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Empty or
// absent fields keep their current value.
type JsonConfig struct {
	ListenAddr      string          `json:"listen_addr"`
	DatabaseDSN     string          `json:"database_dsn"`
	DataDir         string          `json:"data_dir"`
	ObjectStorage   string          `json:"object_storage"`
	S3RootUser      string          `json:"s3_root_user"`
	S3RootPassword  string          `json:"s3_root_password"`
	S3Bucket        string          `json:"s3_bucket"`
	S3Region        string          `json:"s3_region"`
	S3BaseEndpoint  string          `json:"s3_base_endpoint"`
	SMTPRelay       string          `json:"smtp_relay"`
	SMTPUser        string          `json:"smtp_user"`
	SMTPPassword    string          `json:"smtp_password"`
	MaxChunkSize    int64           `json:"max_chunk_size"`
	MaxFileSize     int64           `json:"max_file_size"`
	UploadTTL       *timex.Duration `json:"upload_ttl"`
	CleanupInterval *timex.Duration `json:"cleanup_interval"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout"`
	LogLevel        string          `json:"log_level"`
	LogFormat       string          `json:"log_format"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJson overlays cfg with the file named by -c/-config, if any.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.ListenAddr, jc.ListenAddr)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.ObjectStorage, jc.ObjectStorage)
	setString(&cfg.S3RootUser, jc.S3RootUser)
	setString(&cfg.S3RootPassword, jc.S3RootPassword)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.SMTPRelay, jc.SMTPRelay)
	setString(&cfg.SMTPUser, jc.SMTPUser)
	setString(&cfg.SMTPPassword, jc.SMTPPassword)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	if jc.MaxChunkSize != 0 {
		cfg.MaxChunkSize = jc.MaxChunkSize
	}
	if jc.MaxFileSize != 0 {
		cfg.MaxFileSize = jc.MaxFileSize
	}
	if jc.UploadTTL != nil {
		cfg.UploadTTL = jc.UploadTTL.Duration
	}
	if jc.CleanupInterval != nil {
		cfg.CleanupInterval = jc.CleanupInterval.Duration
	}
	if jc.ShutdownTimeout != nil {
		cfg.ShutdownTimeout = jc.ShutdownTimeout.Duration
	}
	return nil
}
