package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/chunkmail/internal/flagx"
	"github.com/dmitrijs2005/chunkmail/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer and
// zero-checked fields let a file set only what it needs.
type JsonConfig struct {
	ServerURL             string          `json:"server_url"`
	HTTPTimeout           *timex.Duration `json:"http_timeout"`
	ChunkRetries          *uint64         `json:"chunk_retries"`
	RetryBackoff          *timex.Duration `json:"retry_backoff"`
	HistoryDB             string          `json:"history_db"`
	LogLevel              string          `json:"log_level"`
	RequireAllAttachments *bool           `json:"require_all_attachments"`
	Senders               []string        `json:"senders"`
}

// parseJson overlays cfg with the file named by -c/-config. No flag means no
// change.
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

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.HTTPTimeout != nil {
		cfg.HTTPTimeout = jc.HTTPTimeout.Duration
	}
	if jc.ChunkRetries != nil {
		cfg.ChunkRetries = *jc.ChunkRetries
	}
	if jc.RetryBackoff != nil {
		cfg.RetryBackoff = jc.RetryBackoff.Duration
	}
	if jc.HistoryDB != "" {
		cfg.HistoryDB = jc.HistoryDB
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.RequireAllAttachments != nil {
		cfg.RequireAllAttachments = *jc.RequireAllAttachments
	}
	if len(jc.Senders) > 0 {
		cfg.Compose.Senders = append([]string(nil), jc.Senders...)
	}
	return nil
}
