package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/flagx"
)

// parseFlags overlays cfg with the flags it owns; anything else in args is
// left for other loaders.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-t", "-r", "-d", "-l", "-s"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the mail store")
	timeout := fs.Int("t", int(cfg.HTTPTimeout.Seconds()), "HTTP timeout (in seconds)")
	fs.Uint64Var(&cfg.ChunkRetries, "r", cfg.ChunkRetries, "retries per chunk call")
	fs.StringVar(&cfg.HistoryDB, "d", cfg.HistoryDB, "local sent-mail cache")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.RequireAllAttachments, "s", cfg.RequireAllAttachments, "refuse to send when an attachment failed")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.HTTPTimeout = time.Duration(*timeout) * time.Second
	return nil
}
