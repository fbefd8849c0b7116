package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/chunkmail/internal/flagx"
)

// parseFlags overlays cfg with the flags it owns.
//
//	-a string   HTTP listen address (e.g. ":8080")
//	-d string   PostgreSQL DSN, empty for the in-memory repository
//	-f string   data directory for chunks and local objects
//	-o string   object storage, local or s3
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//	-m string   SMTP relay host:port, empty to disable relaying
//	-l string   log level
//	-j string   log format, json or text
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-f", "-o", "-u", "-p", "-b", "-g", "-e", "-m", "-l", "-j"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.DataDir, "f", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.ObjectStorage, "o", cfg.ObjectStorage, "object storage (local|s3)")
	fs.StringVar(&cfg.S3RootUser, "u", cfg.S3RootUser, "S3 root user")
	fs.StringVar(&cfg.S3RootPassword, "p", cfg.S3RootPassword, "S3 root password")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&cfg.SMTPRelay, "m", cfg.SMTPRelay, "SMTP relay address")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "j", cfg.LogFormat, "log format (json|text)")

	return fs.Parse(args)
}
