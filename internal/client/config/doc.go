// Package config loads runtime configuration for the chunkmail client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the mail store (http://host:port)
//	-t int      HTTP timeout per request (seconds, 0 disables)
//	-r int      extra attempts for a failed chunk or handshake call
//	-d string   path of the local sent-mail cache (sqlite)
//	-l string   log level: debug, info, warn, error
//	-s          strict mode: refuse to send when any attachment failed
//
// # JSON schema
//
// Durations use timex.Duration, so "30s" and integer nanoseconds both work.
// Of the compose limits only the sender list may be overridden:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "http_timeout": "30s",
//	  "chunk_retries": 2,
//	  "retry_backoff": "200ms",
//	  "history_db": "chunkmail.db",
//	  "log_level": "warn",
//	  "require_all_attachments": false,
//	  "senders": ["renaise@iedcbootcampcec.org"]
//	}
package config
