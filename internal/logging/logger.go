// Package logging defines the structured logger every chunkmail component
// takes. SlogLogger is the only implementation.
package logging

import "context"

// Logger writes leveled records with key/value attributes:
//
//	log.Info(ctx, "chunk sent", "upload_id", id, "chunk", i)
type Logger interface {
	// Debug is for per-chunk and per-request detail.
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn marks a failure the caller recovers from.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that adds args to every record.
	With(args ...any) Logger
}
