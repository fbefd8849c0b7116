// Package repomanager picks and owns the mail store's storage backend.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/chunkmail/internal/server/repositories/emails"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Emails() emails.Repository
	Close() error
}

// Open returns the Postgres manager for a non-empty dsn and the in-memory
// one otherwise.
func Open(dsn string) (RepositoryManager, error) {
	if dsn == "" {
		return NewInMemoryRepositoryManager(), nil
	}
	return NewPostgresRepositoryManager(dsn)
}
