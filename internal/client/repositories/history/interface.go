package history

import (
	"context"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/client/models"
)

type Repository interface {
	// ReplaceAll swaps the cached list for emails in one transaction.
	ReplaceAll(ctx context.Context, emails []models.Email) error
	Upsert(ctx context.Context, e models.Email) error
	// List returns cached records, newest first.
	List(ctx context.Context) ([]models.Email, error)
	// Get returns common.ErrorNotFound when id is not cached.
	Get(ctx context.Context, id int64) (*models.Email, error)
	// LastSync is the zero time when the cache was never filled.
	LastSync(ctx context.Context) (time.Time, error)
}
