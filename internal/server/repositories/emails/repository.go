// Package emails stores submitted messages for the mail store.
package emails

import (
	"context"

	"github.com/dmitrijs2005/chunkmail/internal/server/models"
)

// Repository persists email records. Missing ids yield common.ErrorNotFound.
type Repository interface {
	// Create assigns e.ID.
	Create(ctx context.Context, e *models.Email) error
	UpdateStatus(ctx context.Context, id int64, status models.EmailStatus) error
	// List returns every record, newest first.
	List(ctx context.Context) ([]models.Email, error)
	GetByID(ctx context.Context, id int64) (*models.Email, error)
}
