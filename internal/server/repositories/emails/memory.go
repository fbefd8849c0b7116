package emails

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/server/models"
)

// InMemoryRepository keeps records in a slice. Used when no DSN is set.
type InMemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	emails []models.Email
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

var _ Repository = (*InMemoryRepository)(nil)

func clone(e models.Email) models.Email {
	e.Recipients = append([]string{}, e.Recipients...)
	e.AttachmentPaths = append([]string{}, e.AttachmentPaths...)
	return e
}

func (r *InMemoryRepository) Create(_ context.Context, e *models.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.ID = r.nextID
	r.nextID++
	r.emails = append(r.emails, clone(*e))
	return nil
}

func (r *InMemoryRepository) UpdateStatus(_ context.Context, id int64, status models.EmailStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.emails {
		if r.emails[i].ID == id {
			r.emails[i].Status = status
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *InMemoryRepository) List(_ context.Context) ([]models.Email, error) {
	r.mu.RLock()
	out := make([]models.Email, 0, len(r.emails))
	for _, e := range r.emails {
		out = append(out, clone(e))
	}
	r.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b models.Email) int {
		if c := b.SentAt.Compare(a.SentAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int64) (*models.Email, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.emails {
		if e.ID == id {
			c := clone(e)
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}
