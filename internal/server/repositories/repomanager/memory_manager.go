package repomanager

import (
	"context"

	"github.com/dmitrijs2005/chunkmail/internal/server/repositories/emails"
)

type InMemoryRepositoryManager struct {
	emails *emails.InMemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{emails: emails.NewInMemoryRepository()}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *InMemoryRepositoryManager) Emails() emails.Repository          { return m.emails }
func (m *InMemoryRepositoryManager) Close() error                       { return nil }
