package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/client/models"
	"github.com/dmitrijs2005/chunkmail/internal/client/repositories/history"
	"github.com/dmitrijs2005/chunkmail/internal/client/transport"
	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
)

// Listing is the sent-mail list plus where it came from.
type Listing struct {
	Emails []models.Email
	// Offline is set when the mail store was unreachable and Emails came
	// from the local cache, last refreshed at SyncedAt.
	Offline  bool
	SyncedAt time.Time
}

type MailService interface {
	List(ctx context.Context) (*Listing, error)
	Get(ctx context.Context, id int64) (*models.Email, error)
	// Remember caches a record just returned by a successful send.
	Remember(ctx context.Context, e models.Email) error
}

type mailService struct {
	remote transport.Mailbox
	repo   history.Repository
	log    logging.Logger
}

func NewMailService(remote transport.Mailbox, repo history.Repository, log logging.Logger) MailService {
	if log == nil {
		log = logging.Discard()
	}
	return &mailService{remote: remote, repo: repo, log: log.With("component", "mail")}
}

// List fetches the list from the mail store and refreshes the cache. When the
// store is unreachable the cached list is returned with Offline set; any
// other remote failure is returned as is.
func (s *mailService) List(ctx context.Context) (*Listing, error) {
	emails, err := s.remote.ListEmails(ctx)
	if err == nil {
		if err := s.repo.ReplaceAll(ctx, emails); err != nil {
			s.log.Warn(ctx, "failed to refresh sent-mail cache", "error", err)
		}
		return &Listing{Emails: emails, SyncedAt: time.Now()}, nil
	}
	if !errors.Is(err, transport.ErrUnavailable) {
		return nil, fmt.Errorf("list emails: %w", err)
	}

	s.log.Info(ctx, "mail store unreachable, using cache", "error", err)
	cached, cerr := s.repo.List(ctx)
	if cerr != nil {
		return nil, errors.Join(err, cerr)
	}
	synced, cerr := s.repo.LastSync(ctx)
	if cerr != nil {
		return nil, errors.Join(err, cerr)
	}
	return &Listing{Emails: cached, Offline: true, SyncedAt: synced}, nil
}

// Get reads from the cache first and asks the mail store on a miss.
func (s *mailService) Get(ctx context.Context, id int64) (*models.Email, error) {
	e, err := s.repo.Get(ctx, id)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	e, err = s.remote.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, *e); err != nil {
		s.log.Warn(ctx, "failed to cache email", "id", id, "error", err)
	}
	return e, nil
}

func (s *mailService) Remember(ctx context.Context, e models.Email) error {
	return s.repo.Upsert(ctx, e)
}
