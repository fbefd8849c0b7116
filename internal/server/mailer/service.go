package mailer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
	"github.com/dmitrijs2005/chunkmail/internal/server/models"
	"github.com/dmitrijs2005/chunkmail/internal/server/objectstore"
	"github.com/dmitrijs2005/chunkmail/internal/server/repositories/emails"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var emailsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chunkmail_emails_submitted_total",
	Help: "Send requests by final record status.",
}, []string{"status"})

// Service records messages and relays them. A nil relay marks every stored
// record as sent.
type Service struct {
	repo    emails.Repository
	objects objectstore.Store
	relay   Relay
	now     func() time.Time
	log     logging.Logger
}

func NewService(repo emails.Repository, objects objectstore.Store, relay Relay, log logging.Logger) *Service {
	return &Service{
		repo:    repo,
		objects: objects,
		relay:   relay,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.With("component", "mailer"),
	}
}

// Send validates f, checks that every attachment handle exists, stores the
// record as pending and relays it. The returned record carries the final
// status. A relay failure still returns the record, marked failed, together
// with an error wrapping common.ErrSubmission.
func (s *Service) Send(ctx context.Context, f Form) (*models.Email, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	for _, key := range f.AttachmentPaths {
		ok, err := s.objects.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check attachment %s: %w", key, err)
		}
		if !ok {
			return nil, common.NewValidationError("attachmentPaths", "unknown attachment %q", key)
		}
	}

	e := &models.Email{
		Sender:          f.Sender,
		Recipients:      f.Recipients,
		Subject:         f.Subject,
		Body:            f.Body,
		AttachmentPaths: f.AttachmentPaths,
		SentAt:          s.now(),
		Status:          models.EmailStatusPending,
	}
	if e.AttachmentPaths == nil {
		e.AttachmentPaths = []string{}
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("store email: %w", err)
	}

	status := models.EmailStatusSent
	var relayErr error
	if s.relay != nil {
		relayErr = s.relay.Deliver(ctx, e.Sender, e.Recipients, func(w io.Writer) error {
			return writeMessage(ctx, w, e, s.objects)
		})
		if relayErr != nil {
			status = models.EmailStatusFailed
			s.log.Error(ctx, "relay failed", "email_id", e.ID, "error", relayErr)
		}
	}

	if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), e.ID, status); err != nil {
		return nil, fmt.Errorf("update email %d: %w", e.ID, err)
	}
	e.Status = status
	emailsSubmitted.WithLabelValues(string(status)).Inc()

	if relayErr != nil {
		return e, &common.SubmissionError{Err: relayErr}
	}
	s.log.Info(ctx, "email stored", "email_id", e.ID, "recipients", len(e.Recipients), "attachments", len(e.AttachmentPaths), "status", status)
	return e, nil
}

func (s *Service) List(ctx context.Context) ([]models.Email, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Email, error) {
	return s.repo.GetByID(ctx, id)
}
