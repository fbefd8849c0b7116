package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/dmitrijs2005/chunkmail/internal/client/config"
	"github.com/dmitrijs2005/chunkmail/internal/client/models"
	"github.com/dmitrijs2005/chunkmail/internal/client/progress"
	"github.com/dmitrijs2005/chunkmail/internal/client/transport"
	"github.com/dmitrijs2005/chunkmail/internal/client/upload"
	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
)

// Remote is the part of the mail store a session talks to.
type Remote interface {
	transport.ChunkTransport
	transport.Sender
}

// Options tune a Session beyond the static compose limits.
type Options struct {
	// RequireAllAttachments blocks the send call when any attachment failed
	// to upload. By default failed files are left out of the message.
	RequireAllAttachments bool
	// OnSent runs ConfirmDelay after a successful send, on its own goroutine.
	OnSent func(models.Email)
}

// Outcome is the result of one attachment's upload job.
type Outcome struct {
	Attachment models.Attachment
	Handle     string
	Err        error
}

// Result describes one Submit call. Outcomes follow attachment order.
// Email is set only when the send call succeeded.
type Result struct {
	Email    *models.Email
	Outcomes []Outcome
}

// Failed returns the outcomes whose upload did not complete.
func (r *Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

type Session struct {
	cfg      config.Compose
	opts     Options
	remote   Remote
	tracker  *progress.Tracker
	uploader *upload.Uploader
	log      logging.Logger

	mu      sync.Mutex
	draft   models.Draft
	sending atomic.Bool

	afterFunc func(time.Duration, func())
}

// NewSession returns a session with an empty draft. cfg must already be
// validated.
func NewSession(cfg config.Compose, remote Remote, tracker *progress.Tracker, log logging.Logger, opts Options) *Session {
	if log == nil {
		log = logging.Discard()
	}
	s := &Session{
		cfg:      cfg,
		opts:     opts,
		remote:   remote,
		tracker:  tracker,
		uploader: upload.NewUploader(remote, tracker, cfg.ChunkSize, log),
		log:      log.With("component", "compose"),
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	s.draft = s.emptyDraft()
	return s
}

func (s *Session) emptyDraft() models.Draft {
	return models.Draft{Sender: s.cfg.Senders[0]}
}

// Tracker exposes the progress records for the presentation layer.
func (s *Session) Tracker() *progress.Tracker { return s.tracker }

// Limits returns the static compose configuration.
func (s *Session) Limits() config.Compose { return s.cfg }

// Sending reports whether a submission is running.
func (s *Session) Sending() bool { return s.sending.Load() }

// Draft returns a copy of the current draft.
func (s *Session) Draft() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// edit runs fn under the draft lock unless a submission is in progress.
func (s *Session) edit(fn func(d *models.Draft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sending.Load() {
		return common.ErrDraftLocked
	}
	return fn(&s.draft)
}

func (s *Session) SetSender(sender string) error {
	return s.edit(func(d *models.Draft) error {
		if !s.cfg.AllowedSender(sender) {
			return common.NewValidationError("sender", "%q is not an allowed sender", sender)
		}
		d.Sender = sender
		return nil
	})
}

// SetRecipients replaces the recipient list. Addresses are checked on submit.
func (s *Session) SetRecipients(recipients []string) error {
	return s.edit(func(d *models.Draft) error {
		d.Recipients = append([]string(nil), recipients...)
		return nil
	})
}

func (s *Session) SetSubject(subject string) error {
	return s.edit(func(d *models.Draft) error {
		d.Subject = subject
		return nil
	})
}

func (s *Session) SetBody(body string) error {
	return s.edit(func(d *models.Draft) error {
		d.Body = body
		return nil
	})
}

// Attach selects files by path. Each file is checked on its own: oversized or
// unreadable files are rejected with an error naming them while the rest are
// accepted. Files beyond the attachment limit are rejected too.
func (s *Session) Attach(paths ...string) ([]models.Attachment, error) {
	var rejected []error
	candidates := make([]models.Attachment, 0, len(paths))
	for _, p := range paths {
		a, err := models.NewFileAttachment(p)
		if err != nil {
			rejected = append(rejected, common.NewValidationError("attachments", "%v", err))
			continue
		}
		candidates = append(candidates, a)
	}

	accepted, err := s.add(candidates...)
	rejected = append(rejected, err)
	return accepted, errors.Join(rejected...)
}

// AttachBytes selects an in-memory payload.
func (s *Session) AttachBytes(name, mimeType string, data []byte) (models.Attachment, error) {
	accepted, err := s.add(models.NewBytesAttachment(name, mimeType, data))
	if err != nil {
		return models.Attachment{}, err
	}
	return accepted[0], nil
}

func (s *Session) add(candidates ...models.Attachment) ([]models.Attachment, error) {
	var accepted []models.Attachment
	var rejected []error

	err := s.edit(func(d *models.Draft) error {
		for _, a := range candidates {
			if err := s.checkAttachment(a); err != nil {
				rejected = append(rejected, err)
				continue
			}
			if len(d.Attachments) >= s.cfg.MaxAttachments {
				rejected = append(rejected, common.NewValidationError("attachments",
					"cannot attach %s: at most %d attachments are allowed", a.Name, s.cfg.MaxAttachments))
				continue
			}
			d.Attachments = append(d.Attachments, a)
			s.tracker.Add(a.ID, a.Name)
			accepted = append(accepted, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, errors.Join(rejected...)
}

func (s *Session) checkAttachment(a models.Attachment) error {
	if a.Size > s.cfg.MaxFileSize {
		return common.NewValidationError("attachments",
			"file %s exceeds the maximum file size limit of %s", a.Name, formatSize(s.cfg.MaxFileSize))
	}
	return nil
}

// Detach removes the attachment with the given ID and its progress record.
func (s *Session) Detach(id string) error {
	return s.edit(func(d *models.Draft) error {
		for i, a := range d.Attachments {
			if a.ID == id {
				d.Attachments = append(d.Attachments[:i:i], d.Attachments[i+1:]...)
				s.tracker.Remove(id)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", common.ErrAttachmentNotSelected, id)
	})
}

// Reset discards the draft and every progress record. The sender returns to
// the first allowed address.
func (s *Session) Reset() error {
	return s.edit(func(d *models.Draft) error {
		*d = s.emptyDraft()
		s.tracker.Clear()
		return nil
	})
}

func (s *Session) validate(d models.Draft) error {
	if d.Sender == "" {
		return common.NewValidationError("sender", "sender is required")
	}
	if !s.cfg.AllowedSender(d.Sender) {
		return common.NewValidationError("sender", "%q is not an allowed sender", d.Sender)
	}
	if err := validateRecipients(d.Recipients); err != nil {
		return err
	}
	if strings.TrimSpace(d.Subject) == "" {
		return common.NewValidationError("subject", "subject is required")
	}
	if strings.TrimSpace(d.Body) == "" {
		return common.NewValidationError("body", "body is required")
	}
	if len(d.Attachments) > s.cfg.MaxAttachments {
		return common.NewValidationError("attachments", "at most %d attachments are allowed", s.cfg.MaxAttachments)
	}
	for _, a := range d.Attachments {
		if err := s.checkAttachment(a); err != nil {
			return err
		}
	}
	return nil
}

// Submit validates the draft, uploads every attachment strictly one after
// another and sends the message with the handles of those that completed.
//
// Validation failures return a *common.ValidationError before any network
// call. A failed send returns a *common.SubmissionError and leaves the draft
// and progress records as they are. On success both are cleared and OnSent
// is scheduled.
//
// A second call while one is running returns common.ErrSubmissionInProgress.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	if !s.sending.CompareAndSwap(false, true) {
		return nil, common.ErrSubmissionInProgress
	}
	defer s.sending.Store(false)

	s.mu.Lock()
	draft := s.draft.Clone()
	s.mu.Unlock()

	if err := s.validate(draft); err != nil {
		return nil, err
	}

	s.tracker.Reset()
	res := &Result{Outcomes: make([]Outcome, 0, len(draft.Attachments))}
	paths := make([]string, 0, len(draft.Attachments))

	for _, a := range draft.Attachments {
		handle, err := s.uploader.Run(ctx, a)
		res.Outcomes = append(res.Outcomes, Outcome{Attachment: a, Handle: handle, Err: err})
		if err != nil {
			continue
		}
		paths = append(paths, handle)
	}

	if failed := res.Failed(); len(failed) > 0 {
		s.log.Warn(ctx, "attachments failed to upload", "failed", len(failed), "total", len(res.Outcomes))
		if s.opts.RequireAllAttachments {
			return res, &common.SubmissionError{
				Err: fmt.Errorf("%d of %d attachments failed to upload", len(failed), len(res.Outcomes)),
			}
		}
	}

	email, err := s.remote.Send(ctx, transport.Outbound{
		Sender:          draft.Sender,
		Recipients:      draft.Recipients,
		Subject:         draft.Subject,
		Body:            draft.Body,
		AttachmentPaths: paths,
	})
	if err != nil {
		s.log.Error(ctx, "send failed", "error", err)
		return res, &common.SubmissionError{Err: err}
	}
	res.Email = email

	s.mu.Lock()
	s.draft = s.emptyDraft()
	s.mu.Unlock()
	s.tracker.Clear()

	s.log.Info(ctx, "email sent", "id", email.ID, "attachments", len(paths))
	if s.opts.OnSent != nil {
		sent := *email
		s.afterFunc(s.cfg.ConfirmDelay, func() { s.opts.OnSent(sent) })
	}
	return res, nil
}
