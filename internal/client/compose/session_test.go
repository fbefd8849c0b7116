package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chunkmail/internal/client/config"
	"github.com/dmitrijs2005/chunkmail/internal/client/models"
	"github.com/dmitrijs2005/chunkmail/internal/client/progress"
	"github.com/dmitrijs2005/chunkmail/internal/client/transport"
	"github.com/dmitrijs2005/chunkmail/internal/common"
)

const mib = 1 << 20

type fakeRemote struct {
	mu        sync.Mutex
	chunks    []transport.ChunkRequest
	completes []transport.CompleteRequest
	sends     []transport.Outbound

	// failChunk maps a file name to the chunk index whose call fails.
	failChunk map[string]int
	sendErr   error
	// onChunk runs inside SendChunk, before the call is recorded.
	onChunk func()
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks) + len(f.completes) + len(f.sends)
}

func (f *fakeRemote) SendChunk(_ context.Context, req transport.ChunkRequest) error {
	if f.onChunk != nil {
		f.onChunk()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx, ok := f.failChunk[req.FileName]; ok && idx == req.Index {
		return errors.New("connection reset by peer")
	}
	req.Data = nil
	f.chunks = append(f.chunks, req)
	return nil
}

func (f *fakeRemote) CompleteUpload(_ context.Context, req transport.CompleteRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes = append(f.completes, req)
	return "attachments/" + req.FileName, nil
}

func (f *fakeRemote) Send(_ context.Context, msg transport.Outbound) (*models.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, msg)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &models.Email{
		ID: int64(len(f.sends)), Sender: msg.Sender, Recipients: msg.Recipients,
		Subject: msg.Subject, Body: msg.Body, Status: models.EmailStatusSent, AttachmentPaths: msg.AttachmentPaths,
	}, nil
}

func newSession(t *testing.T, remote *fakeRemote, opts Options) *Session {
	t.Helper()
	cfg := config.DefaultCompose()
	cfg.ChunkSize = 1 * mib
	cfg.MaxFileSize = 4 * mib
	s := NewSession(cfg, remote, progress.NewTracker(), nil, opts)
	s.afterFunc = func(_ time.Duration, f func()) { f() }
	return s
}

func fillDraft(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.SetRecipients([]string{"a@example.org", "b@example.org"}))
	require.NoError(t, s.SetSubject("Sponsorship"))
	require.NoError(t, s.SetBody("Please find the deck attached."))
}

func TestNewSession_DefaultSender(t *testing.T) {
	s := newSession(t, &fakeRemote{}, Options{})
	assert.Equal(t, "renaise@iedcbootcampcec.org", s.Draft().Sender)
}

func TestSetSender(t *testing.T) {
	s := newSession(t, &fakeRemote{}, Options{})

	require.NoError(t, s.SetSender("renaise.support@iedcbootcampcec.org"))
	assert.Equal(t, "renaise.support@iedcbootcampcec.org", s.Draft().Sender)

	err := s.SetSender("mallory@evil.example")
	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "sender", ve.Field)
	assert.Equal(t, "renaise.support@iedcbootcampcec.org", s.Draft().Sender)
}

func TestSubmit_ValidationFailsWithoutNetworkCalls(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(s *Session)
		field string
	}{
		{"no recipients", func(s *Session) { _ = s.SetRecipients(nil) }, "recipients"},
		{"malformed recipient", func(s *Session) { _ = s.SetRecipients([]string{"not-an-address"}) }, "recipients"},
		{"angle-bracketed recipient", func(s *Session) { _ = s.SetRecipients([]string{"<bob@example.com>"}) }, "recipients"},
		{"empty subject", func(s *Session) { _ = s.SetSubject("  ") }, "subject"},
		{"empty body", func(s *Session) { _ = s.SetBody("") }, "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{}
			s := newSession(t, remote, Options{})
			fillDraft(t, s)
			_, err := s.AttachBytes("deck.pdf", "application/pdf", make([]byte, 10))
			require.NoError(t, err)
			tt.edit(s)

			res, err := s.Submit(context.Background())
			assert.Nil(t, res)

			var ve *common.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Zero(t, remote.calls())
			assert.False(t, s.Sending())
		})
	}
}

func TestAttach_OversizedFileRejectedByName(t *testing.T) {
	remote := &fakeRemote{}
	cfg := config.DefaultCompose()
	s := NewSession(cfg, remote, progress.NewTracker(), nil, Options{})

	dir := t.TempDir()
	big := filepath.Join(dir, "huge.iso")
	small := filepath.Join(dir, "note.txt")
	f, err := os.Create(big)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(26*mib))
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(small, []byte("hello"), 0o600))

	accepted, err := s.Attach(big, small)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "huge.iso")
	assert.Contains(t, err.Error(), "25MB")

	require.Len(t, accepted, 1)
	assert.Equal(t, "note.txt", accepted[0].Name)
	assert.Len(t, s.Draft().Attachments, 1)
	assert.Len(t, s.Tracker().Snapshot(), 1)
	assert.Zero(t, remote.calls())
}

func TestAttach_MissingFile(t *testing.T) {
	s := newSession(t, &fakeRemote{}, Options{})
	_, err := s.Attach(filepath.Join(t.TempDir(), "nope.pdf"))
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, s.Draft().Attachments)
}

func TestAttach_CountLimit(t *testing.T) {
	s := newSession(t, &fakeRemote{}, Options{})
	for _, n := range []string{"a", "b", "c"} {
		_, err := s.AttachBytes(n, "text/plain", []byte(n))
		require.NoError(t, err)
	}

	_, err := s.AttachBytes("d", "text/plain", []byte("d"))
	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "attachments", ve.Field)
	assert.Len(t, s.Draft().Attachments, 3)
}

func TestDetach(t *testing.T) {
	s := newSession(t, &fakeRemote{}, Options{})
	a, err := s.AttachBytes("a.txt", "text/plain", []byte("a"))
	require.NoError(t, err)
	b, err := s.AttachBytes("b.txt", "text/plain", []byte("b"))
	require.NoError(t, err)

	require.NoError(t, s.Detach(a.ID))
	d := s.Draft()
	require.Len(t, d.Attachments, 1)
	assert.Equal(t, b.ID, d.Attachments[0].ID)

	_, ok := s.Tracker().Get(a.ID)
	assert.False(t, ok, "detaching drops the progress record")
	_, ok = s.Tracker().Get(b.ID)
	assert.True(t, ok)

	require.ErrorIs(t, s.Detach(a.ID), common.ErrAttachmentNotSelected)
}

func TestSubmit_SecondAttachmentFails_FirstStillSent(t *testing.T) {
	remote := &fakeRemote{failChunk: map[string]int{"second.bin": 0}}
	s := newSession(t, remote, Options{})
	fillDraft(t, s)

	first, err := s.AttachBytes("first.bin", "application/octet-stream", make([]byte, 2*mib+5))
	require.NoError(t, err)
	second, err := s.AttachBytes("second.bin", "application/octet-stream", make([]byte, mib))
	require.NoError(t, err)

	var secondRecord progress.Record
	s.Tracker().Subscribe(func(r progress.Record) {
		if r.AttachmentID == second.ID {
			secondRecord = r
		}
	})

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, remote.sends, 1)
	assert.Equal(t, []string{"attachments/first.bin"}, remote.sends[0].AttachmentPaths)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, first.ID, res.Outcomes[0].Attachment.ID)
	assert.NoError(t, res.Outcomes[0].Err)
	assert.ErrorIs(t, res.Outcomes[1].Err, common.ErrChunkTransport)
	assert.Len(t, res.Failed(), 1)

	assert.Equal(t, progress.StatusError, secondRecord.Status)
	assert.Contains(t, secondRecord.Err, "connection reset")

	for _, c := range remote.chunks {
		assert.NotEqual(t, "second.bin", c.FileName)
	}
	require.Len(t, remote.completes, 1)
	assert.Equal(t, 3, remote.completes[0].TotalChunks)
}

func TestSubmit_StrictModeBlocksSend(t *testing.T) {
	remote := &fakeRemote{failChunk: map[string]int{"b.bin": 0}}
	s := newSession(t, remote, Options{RequireAllAttachments: true})
	fillDraft(t, s)
	_, err := s.AttachBytes("a.bin", "application/octet-stream", []byte("a"))
	require.NoError(t, err)
	b, err := s.AttachBytes("b.bin", "application/octet-stream", []byte("b"))
	require.NoError(t, err)

	res, err := s.Submit(context.Background())
	require.ErrorIs(t, err, common.ErrSubmission)
	assert.Empty(t, remote.sends)
	require.NotNil(t, res)
	assert.Len(t, res.Failed(), 1)

	assert.Len(t, s.Draft().Attachments, 2, "draft kept for retry")
	r, ok := s.Tracker().Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, progress.StatusError, r.Status)
}

func TestSubmit_SuccessClearsDraftAndProgress(t *testing.T) {
	remote := &fakeRemote{}
	var sent []models.Email
	s := newSession(t, remote, Options{OnSent: func(e models.Email) { sent = append(sent, e) }})

	var delay time.Duration
	s.afterFunc = func(d time.Duration, f func()) { delay = d; f() }

	require.NoError(t, s.SetSender("renaise.sponsorship@iedcbootcampcec.org"))
	fillDraft(t, s)
	_, err := s.AttachBytes("deck.pdf", "application/pdf", make([]byte, 10))
	require.NoError(t, err)

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Email)
	assert.Equal(t, models.EmailStatusSent, res.Email.Status)

	require.Len(t, remote.sends, 1)
	out := remote.sends[0]
	assert.Equal(t, "renaise.sponsorship@iedcbootcampcec.org", out.Sender)
	assert.Equal(t, []string{"a@example.org", "b@example.org"}, out.Recipients)
	assert.Equal(t, []string{"attachments/deck.pdf"}, out.AttachmentPaths)

	d := s.Draft()
	assert.Equal(t, models.Draft{Sender: "renaise@iedcbootcampcec.org"}, d)
	assert.Empty(t, s.Tracker().Snapshot())

	require.Len(t, sent, 1)
	assert.Equal(t, res.Email.ID, sent[0].ID)
	assert.Equal(t, 2*time.Second, delay)
}

func TestSubmit_SendFailurePreservesDraft(t *testing.T) {
	remote := &fakeRemote{sendErr: &transport.StatusError{Op: "send", Code: 502, Message: "relay refused"}}
	onSentCalled := false
	s := newSession(t, remote, Options{OnSent: func(models.Email) { onSentCalled = true }})
	fillDraft(t, s)
	a, err := s.AttachBytes("deck.pdf", "application/pdf", make([]byte, 10))
	require.NoError(t, err)

	res, err := s.Submit(context.Background())
	var se *common.SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "relay refused")
	assert.Nil(t, res.Email)
	assert.False(t, onSentCalled)

	d := s.Draft()
	assert.Equal(t, "Sponsorship", d.Subject)
	assert.Len(t, d.Attachments, 1)

	r, ok := s.Tracker().Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, progress.StatusComplete, r.Status)

	// Retrying uploads again from scratch.
	remote.sendErr = nil
	_, err = s.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, remote.completes, 2)
}

func TestSubmit_NoAttachments(t *testing.T) {
	remote := &fakeRemote{}
	s := newSession(t, remote, Options{})
	fillDraft(t, s)

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
	require.Len(t, remote.sends, 1)
	assert.Empty(t, remote.sends[0].AttachmentPaths)
}

func TestSubmit_DraftLockedWhileSending(t *testing.T) {
	remote := &fakeRemote{}
	s := newSession(t, remote, Options{})
	fillDraft(t, s)
	_, err := s.AttachBytes("a.bin", "application/octet-stream", []byte("a"))
	require.NoError(t, err)

	var lockedErrs []error
	remote.onChunk = func() {
		assert.True(t, s.Sending())
		lockedErrs = append(lockedErrs,
			s.SetSubject("changed"),
			s.SetBody("changed"),
			s.SetRecipients(nil),
			s.SetSender("renaise.support@iedcbootcampcec.org"),
			s.Reset(),
		)
		_, err := s.AttachBytes("late.bin", "application/octet-stream", []byte("x"))
		lockedErrs = append(lockedErrs, err)

		_, err = s.Submit(context.Background())
		lockedErrs = append(lockedErrs, err)
	}

	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, lockedErrs, 7)
	for _, e := range lockedErrs[:6] {
		assert.ErrorIs(t, e, common.ErrDraftLocked)
	}
	assert.ErrorIs(t, lockedErrs[6], common.ErrSubmissionInProgress)
	assert.Equal(t, "Sponsorship", remote.sends[0].Subject)
	assert.False(t, s.Sending())
}

func TestReset(t *testing.T) {
	s := newSession(t, &fakeRemote{}, Options{})
	require.NoError(t, s.SetSender("renaise.support@iedcbootcampcec.org"))
	fillDraft(t, s)
	_, err := s.AttachBytes("a", "text/plain", []byte("a"))
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	assert.Equal(t, models.Draft{Sender: "renaise@iedcbootcampcec.org"}, s.Draft())
	assert.Empty(t, s.Tracker().Snapshot())
}

func TestDraft_ReturnsCopy(t *testing.T) {
	s := newSession(t, &fakeRemote{}, Options{})
	fillDraft(t, s)

	d := s.Draft()
	d.Recipients[0] = "mutated@example.org"
	assert.Equal(t, "a@example.org", s.Draft().Recipients[0])
}
