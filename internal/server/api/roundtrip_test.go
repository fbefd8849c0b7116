package api_test

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/client/compose"
	"github.com/dmitrijs2005/chunkmail/internal/client/config"
	"github.com/dmitrijs2005/chunkmail/internal/client/progress"
	"github.com/dmitrijs2005/chunkmail/internal/client/transport"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
	"github.com/dmitrijs2005/chunkmail/internal/server/api"
	"github.com/dmitrijs2005/chunkmail/internal/server/chunkstore"
	"github.com/dmitrijs2005/chunkmail/internal/server/mailer"
	"github.com/dmitrijs2005/chunkmail/internal/server/objectstore"
	"github.com/dmitrijs2005/chunkmail/internal/server/repositories/emails"
	"github.com/dmitrijs2005/chunkmail/internal/server/uploads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kib = 1024

// TestClientAgainstServer drives the compose session through the real HTTP
// transport into the reference server.
func TestClientAgainstServer(t *testing.T) {
	log := logging.Discard()
	root := t.TempDir()

	chunks, err := chunkstore.New(root, 4*kib)
	require.NoError(t, err)
	objects, err := objectstore.NewLocalStore(root)
	require.NoError(t, err)
	up := uploads.NewService(chunks, objects, 4*kib, 64*kib, log)
	ms := mailer.NewService(emails.NewInMemoryRepository(), objects, nil, log)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(up, ms, 4*kib, log), log))
	defer srv.Close()

	remote, err := transport.New(transport.Options{BaseURL: srv.URL, Timeout: 5 * time.Second}, log)
	require.NoError(t, err)

	cfg := config.DefaultCompose()
	cfg.ChunkSize = 4 * kib
	cfg.MaxFileSize = 64 * kib
	cfg.ConfirmDelay = time.Millisecond
	s := compose.NewSession(cfg, remote, progress.NewTracker(), log, compose.Options{})

	require.NoError(t, s.SetRecipients([]string{"a@example.org"}))
	require.NoError(t, s.SetSubject("Deck"))
	require.NoError(t, s.SetBody("Attached."))

	deck := bytes.Repeat([]byte("0123456789"), 1000)
	_, err = s.AttachBytes("deck.pdf", "application/pdf", deck)
	require.NoError(t, err)
	_, err = s.AttachBytes("empty.txt", "text/plain", nil)
	require.NoError(t, err)

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Failed())
	require.NotNil(t, res.Email)
	require.Len(t, res.Email.AttachmentPaths, 2)

	rc, err := objects.Open(context.Background(), res.Email.AttachmentPaths[0])
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, deck, got)
	assert.Equal(t, "deck.pdf", objectstore.BaseName(res.Email.AttachmentPaths[0]))

	list, err := remote.ListEmails(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.Email.ID, list[0].ID)

	one, err := remote.GetEmail(context.Background(), res.Email.ID)
	require.NoError(t, err)
	assert.Equal(t, "Deck", one.Subject)
}
