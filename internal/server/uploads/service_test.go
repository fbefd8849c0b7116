package uploads

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
	"github.com/dmitrijs2005/chunkmail/internal/server/chunkstore"
	"github.com/dmitrijs2005/chunkmail/internal/server/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	objectstore.Store
	mu   sync.Mutex
	puts int
	err  error
}

func (f *flakyStore) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) error {
	f.mu.Lock()
	f.puts++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Put(ctx, key, r, size, ct)
}

func newService(t *testing.T, maxChunk, maxFile int64) (*Service, *flakyStore) {
	t.Helper()
	root := t.TempDir()
	chunks, err := chunkstore.New(root, maxChunk)
	require.NoError(t, err)
	local, err := objectstore.NewLocalStore(root)
	require.NoError(t, err)
	objects := &flakyStore{Store: local}

	s := NewService(chunks, objects, maxChunk, maxFile, logging.Discard())
	s.now = func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) }
	return s, objects
}

func sendAll(t *testing.T, s *Service, id, name string, parts ...string) {
	t.Helper()
	for i, p := range parts {
		require.NoError(t, s.AcceptChunk(context.Background(), Chunk{
			FileID: id, FileName: name, Index: i, Total: len(parts), Body: strings.NewReader(p),
		}))
	}
}

func readObject(t *testing.T, s *Service, key string) string {
	t.Helper()
	rc, err := s.objects.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestComplete_StoresAssembledObject(t *testing.T) {
	s, _ := newService(t, 4, 64)
	sendAll(t, s, "u1", "notes.txt", "abcd", "efgh", "ij")

	key, err := s.Complete(context.Background(), Completion{FileID: "u1", FileName: "notes.txt", TotalChunks: 3, MIMEType: "text/plain"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "attachments/2026/10/14/"), key)
	assert.Equal(t, "notes.txt", objectstore.BaseName(key))
	assert.Equal(t, "abcdefghij", readObject(t, s, key))
}

func TestComplete_RepeatReturnsCachedHandle(t *testing.T) {
	s, objects := newService(t, 4, 64)
	sendAll(t, s, "u2", "a.bin", "xy")

	first, err := s.Complete(context.Background(), Completion{FileID: "u2", FileName: "a.bin", TotalChunks: 1})
	require.NoError(t, err)
	second, err := s.Complete(context.Background(), Completion{FileID: "u2", FileName: "a.bin", TotalChunks: 1})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, objects.puts)
}

func TestComplete_ConcurrentSameID(t *testing.T) {
	s, objects := newService(t, 4, 64)
	sendAll(t, s, "u3", "a.bin", "xy", "z")

	var wg sync.WaitGroup
	handles := make([]string, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.Complete(context.Background(), Completion{FileID: "u3", FileName: "a.bin", TotalChunks: 2})
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	for _, h := range handles {
		assert.Equal(t, handles[0], h)
	}
	assert.Equal(t, 1, objects.puts)
}

func TestComplete_MissingChunk(t *testing.T) {
	s, _ := newService(t, 4, 64)
	require.NoError(t, s.AcceptChunk(context.Background(), Chunk{FileID: "u4", FileName: "a", Index: 1, Total: 2, Body: strings.NewReader("x")}))

	_, err := s.Complete(context.Background(), Completion{FileID: "u4", FileName: "a", TotalChunks: 2})
	require.ErrorIs(t, err, chunkstore.ErrMissingChunk)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestComplete_TooLarge(t *testing.T) {
	s, objects := newService(t, 4, 6)
	sendAll(t, s, "u5", "big", "abcd", "efgh")

	_, err := s.Complete(context.Background(), Completion{FileID: "u5", FileName: "big", TotalChunks: 2})
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Zero(t, objects.puts)

	_, err = s.Complete(context.Background(), Completion{FileID: "u5", FileName: "big", TotalChunks: 2})
	require.ErrorIs(t, err, chunkstore.ErrMissingChunk, "oversized chunks are discarded")
}

func TestAcceptChunk_RejectsTooManyChunks(t *testing.T) {
	s, _ := newService(t, 4, 8)

	err := s.AcceptChunk(context.Background(), Chunk{FileID: "u6", FileName: "a", Index: 0, Total: 3, Body: bytes.NewReader(nil)})
	require.ErrorIs(t, err, ErrFileTooLarge)

	err = s.AcceptChunk(context.Background(), Chunk{FileID: "u6", FileName: "", Index: 0, Total: 1, Body: bytes.NewReader(nil)})
	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "fileName", ve.Field)
}

func TestComplete_StoreFailureIsRetryable(t *testing.T) {
	s, objects := newService(t, 4, 64)
	sendAll(t, s, "u7", "a", "abc")

	objects.err = errors.New("disk full")
	_, err := s.Complete(context.Background(), Completion{FileID: "u7", FileName: "a", TotalChunks: 1})
	require.ErrorContains(t, err, "disk full")

	objects.err = nil
	key, err := s.Complete(context.Background(), Completion{FileID: "u7", FileName: "a", TotalChunks: 1})
	require.NoError(t, err)
	assert.Equal(t, "abc", readObject(t, s, key))
}

func TestComplete_InvalidInput(t *testing.T) {
	s, _ := newService(t, 4, 64)

	_, err := s.Complete(context.Background(), Completion{FileID: "../x", FileName: "a", TotalChunks: 1})
	require.ErrorIs(t, err, chunkstore.ErrInvalidID)

	_, err = s.Complete(context.Background(), Completion{FileID: "ok", TotalChunks: 1})
	require.ErrorIs(t, err, common.ErrValidation)
}
