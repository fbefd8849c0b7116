// Package uploads turns chunk streams into stored attachments.
package uploads

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
	"github.com/dmitrijs2005/chunkmail/internal/server/chunkstore"
	"github.com/dmitrijs2005/chunkmail/internal/server/objectstore"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// completedCacheSize bounds how many finished uploads remember their handle.
const completedCacheSize = 1024

var ErrFileTooLarge = fmt.Errorf("%w: file too large", common.ErrValidation)

var (
	chunksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chunkmail_upload_chunks_total",
		Help: "Chunks accepted by the upload endpoint.",
	})
	uploadsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunkmail_uploads_completed_total",
		Help: "Upload completions by result.",
	}, []string{"result"})
	uploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chunkmail_uploaded_bytes_total",
		Help: "Bytes written to object storage by completed uploads.",
	})
)

// Chunk is one POST /upload/chunk call.
type Chunk struct {
	FileID   string
	FileName string
	Index    int
	Total    int
	Body     io.Reader
}

// Completion is one POST /upload/complete call.
type Completion struct {
	FileID      string
	FileName    string
	TotalChunks int
	MIMEType    string
}

type Service struct {
	chunks      *chunkstore.Store
	objects     objectstore.Store
	maxChunk    int64
	maxFileSize int64
	completed   *lru.Cache[string, string]
	group       singleflight.Group
	now         func() time.Time
	log         logging.Logger
}

func NewService(chunks *chunkstore.Store, objects objectstore.Store, maxChunk, maxFileSize int64, log logging.Logger) *Service {
	cache, err := lru.New[string, string](completedCacheSize)
	if err != nil {
		panic(err)
	}
	return &Service{
		chunks:      chunks,
		objects:     objects,
		maxChunk:    maxChunk,
		maxFileSize: maxFileSize,
		completed:   cache,
		now:         time.Now,
		log:         log.With("component", "uploads"),
	}
}

// maxTotal is the largest chunk count a file within the size limit needs.
func (s *Service) maxTotal() int {
	return int(max(1, (s.maxFileSize+s.maxChunk-1)/s.maxChunk))
}

// AcceptChunk stores one chunk.
func (s *Service) AcceptChunk(ctx context.Context, c Chunk) error {
	if c.FileName == "" {
		return common.NewValidationError("fileName", "is required")
	}
	if c.Total > s.maxTotal() {
		return fmt.Errorf("%w: %d chunks exceed the %d byte limit", ErrFileTooLarge, c.Total, s.maxFileSize)
	}

	n, err := s.chunks.Save(c.FileID, c.Index, c.Total, c.Body)
	if err != nil {
		return err
	}
	chunksReceived.Inc()
	s.log.Debug(ctx, "chunk stored", "upload_id", c.FileID, "chunk", c.Index, "total", c.Total, "bytes", n)
	return nil
}

// Complete assembles the chunks, stores the result and returns its handle.
// Completing the same fileId again returns the handle issued the first
// time. Concurrent completions of one fileId share a single assembly.
func (s *Service) Complete(ctx context.Context, c Completion) (string, error) {
	if !chunkstore.ValidID(c.FileID) {
		return "", chunkstore.ErrInvalidID
	}
	if c.FileName == "" {
		return "", common.NewValidationError("fileName", "is required")
	}
	if handle, ok := s.completed.Get(c.FileID); ok {
		uploadsCompleted.WithLabelValues("cached").Inc()
		return handle, nil
	}

	v, err, _ := s.group.Do(c.FileID, func() (any, error) {
		if handle, ok := s.completed.Get(c.FileID); ok {
			return handle, nil
		}
		return s.complete(ctx, c)
	})
	if err != nil {
		uploadsCompleted.WithLabelValues("error").Inc()
		return "", err
	}
	uploadsCompleted.WithLabelValues("ok").Inc()
	return v.(string), nil
}

func (s *Service) complete(ctx context.Context, c Completion) (string, error) {
	a, err := s.chunks.Assemble(c.FileID, c.TotalChunks)
	if err != nil {
		return "", err
	}
	defer a.Close()

	if a.Size > s.maxFileSize {
		if derr := s.chunks.Discard(c.FileID); derr != nil {
			s.log.Warn(ctx, "discard chunks failed", "upload_id", c.FileID, "error", derr)
		}
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrFileTooLarge, a.Size, s.maxFileSize)
	}

	key := objectstore.NewKey(s.now(), c.FileName)
	if err := s.objects.Put(ctx, key, a, a.Size, c.MIMEType); err != nil {
		return "", fmt.Errorf("store attachment: %w", err)
	}
	uploadedBytes.Add(float64(a.Size))

	if err := s.chunks.Discard(c.FileID); err != nil {
		s.log.Warn(ctx, "discard chunks failed", "upload_id", c.FileID, "error", err)
	}
	s.completed.Add(c.FileID, key)

	s.log.Info(ctx, "upload completed", "upload_id", c.FileID, "file", c.FileName, "bytes", a.Size, "path", key)
	return key, nil
}
