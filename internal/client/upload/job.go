// Package upload runs the per-file chunked upload: fresh identifier, every
// chunk in ascending order, then the completion handshake.
package upload

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/chunkmail/internal/client/chunk"
	"github.com/dmitrijs2005/chunkmail/internal/client/models"
	"github.com/dmitrijs2005/chunkmail/internal/client/progress"
	"github.com/dmitrijs2005/chunkmail/internal/client/transport"
	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
)

// Uploader runs jobs one at a time and reuses a single chunk buffer between
// them, so at most one chunk of bytes is resident. It must not be used from
// more than one goroutine at once.
type Uploader struct {
	transport transport.ChunkTransport
	tracker   *progress.Tracker
	chunkSize int64
	log       logging.Logger

	buf   []byte
	newID func() string
}

func NewUploader(t transport.ChunkTransport, tracker *progress.Tracker, chunkSize int64, log logging.Logger) *Uploader {
	if log == nil {
		log = logging.Discard()
	}
	return &Uploader{
		transport: t,
		tracker:   tracker,
		chunkSize: chunkSize,
		log:       log.With("component", "upload"),
		newID:     uuid.NewString,
	}
}

// Run uploads a and returns its storage handle. The attachment's progress
// record must already be registered with the tracker and be pending.
//
// A failed chunk stops the job: no later chunk is sent and the handshake is
// skipped. The error is a *common.ChunkError or *common.HandshakeError and is
// also recorded on the tracker.
func (u *Uploader) Run(ctx context.Context, a models.Attachment) (string, error) {
	uploadID := u.newID()
	plan := chunk.New(a.Size, u.chunkSize)
	total := plan.Total()
	log := u.log.With("upload_id", uploadID, "file", a.Name)

	if err := u.tracker.SetStatus(a.ID, progress.StatusUploading); err != nil {
		return "", err
	}
	log.Debug(ctx, "upload started", "size", a.Size, "chunks", total)

	if err := u.sendChunks(ctx, a, uploadID, plan); err != nil {
		log.Warn(ctx, "chunk upload failed", "error", err)
		u.fail(a.ID, err)
		return "", err
	}

	handle, err := u.transport.CompleteUpload(ctx, transport.CompleteRequest{
		UploadID:    uploadID,
		FileName:    a.Name,
		TotalChunks: total,
		MIMEType:    a.MIMEType,
	})
	if err != nil {
		herr := &common.HandshakeError{FileName: a.Name, Err: err}
		log.Warn(ctx, "upload handshake failed", "error", err)
		u.fail(a.ID, herr)
		return "", herr
	}

	if err := u.tracker.SetComplete(a.ID, handle); err != nil {
		return "", err
	}
	log.Info(ctx, "upload complete", "handle", handle)
	return handle, nil
}

func (u *Uploader) sendChunks(ctx context.Context, a models.Attachment, uploadID string, plan chunk.Plan) error {
	total := plan.Total()

	src, err := a.Open()
	if err != nil {
		return &common.ChunkError{FileName: a.Name, Index: 0, Err: fmt.Errorf("open: %w", err)}
	}
	defer src.Close()

	if int64(cap(u.buf)) < u.chunkSize {
		u.buf = make([]byte, u.chunkSize)
	}

	for i, r := range plan.All() {
		data := u.buf[:r.Len()]
		if _, err := io.ReadFull(src, data); err != nil {
			return &common.ChunkError{FileName: a.Name, Index: i, Err: fmt.Errorf("read bytes %d-%d: %w", r.Start, r.End, err)}
		}

		err := u.transport.SendChunk(ctx, transport.ChunkRequest{
			UploadID: uploadID,
			FileName: a.Name,
			Index:    i,
			Total:    total,
			Data:     data,
		})
		if err != nil {
			return &common.ChunkError{FileName: a.Name, Index: i, Err: err}
		}

		_ = u.tracker.SetProgress(a.ID, percent(i, total))
	}
	return nil
}

func (u *Uploader) fail(id string, err error) {
	_ = u.tracker.SetError(id, err.Error())
}

// percent is round(100*(i+1)/total) in integer arithmetic.
func percent(i, total int) int {
	return (200*(i+1) + total) / (2 * total)
}
