// Package transport talks to the remote mail store over its HTTP contract:
// chunk intake, the completion handshake, send, and the sent-mail list.
//
// Every call is one independent exchange. Nothing here keeps upload state;
// the caller (the upload job) owns ordering.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chunkmail/internal/client/models"
)

// ErrUnavailable is returned (wrapped) when the mail store cannot be reached.
var ErrUnavailable = errors.New("server unavailable")

// ChunkRequest is one byte range of a file. Index and Total travel as query
// parameters so the store can validate ordering without inspecting Data.
type ChunkRequest struct {
	UploadID string
	FileName string
	Index    int
	Total    int
	Data     []byte
}

// CompleteRequest asks the store to assemble every chunk received under
// UploadID into one object.
type CompleteRequest struct {
	UploadID    string `json:"fileId"`
	FileName    string `json:"fileName"`
	TotalChunks int    `json:"totalChunks"`
	MIMEType    string `json:"mimeType"`
}

type completeResponse struct {
	FilePath string `json:"filePath"`
}

// Outbound is the final send payload. Attachments are referenced by storage
// handle only; raw bytes never travel with it.
type Outbound struct {
	Sender          string
	Recipients      []string
	Subject         string
	Body            string
	AttachmentPaths []string
}

// ChunkTransport moves a file to the store piece by piece.
type ChunkTransport interface {
	SendChunk(ctx context.Context, req ChunkRequest) error
	// CompleteUpload returns the storage handle of the assembled object.
	// Calling it before every chunk was acknowledged is a caller error.
	CompleteUpload(ctx context.Context, req CompleteRequest) (string, error)
}

// Sender submits the final message.
type Sender interface {
	Send(ctx context.Context, msg Outbound) (*models.Email, error)
}

// Mailbox reads previously sent messages.
type Mailbox interface {
	ListEmails(ctx context.Context) ([]models.Email, error)
	GetEmail(ctx context.Context, id int64) (*models.Email, error)
}

// Client is the full remote contract.
type Client interface {
	ChunkTransport
	Sender
	Mailbox
}

// StatusError is a non-2xx answer from the store.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500
}
