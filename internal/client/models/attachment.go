package models

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Opener yields a fresh reader over an attachment's bytes. The upload job
// opens the source once per attempt and reads it front to back.
type Opener func() (io.ReadCloser, error)

// Attachment is a user-selected binary blob. It is immutable once selected;
// ID is the identity used by the progress tracker.
type Attachment struct {
	ID       string
	Name     string
	Size     int64
	MIMEType string
	Open     Opener
}

// NewFileAttachment stats the file at path and returns an attachment that
// reopens it on demand. The MIME type is taken from the extension, falling
// back to content sniffing.
func NewFileAttachment(path string) (Attachment, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return Attachment{}, fmt.Errorf("%s is a directory", path)
	}

	mimeType, err := detectFileMIME(path)
	if err != nil {
		return Attachment{}, err
	}

	return Attachment{
		ID:       uuid.NewString(),
		Name:     filepath.Base(path),
		Size:     fi.Size(),
		MIMEType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// NewBytesAttachment wraps an in-memory payload.
func NewBytesAttachment(name, mimeType string, data []byte) Attachment {
	return Attachment{
		ID:       uuid.NewString(),
		Name:     name,
		Size:     int64(len(data)),
		MIMEType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func detectFileMIME(path string) (string, error) {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return http.DetectContentType(head[:n]), nil
}
