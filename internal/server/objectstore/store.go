// Package objectstore holds assembled attachments under stable keys. The
// key is the attachment handle the client later passes to /send.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/filex"
	"github.com/google/uuid"
)

const keyPrefix = "attachments/"

// Store is a flat key/blob store.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open returns common.ErrorNotFound for unknown keys.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// NewKey returns attachments/YYYY/MM/DD/<uuid>/<name> with name reduced
// to a safe single path element.
func NewKey(now time.Time, name string) string {
	now = now.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s/%s",
		keyPrefix, now.Year(), now.Month(), now.Day(), uuid.New(), filex.SafeName(name))
}

// ValidKey reports whether key has the shape NewKey produces, without
// parent references. It gates client-supplied handles.
func ValidKey(key string) bool {
	if !strings.HasPrefix(key, keyPrefix) || strings.Contains(key, "\\") {
		return false
	}
	parts := strings.Split(strings.TrimPrefix(key, keyPrefix), "/")
	if len(parts) != 5 {
		return false
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return false
		}
	}
	_, err := uuid.Parse(parts[3])
	return err == nil
}

// BaseName returns the file name part of key.
func BaseName(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}
