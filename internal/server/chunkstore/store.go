// Package chunkstore keeps uploaded chunks on disk until the client
// completes the upload, then stitches them into one file.
package chunkstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/filex"
)

const maxIDLen = 64

var (
	ErrInvalidID     = fmt.Errorf("%w: invalid file id", common.ErrValidation)
	ErrInvalidIndex  = fmt.Errorf("%w: chunk index out of range", common.ErrValidation)
	ErrChunkTooLarge = fmt.Errorf("%w: chunk too large", common.ErrValidation)
	ErrTotalMismatch = fmt.Errorf("%w: total chunks changed between calls", common.ErrValidation)
	ErrMissingChunk  = fmt.Errorf("%w: missing chunk", common.ErrValidation)
)

// Store writes each chunk to <dir>/<fileId>/<index>.part.
type Store struct {
	dir      string
	maxChunk int64

	mu      sync.Mutex
	uploads map[string]*upload
	now     func() time.Time
}

// upload is the in-memory state of one unfinished file.
type upload struct {
	total   int
	touched time.Time
}

// New prepares <root>/chunks. maxChunk bounds a single chunk body.
func New(root string, maxChunk int64) (*Store, error) {
	dir, err := filex.EnsureDir(root, "chunks")
	if err != nil {
		return nil, err
	}
	return &Store{
		dir:      dir,
		maxChunk: maxChunk,
		uploads:  make(map[string]*upload),
		now:      time.Now,
	}, nil
}

// ValidID reports whether id is usable as a directory name: 1 to 64
// characters from [A-Za-z0-9_-].
func ValidID(id string) bool {
	if id == "" || len(id) > maxIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func (s *Store) partPath(fileID string, index int) string {
	return filepath.Join(s.dir, fileID, fmt.Sprintf("%06d.part", index))
}

// checkTotal records total for fileID on first use and rejects a different
// value afterwards. Every accepted call refreshes the upload's last activity.
func (s *Store) checkTotal(fileID string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.uploads[fileID]; ok {
		if u.total != total {
			return fmt.Errorf("%w: got %d, first saw %d", ErrTotalMismatch, total, u.total)
		}
		u.touched = s.now()
		return nil
	}
	s.uploads[fileID] = &upload{total: total, touched: s.now()}
	return nil
}

// Save stores chunk index of total for fileID. Re-sending an index replaces
// the earlier copy. It returns the number of bytes written.
func (s *Store) Save(fileID string, index, total int, r io.Reader) (int64, error) {
	if !ValidID(fileID) {
		return 0, ErrInvalidID
	}
	if total <= 0 || index < 0 || index >= total {
		return 0, fmt.Errorf("%w: index %d, total %d", ErrInvalidIndex, index, total)
	}
	if err := s.checkTotal(fileID, total); err != nil {
		return 0, err
	}

	dir := filepath.Join(s.dir, fileID)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return 0, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	full := s.partPath(fileID, index)
	tmp, err := os.CreateTemp(dir, "incoming-*")
	if err != nil {
		return 0, fmt.Errorf("create temp chunk: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, io.LimitReader(r, s.maxChunk+1))
	if err == nil && n > s.maxChunk {
		err = fmt.Errorf("%w: limit is %d bytes", ErrChunkTooLarge, s.maxChunk)
	}
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close chunk: %w", cerr)
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("store chunk: %w", err)
	}
	return n, nil
}

// Assembly is the stitched file. Close removes it from disk.
type Assembly struct {
	*os.File
	Size int64
}

func (a *Assembly) Close() error {
	name := a.File.Name()
	err := a.File.Close()
	if rerr := os.Remove(name); err == nil && rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		err = rerr
	}
	return err
}

// Assemble concatenates chunks 0..total-1 of fileID in order. Every index
// must be present, otherwise ErrMissingChunk names the first gap. The
// returned Assembly is positioned at its start.
func (s *Store) Assemble(fileID string, total int) (*Assembly, error) {
	if !ValidID(fileID) {
		return nil, ErrInvalidID
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: total %d", ErrInvalidIndex, total)
	}
	if err := s.checkTotal(fileID, total); err != nil {
		return nil, err
	}

	for i := range total {
		if _, err := os.Stat(s.partPath(fileID, i)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %d of %d", ErrMissingChunk, i, total)
			}
			return nil, fmt.Errorf("stat chunk %d: %w", i, err)
		}
	}

	out, err := os.CreateTemp(s.dir, fileID+"-assembled-*")
	if err != nil {
		return nil, fmt.Errorf("create assembly: %w", err)
	}
	a := &Assembly{File: out}

	for i := range total {
		n, err := appendPart(out, s.partPath(fileID, i))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("append chunk %d: %w", i, err)
		}
		a.Size += n
	}

	if _, err := out.Seek(0, io.SeekStart); err != nil {
		a.Close()
		return nil, fmt.Errorf("rewind assembly: %w", err)
	}
	return a, nil
}

func appendPart(dst io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(dst, f)
}

// Discard drops every chunk of fileID. Unknown ids are not an error.
func (s *Store) Discard(fileID string) error {
	if !ValidID(fileID) {
		return ErrInvalidID
	}
	s.mu.Lock()
	delete(s.uploads, fileID)
	s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.dir, fileID)); err != nil {
		return fmt.Errorf("discard %s: %w", fileID, err)
	}
	return nil
}

// PurgeStale discards uploads with no chunk activity for maxAge. Chunk
// directories the store has no record of, left over from an earlier
// process, are judged by their modification time. It returns the purged ids.
func (s *Store) PurgeStale(maxAge time.Duration) ([]string, error) {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	var stale []string
	for id, u := range s.uploads {
		if u.touched.Before(cutoff) {
			stale = append(stale, id)
			delete(s.uploads, id)
		}
	}
	known := make(map[string]struct{}, len(s.uploads))
	for id := range s.uploads {
		known[id] = struct{}{}
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() || !ValidID(e.Name()) {
			continue
		}
		if _, ok := known[e.Name()]; ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) && !slices.Contains(stale, e.Name()) {
			stale = append(stale, e.Name())
		}
	}

	var errs []error
	purged := stale[:0]
	for _, id := range stale {
		if err := os.RemoveAll(filepath.Join(s.dir, id)); err != nil {
			errs = append(errs, fmt.Errorf("purge %s: %w", id, err))
			continue
		}
		purged = append(purged, id)
	}
	return purged, errors.Join(errs...)
}
