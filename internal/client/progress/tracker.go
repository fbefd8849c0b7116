// Package progress keeps per-attachment upload state for the compose
// workflow. It is the single source of truth for what the user sees per file.
//
// Records are keyed by attachment ID, never by position, so removing or
// reordering other attachments cannot touch an in-flight record.
package progress

import (
	"errors"
	"fmt"
	"sync"
)

// Status is the upload state of one attachment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

var (
	ErrUnknownAttachment = errors.New("unknown attachment")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Record is a copy of one attachment's state.
type Record struct {
	AttachmentID string
	FileName     string
	Status       Status
	Percent      int
	Err          string
	Handle       string
}

// Tracker is safe for concurrent use. Listeners run synchronously on the
// updating goroutine, after the tracker lock is released.
type Tracker struct {
	mu      sync.Mutex
	order   []string
	records map[string]*Record

	subMu  sync.Mutex
	subs   map[int]func(Record)
	nextID int
}

func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]*Record),
		subs:    make(map[int]func(Record)),
	}
}

// Add registers a pending record. Adding an existing ID is a no-op.
func (t *Tracker) Add(id, fileName string) {
	t.mu.Lock()
	if _, ok := t.records[id]; ok {
		t.mu.Unlock()
		return
	}
	r := &Record{AttachmentID: id, FileName: fileName, Status: StatusPending}
	t.records[id] = r
	t.order = append(t.order, id)
	snap := *r
	t.mu.Unlock()

	t.publish(snap)
}

// Remove discards the record for id. Unknown IDs are ignored.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[id]; !ok {
		return
	}
	delete(t.records, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// SetStatus handles the non-terminal move pending -> uploading. Use
// SetComplete and SetError for the terminal ones.
func (t *Tracker) SetStatus(id string, s Status) error {
	return t.update(id, func(r *Record) error {
		switch {
		case s == r.Status:
			return nil
		case s == StatusUploading && r.Status == StatusPending:
			r.Status = StatusUploading
			r.Percent = 0
			return nil
		default:
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, s)
		}
	})
}

// SetProgress publishes percent for an uploading record. Values never go
// backwards and stay below 100 until the handshake succeeds.
func (t *Tracker) SetProgress(id string, percent int) error {
	return t.update(id, func(r *Record) error {
		if r.Status != StatusUploading {
			return fmt.Errorf("%w: progress on %s record", ErrInvalidTransition, r.Status)
		}
		percent = min(max(percent, 0), 99)
		if percent > r.Percent {
			r.Percent = percent
		}
		return nil
	})
}

// SetError marks the record failed. Percent keeps its last value.
func (t *Tracker) SetError(id, msg string) error {
	return t.update(id, func(r *Record) error {
		if r.Status.Terminal() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusError)
		}
		r.Status = StatusError
		r.Err = msg
		return nil
	})
}

// SetComplete records the storage handle and forces percent to 100.
func (t *Tracker) SetComplete(id, handle string) error {
	return t.update(id, func(r *Record) error {
		if r.Status != StatusUploading {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusComplete)
		}
		r.Status = StatusComplete
		r.Percent = 100
		r.Handle = handle
		return nil
	})
}

// Reset returns every record to pending for a new submission attempt. It is
// the only way out of a terminal state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	var changed []Record
	for _, id := range t.order {
		r := t.records[id]
		if r.Status == StatusPending && r.Percent == 0 {
			continue
		}
		*r = Record{AttachmentID: r.AttachmentID, FileName: r.FileName, Status: StatusPending}
		changed = append(changed, *r)
	}
	t.mu.Unlock()

	for _, r := range changed {
		t.publish(r)
	}
}

// Clear drops every record.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]*Record)
	t.order = nil
}

// Get returns a copy of the record for id.
func (t *Tracker) Get(id string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Snapshot returns copies of all records in insertion order.
func (t *Tracker) Snapshot() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.records[id])
	}
	return out
}

// Subscribe registers fn for every published change and returns a function
// that removes it.
func (t *Tracker) Subscribe(fn func(Record)) func() {
	t.subMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.subMu.Unlock()

	return func() {
		t.subMu.Lock()
		delete(t.subs, id)
		t.subMu.Unlock()
	}
}

func (t *Tracker) update(id string, fn func(*Record) error) error {
	t.mu.Lock()
	r, ok := t.records[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAttachment, id)
	}
	before := *r
	if err := fn(r); err != nil {
		t.mu.Unlock()
		return err
	}
	snap := *r
	t.mu.Unlock()

	if snap != before {
		t.publish(snap)
	}
	return nil
}

func (t *Tracker) publish(r Record) {
	t.subMu.Lock()
	fns := make([]func(Record), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.subMu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}
