package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultChunkSize      = 5 << 20
	DefaultMaxFileSize    = 25 << 20
	DefaultMaxAttachments = 3
	DefaultConfirmDelay   = 2 * time.Second
)

// DefaultSenders is the sender allow-list. The first entry is the default
// sender of every new draft.
var DefaultSenders = []string{
	"renaise@iedcbootcampcec.org",
	"renaise.sponsorship@iedcbootcampcec.org",
	"renaise.support@iedcbootcampcec.org",
}

// Compose holds the static limits of the compose workflow. It is built once
// at startup and passed by value to the session; nothing mutates it later.
type Compose struct {
	ChunkSize      int64
	MaxFileSize    int64
	MaxAttachments int
	Senders        []string
	// ConfirmDelay is how long the success message stays up before the
	// sent-mail list is shown.
	ConfirmDelay time.Duration
}

func DefaultCompose() Compose {
	return Compose{
		ChunkSize:      DefaultChunkSize,
		MaxFileSize:    DefaultMaxFileSize,
		MaxAttachments: DefaultMaxAttachments,
		Senders:        append([]string(nil), DefaultSenders...),
		ConfirmDelay:   DefaultConfirmDelay,
	}
}

func (c Compose) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("max file size must be positive, got %d", c.MaxFileSize))
	}
	if c.MaxAttachments <= 0 {
		errs = append(errs, fmt.Errorf("max attachments must be positive, got %d", c.MaxAttachments))
	}
	if len(c.Senders) == 0 {
		errs = append(errs, errors.New("sender allow-list is empty"))
	}
	if c.ConfirmDelay < 0 {
		errs = append(errs, fmt.Errorf("confirm delay must not be negative, got %s", c.ConfirmDelay))
	}
	return errors.Join(errs...)
}

// AllowedSender reports whether s is on the allow-list.
func (c Compose) AllowedSender(s string) bool {
	for _, v := range c.Senders {
		if v == s {
			return true
		}
	}
	return false
}
