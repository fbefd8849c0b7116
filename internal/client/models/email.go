// Package models defines client-side data models used by the chunkmail CLI.
package models

import (
	"fmt"
	"strings"
	"time"
)

// EmailStatus is the delivery state the mail store reports for a message.
type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

// Email is a message record persisted by the mail store, as returned by
// POST /send and GET /emails.
type Email struct {
	ID              int64       `json:"id"`
	Sender          string      `json:"sender"`
	Recipients      []string    `json:"recipients"`
	Subject         string      `json:"subject"`
	Body            string      `json:"body"`
	SentAt          time.Time   `json:"sentAt"`
	Status          EmailStatus `json:"status"`
	AttachmentPaths []string    `json:"attachmentPaths,omitempty"`
}

// Overview is a one-line summary for list views.
func (e Email) Overview() string {
	return fmt.Sprintf("#%d  %s  %-7s  %s -> %s  %q",
		e.ID, e.SentAt.Local().Format("2006-01-02 15:04"), e.Status, e.Sender, strings.Join(e.Recipients, ", "), e.Subject)
}

// Draft is the in-progress message before submission.
type Draft struct {
	Sender      string
	Recipients  []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Clone returns a copy whose slices do not alias d's.
func (d Draft) Clone() Draft {
	c := d
	c.Recipients = append([]string(nil), d.Recipients...)
	c.Attachments = append([]Attachment(nil), d.Attachments...)
	return c
}
