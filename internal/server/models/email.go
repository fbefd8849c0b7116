// Package models defines the records the mail store persists.
package models

import "time"

type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

// Email is one submitted message. The JSON shape is what /send and
// /emails return.
type Email struct {
	ID              int64       `json:"id"`
	Sender          string      `json:"sender"`
	Recipients      []string    `json:"recipients"`
	Subject         string      `json:"subject"`
	Body            string      `json:"body"`
	SentAt          time.Time   `json:"sentAt"`
	Status          EmailStatus `json:"status"`
	AttachmentPaths []string    `json:"attachmentPaths"`
}
