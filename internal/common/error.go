// Package common defines shared constants and sentinel errors used across
// client and server layers of chunkmail. Callers should use errors.Is to
// match these values and errors.As to inspect the typed ones.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Draft / submission flow control.
	ErrDraftLocked           = errors.New("draft is locked while a submission is in progress")
	ErrSubmissionInProgress  = errors.New("submission already in progress")
	ErrAttachmentNotSelected = errors.New("attachment not selected")

	// Taxonomy roots, matched through the typed errors below.
	ErrValidation     = errors.New("validation error")
	ErrChunkTransport = errors.New("chunk transport error")
	ErrHandshake      = errors.New("upload handshake error")
	ErrSubmission     = errors.New("submission error")
)

// ValidationError rejects a draft or an attachment before any network call.
// Field names the offending draft field ("sender", "recipients", "subject",
// "body", "attachments").
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError is a shorthand for &ValidationError{...} with a
// formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ChunkError reports a failed chunk call. It aborts the job of that file only.
type ChunkError struct {
	FileName string
	Index    int
	Err      error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("failed to upload chunk %d of %s: %v", e.Index, e.FileName, e.Err)
}

func (e *ChunkError) Unwrap() []error { return []error{ErrChunkTransport, e.Err} }

// HandshakeError reports a failed completion call after every chunk of the
// file was acknowledged.
type HandshakeError struct {
	FileName string
	Err      error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("failed to complete upload of %s: %v", e.FileName, e.Err)
}

func (e *HandshakeError) Unwrap() []error { return []error{ErrHandshake, e.Err} }

// SubmissionError reports a failed send call. The draft and the progress
// records are left intact so the user can retry.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to send email: %v", e.Err)
}

func (e *SubmissionError) Unwrap() []error { return []error{ErrSubmission, e.Err} }
