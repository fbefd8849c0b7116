// Package mailer accepts send requests, records them and hands them to an
// SMTP relay.
package mailer

import (
	"strings"

	"github.com/dmitrijs2005/chunkmail/internal/common"
)

// Form is the decoded POST /send body.
type Form struct {
	Sender          string
	Recipients      []string
	Subject         string
	Body            string
	AttachmentPaths []string
}

// Validate trims the fields and checks that every one of them is present.
// Addresses must be bare (no display name). Empty recipient entries are
// dropped.
func (f *Form) Validate() error {
	f.Sender = strings.TrimSpace(f.Sender)
	f.Subject = strings.TrimSpace(f.Subject)

	var recipients []string
	for _, r := range f.Recipients {
		for _, part := range strings.Split(r, ",") {
			if part = strings.TrimSpace(part); part != "" {
				recipients = append(recipients, part)
			}
		}
	}
	f.Recipients = recipients

	var paths []string
	for _, p := range f.AttachmentPaths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	f.AttachmentPaths = paths

	switch {
	case f.Sender == "":
		return common.NewValidationError("sender", "is required")
	case !common.BareAddress(f.Sender):
		return common.NewValidationError("sender", "%q is not a valid address", f.Sender)
	case len(f.Recipients) == 0:
		return common.NewValidationError("recipients", "at least one recipient is required")
	case f.Subject == "":
		return common.NewValidationError("subject", "is required")
	case strings.TrimSpace(f.Body) == "":
		return common.NewValidationError("body", "is required")
	}
	for _, r := range f.Recipients {
		if !common.BareAddress(r) {
			return common.NewValidationError("recipients", "%q is not a valid address", r)
		}
	}
	return nil
}
