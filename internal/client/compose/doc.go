// Package compose owns the message draft and the submission workflow:
// validate, upload every attachment in order, send the message with the
// collected storage handles, then clear or keep the draft.
//
// A Session is the only writer of its draft. While Submit runs the draft is
// locked and every mutator returns common.ErrDraftLocked.
package compose
