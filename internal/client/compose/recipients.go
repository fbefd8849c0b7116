package compose

import (
	"strings"

	"github.com/dmitrijs2005/chunkmail/internal/common"
)

// ParseRecipients splits a comma-separated list, trims each entry and drops
// empty ones. It does not validate addresses.
func ParseRecipients(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateRecipients(rs []string) error {
	if len(rs) == 0 {
		return common.NewValidationError("recipients", "at least one recipient is required")
	}
	for _, r := range rs {
		if !common.BareAddress(r) {
			return common.NewValidationError("recipients", "invalid address %q", r)
		}
	}
	return nil
}
