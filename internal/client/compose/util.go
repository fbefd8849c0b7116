package compose

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// formatSize renders whole mebibytes as "25MB", the wording users see in
// the size limit message. Other sizes go through humanize.
func formatSize(n int64) string {
	const mib = 1 << 20
	if n > 0 && n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return humanize.IBytes(uint64(max(n, 0)))
}
