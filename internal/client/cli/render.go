package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/dmitrijs2005/chunkmail/internal/client/progress"
)

// isTerminal and terminalSize are test seams for golang.org/x/term.
var (
	isTerminal   = term.IsTerminal
	terminalSize = term.GetSize
)

// progressView draws upload records as they change. On a terminal every
// record has one live line redrawn in place; elsewhere only status changes
// are printed.
type progressView struct {
	mu    sync.Mutex
	out   io.Writer
	tty   bool
	width int

	open    string
	printed map[string]progress.Status

	ok, fail, busy *color.Color
}

// terminalInfo reports whether w is a terminal and its width in columns.
func terminalInfo(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !isTerminal(int(f.Fd())) {
		return false, 80
	}
	if cols, _, err := terminalSize(int(f.Fd())); err == nil && cols > 0 {
		return true, cols
	}
	return true, 80
}

func newProgressView(out io.Writer, tty bool, width int) *progressView {
	v := &progressView{
		out:     out,
		tty:     tty,
		width:   width,
		printed: make(map[string]progress.Status),
		ok:      color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		busy:    color.New(color.FgCyan),
	}
	if !tty {
		for _, c := range []*color.Color{v.ok, v.fail, v.busy} {
			c.DisableColor()
		}
	}
	return v
}

// Update is a progress.Tracker listener.
func (v *progressView) Update(r progress.Record) {
	if r.Status == progress.StatusPending {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.tty {
		if v.printed[r.AttachmentID] == r.Status {
			return
		}
		v.printed[r.AttachmentID] = r.Status
		fmt.Fprintln(v.out, v.line(r))
		return
	}

	if v.open != "" && v.open != r.AttachmentID {
		fmt.Fprintln(v.out)
	}
	fmt.Fprintf(v.out, "\r%s\x1b[K", v.line(r))
	v.open = r.AttachmentID
	if r.Status.Terminal() {
		fmt.Fprintln(v.out)
		v.open = ""
	}
}

// Done closes a line left open by a live redraw.
func (v *progressView) Done() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.open != "" {
		fmt.Fprintln(v.out)
		v.open = ""
	}
	clear(v.printed)
}

func (v *progressView) line(r progress.Record) string {
	barWidth := min(max(v.width-50, 10), 30)
	filled := barWidth * r.Percent / 100
	bar := "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"

	name := r.FileName
	if rs := []rune(name); len(rs) > 24 {
		name = string(rs[:21]) + "..."
	}

	var status string
	switch r.Status {
	case progress.StatusComplete:
		status = v.ok.Sprint("complete")
	case progress.StatusError:
		status = v.fail.Sprint("error: " + r.Err)
	default:
		status = v.busy.Sprint(string(r.Status))
	}
	return fmt.Sprintf("  %-24s %s %3d%% %s", name, bar, r.Percent, status)
}
