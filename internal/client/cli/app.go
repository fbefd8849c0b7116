package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/chunkmail/internal/client/compose"
	"github.com/dmitrijs2005/chunkmail/internal/client/config"
	"github.com/dmitrijs2005/chunkmail/internal/client/models"
	"github.com/dmitrijs2005/chunkmail/internal/client/progress"
	"github.com/dmitrijs2005/chunkmail/internal/client/repositories"
	"github.com/dmitrijs2005/chunkmail/internal/client/services"
	"github.com/dmitrijs2005/chunkmail/internal/client/transport"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config  *config.Config
	session *compose.Session
	mail    services.MailService
	reader  *bufio.Reader
	out     io.Writer
	view    *progressView
	log     logging.Logger
	closeFn func() error

	mu   sync.Mutex
	Mode Mode
}

// NewApp opens the local cache, builds the HTTP transport and the compose
// session, and reads commands from in.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer, log logging.Logger) (*App, error) {
	repos, err := repositories.InitDatabase(ctx, c.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("init local database: %w", err)
	}

	remote, err := transport.New(transport.Options{
		BaseURL:      c.ServerURL,
		Timeout:      c.HTTPTimeout,
		ChunkRetries: c.ChunkRetries,
		RetryBackoff: c.RetryBackoff,
	}, log)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	a := newApp(c, remote, services.NewMailService(remote, repos.History, log), in, out, log)
	a.closeFn = repos.Close
	return a, nil
}

func newApp(c *config.Config, remote compose.Remote, mail services.MailService, in io.Reader, out io.Writer, log logging.Logger) *App {
	tty, width := terminalInfo(out)
	out = &syncWriter{w: out}
	a := &App{
		config: c,
		mail:   mail,
		reader: bufio.NewReader(in),
		out:    out,
		view:   newProgressView(out, tty, width),
		log:    log,
	}
	a.session = compose.NewSession(c.Compose, remote, progress.NewTracker(), log, compose.Options{
		RequireAllAttachments: c.RequireAllAttachments,
		OnSent:                a.onSent,
	})
	return a
}

// Run blocks in the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out, "chunkmail client (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
	if a.closeFn != nil {
		return a.closeFn()
	}
	return nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		a.log.Info(context.Background(), "connection mode changed", "mode", mode)
	}
}

// noteReachability switches the mode based on the outcome of a remote call.
func (a *App) noteReachability(err error) {
	switch {
	case err == nil:
		a.setMode(ModeOnline)
	case errors.Is(err, transport.ErrUnavailable):
		a.setMode(ModeOffline)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) getStatus() string {
	mode := a.mode()

	s := ""
	if a.session.Sending() {
		s = "sending"
	}
	if mode != "" {
		if s != "" {
			s += " "
		}
		s += string(mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// onSent runs after the confirmation delay of a successful send: it caches
// the record and switches to the sent list.
func (a *App) onSent(e models.Email) {
	ctx := context.Background()
	if err := a.mail.Remember(ctx, e); err != nil {
		a.log.Warn(ctx, "failed to cache sent email", "id", e.ID, "error", err)
	}
	fmt.Fprintln(a.out)
	if err := a.List(ctx); err != nil {
		fmt.Fprintln(a.out, "Error:", err)
	}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
