package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the contract routes plus health and metrics.
func NewRouter(h *Handler, log logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(log))
	r.Use(Metrics)

	r.Post(common.RouteUploadChunk, h.UploadChunk)
	r.Post(common.RouteUploadComplete, h.UploadComplete)
	r.Post(common.RouteSend, h.Send)
	r.Get(common.RouteEmails, h.ListEmails)
	r.Get(common.RouteEmails+"/{id}", h.GetEmail)

	r.Get("/health/live", h.Live)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// HTTPServer serves the mail store until its context ends.
type HTTPServer struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	log             logging.Logger
}

func NewHTTPServer(addr string, handler http.Handler, shutdownTimeout time.Duration, log logging.Logger) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		shutdownTimeout: shutdownTimeout,
		log:             log.With("module", "http_server"),
	}
}

// Run listens on the configured address.
func (s *HTTPServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln and shuts down gracefully once ctx is done.
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.log.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		done <- s.srv.Shutdown(shutdownCtx)
	}()

	s.log.Info(ctx, "Starting HTTP server", "address", ln.Addr().String())

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}
