// Package server assembles the reference mail store: storage backends,
// upload and mail services, and the HTTP server, with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/chunkmail/internal/logging"
	"github.com/dmitrijs2005/chunkmail/internal/server/api"
	"github.com/dmitrijs2005/chunkmail/internal/server/chunkstore"
	"github.com/dmitrijs2005/chunkmail/internal/server/config"
	"github.com/dmitrijs2005/chunkmail/internal/server/mailer"
	"github.com/dmitrijs2005/chunkmail/internal/server/objectstore"
	"github.com/dmitrijs2005/chunkmail/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chunkmail/internal/server/uploads"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	uploads *uploads.Service
	server  *api.HTTPServer
}

func newObjectStore(ctx context.Context, c *config.Config) (objectstore.Store, error) {
	if c.ObjectStorage == config.StorageS3 {
		return objectstore.NewS3Store(ctx, objectstore.S3Options{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	}
	return objectstore.NewLocalStore(c.DataDir)
}

// NewApp opens storage, applies migrations and wires the HTTP handlers.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	repos, err := repomanager.Open(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		repos.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	chunks, err := chunkstore.New(c.DataDir, c.MaxChunkSize)
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("chunk store init error: %w", err)
	}
	objects, err := newObjectStore(ctx, c)
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	var relay mailer.Relay
	if c.SMTPRelay != "" {
		relay = mailer.NewSMTPRelay(c.SMTPRelay, c.SMTPUser, c.SMTPPassword)
	}

	us := uploads.NewService(chunks, objects, c.MaxChunkSize, c.MaxFileSize, logger)
	ms := mailer.NewService(repos.Emails(), objects, relay, logger)
	handler := api.NewHandler(us, ms, c.MaxChunkSize, logger)
	srv := api.NewHTTPServer(c.ListenAddr, api.NewRouter(handler, logger), c.ShutdownTimeout, logger)

	logger.Info(ctx, "app configured",
		"listen", c.ListenAddr,
		"database", c.DatabaseDSN != "",
		"object_storage", c.ObjectStorage,
		"smtp_relay", c.SMTPRelay != "")

	return &App{config: c, logger: logger, repos: repos, uploads: us, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		if _, ok := <-sigs; ok {
			cancelFunc()
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(sigs)
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.config.ListenAddr)
	if err != nil {
		app.repos.Close()
		return err
	}
	return app.serve(ctx, ln)
}

func (app *App) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	stopSignals := app.initSignalHandler(cancelFunc)
	defer stopSignals()

	var (
		wg     sync.WaitGroup
		runErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		app.uploads.RunJanitor(ctx, app.config.CleanupInterval, app.config.UploadTTL)
	}()
	go func() {
		defer wg.Done()
		if err := app.server.Serve(ctx, ln); err != nil {
			app.logger.Error(ctx, "http server stopped", "error", err)
			runErr = err
			cancelFunc()
		}
	}()
	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Warn(context.Background(), "close repositories", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
	return runErr
}
