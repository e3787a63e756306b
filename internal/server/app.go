// Package server initializes and runs the main application server.
// It configures storage, wires the cache, diff, deployment and backup
// services together, and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/guidesync/internal/logging"
	"github.com/dmitrijs2005/guidesync/internal/server/backup"
	"github.com/dmitrijs2005/guidesync/internal/server/cache"
	"github.com/dmitrijs2005/guidesync/internal/server/config"
	"github.com/dmitrijs2005/guidesync/internal/server/deploy"
	"github.com/dmitrijs2005/guidesync/internal/server/diff"
	"github.com/dmitrijs2005/guidesync/internal/server/guide"
	"github.com/dmitrijs2005/guidesync/internal/server/remote"
	"github.com/dmitrijs2005/guidesync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/guidesync/internal/server/template"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	caches  *cache.Service
	tpls    *template.Service
	backups *backup.Service
	runner  *backup.Runner
}

func NewApp(c *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	rm, err := repomanager.NewPostgresRepositoryManager(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	codec, err := cache.NewCodec(c.CacheCompression)
	if err != nil {
		return nil, fmt.Errorf("cache codec init error: %w", err)
	}
	caches := cache.NewService(rm.CacheEntries(), codec, c.CacheStaleAfter, logger)

	tpls := template.NewService(rm.Templates(), logger)

	// Without a configured bucket payloads stay inline in the database.
	var blobs backup.BlobStore
	if c.S3Bucket != "" {
		blobs, err = backup.NewS3BlobStore(context.Background(), backup.S3Settings{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("blob store init error: %w", err)
		}
	}

	backups := backup.NewService(rm.Backups(), blobs, logger, backup.Options{
		TTL:         c.BackupTTL,
		GracePeriod: c.BackupGracePeriod,
	})
	runner := backup.NewRunner(backups, logger, c.CleanupSchedule)

	return &App{
		config:  c,
		logger:  logger,
		repos:   rm,
		caches:  caches,
		tpls:    tpls,
		backups: backups,
		runner:  runner,
	}, nil
}

// Cache exposes the cache manager to the embedding surface.
func (app *App) Cache() *cache.Service { return app.caches }

// Templates exposes the template lifecycle service.
func (app *App) Templates() *template.Service { return app.tpls }

// Backups exposes the backup service.
func (app *App) Backups() *backup.Service { return app.backups }

// WireDiff builds the diff service once a guide fetcher implementation is
// registered by the embedding surface.
func (app *App) WireDiff(fetcher guide.Fetcher) *diff.Service {
	return diff.NewService(app.caches, fetcher, app.logger)
}

// WireDeployment builds the preview service and executor once a remote
// client factory implementation is registered by the embedding surface.
func (app *App) WireDeployment(clients remote.ClientFactory) (*deploy.PreviewService, *deploy.Executor) {
	preview := deploy.NewPreviewService(app.repos.Templates(), app.repos.Instances(), clients, app.logger)
	executor := deploy.NewExecutor(preview, app.repos.Deployments(), app.repos.Instances(), app.backups, clients, app.logger, deploy.Options{
		Throttle:         app.config.DeployThrottle,
		RetryBaseDelay:   app.config.RetryBaseDelay,
		RetryMaxAttempts: app.config.RetryMaxAttempts,
		RemoteTimeout:    app.config.RemoteTimeout,
	})
	return preview, executor
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the retention runner and blocks until the context is cancelled
// or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.runner.Start(ctx); err != nil {
		return fmt.Errorf("retention runner start error: %w", err)
	}

	<-ctx.Done()

	app.logger.Info(ctx, "Shutting down...")
	app.runner.Stop()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}

	return nil
}
