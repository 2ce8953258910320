package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/snip/internal/config"
	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/events"
	"github.com/MrSnakeDoc/snip/internal/httpserver"
	"github.com/MrSnakeDoc/snip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider/localfs"
	"github.com/MrSnakeDoc/snip/internal/retry"
	"github.com/MrSnakeDoc/snip/internal/scheduler"
	"github.com/MrSnakeDoc/snip/internal/version"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	core     *Core
	server   *httpserver.Server
	syncLoop *scheduler.SyncLoop
	warmer   *scheduler.CacheWarmer
	pruner   *scheduler.UsagePruner
	watcher  *localfs.Watcher
}

func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	core, err := NewCore(ctx, cfg, loggerClient)
	if err != nil {
		return nil, err
	}

	syncLoop := scheduler.NewSyncLoop(core.Engine, loggerClient.Named("sync"), cfg.SyncInterval)

	warmer := scheduler.NewCacheWarmer(core.Engine, retry.Policy{
		MaxAttempts:  cfg.LoadAttempts,
		InitialDelay: cfg.LoadDelay,
	}, loggerClient.Named("warmer"))

	pruner := scheduler.NewUsagePruner(
		core.Store,
		func() scheduler.TriggerLister { return core.Index.Current() },
		loggerClient.Named("usage"),
		cfg.UsagePruneInterval,
	)

	var watcher *localfs.Watcher
	if cfg.WatchLocal {
		watcher, err = localfs.NewWatcher(cfg.WatchDebounce, func(path string) {
			if syncLoop.Trigger() {
				loggerClient.Info("local snippet change, sync queued", logger.String("file", path))
			}
		}, loggerClient)
		if err != nil {
			loggerClient.Warn("file watching disabled", logger.Error(err))
			watcher = nil
		}
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		StoreKind:    cfg.Store,
		Store:        core.Store,
		Engine:       core.Engine,
		Registry:     core.Registry,
		Index:        core.Index,
		Resolver:     core.Resolver,
		Sync:         syncLoop,
		Events:       core.Events,
	}

	return &App{
		cfg:      cfg,
		logger:   loggerClient,
		core:     core,
		server:   httpserver.New(cfg, loggerClient, d),
		syncLoop: syncLoop,
		warmer:   warmer,
		pruner:   pruner,
		watcher:  watcher,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting snip v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("snip %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Serve the cached merged set while the first cycle runs.
	if err := a.warmer.Warm(ctx); err != nil {
		a.logger.Warn("starting with an empty index", logger.Error(err))
	}

	if err := a.syncLoop.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync loop: %w", err)
	}
	a.logger.Info("sync loop started",
		logger.Duration("interval", a.cfg.SyncInterval))

	if err := a.pruner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start usage pruner: %w", err)
	}
	a.logger.Info("usage pruner started",
		logger.Duration("interval", a.cfg.UsagePruneInterval))

	if a.watcher != nil {
		a.watcher.Sync(localDirs(a.core.Registry.List()))
		go a.watcher.Run(ctx)
		go a.followSources(ctx)
		a.logger.Info("watching local sources",
			logger.Duration("debounce", a.cfg.WatchDebounce))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
		a.logger.Error("server stopped unexpectedly", logger.Error(runErr))
	}

	return multierr.Append(runErr, a.shutdown())
}

func (a *App) shutdown() error {
	a.syncLoop.Stop()
	a.pruner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs error
	if err := a.server.Stop(shutdownCtx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	if err := a.core.Close(); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		a.logger.Info("✅ Store and providers closed cleanly")
	}

	if errs == nil {
		a.logger.Info("✅ snip stopped cleanly")
	}
	return errs
}

// followSources re-reads the watched directories after every cycle, so
// sources added at runtime are watched too.
func (a *App) followSources(ctx context.Context) {
	for evt := range a.core.Events.Subscribe(ctx) {
		if evt.Kind == events.SyncCompleted {
			a.watcher.Sync(localDirs(a.core.Registry.List()))
		}
	}
}

func localDirs(list []domain.ScopedSource) []string {
	var dirs []string
	for _, src := range list {
		if h, ok := src.Handle.(domain.LocalFSHandle); ok {
			dirs = append(dirs, h.Dir)
		}
	}
	return dirs
}
