// Package daemon runs guardian's watch mode: it owns the record cache,
// reacts to filesystem changes with cache invalidation and incremental
// knowledge base updates, runs scheduled health checks, and serves
// metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/guardian/internal/config"
	"github.com/harun/guardian/internal/observability"
	"github.com/harun/guardian/pkg/cache"
	"github.com/harun/guardian/pkg/kb"
)

// updateQuietPeriod is how long the project must stay quiet after a
// change before an incremental update runs. Batches bursts like a
// branch switch into one run.
const updateQuietPeriod = 2 * time.Second

// Daemon is the long-running watch process. The cache is confined to the
// Run loop's goroutine; everything that needs cached reads goes through
// that loop.
type Daemon struct {
	cfg   *config.Config
	kb    *kb.KB
	cache *cache.Cache

	projectWatcher *cache.Watcher
	kbWatcher      *cache.Watcher
	scheduler      *cron.Cron
	metricsSrv     *http.Server

	logger zerolog.Logger
}

// New assembles a daemon over an open knowledge base.
func New(cfg *config.Config, base *kb.KB, logger zerolog.Logger) (*Daemon, error) {
	c := cache.New(cache.Config{
		KBPath:  base.Root(),
		MaxSize: cfg.Cache.MaxSize,
		BaseTTL: map[cache.Category]time.Duration{
			cache.CategoryCore:    cfg.CoreTTL(),
			cache.CategoryIndexed: cfg.IndexedTTL(),
			cache.CategoryHistory: 0,
		},
	}, logger)

	projectWatcher, err := cache.NewWatcher(cache.WatcherConfig{
		Root:               base.ProjectPath(),
		StabilityThreshold: cfg.Debounce(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create project watcher: %w", err)
	}

	kbWatcher, err := cache.NewWatcher(cache.WatcherConfig{
		Root:               base.Root(),
		StabilityThreshold: cfg.Debounce(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kb watcher: %w", err)
	}

	d := &Daemon{
		cfg:            cfg,
		kb:             base,
		cache:          c,
		projectWatcher: projectWatcher,
		kbWatcher:      kbWatcher,
		scheduler:      cron.New(),
		logger:         logger.With().Str("component", "daemon").Logger(),
	}

	if cfg.Watch.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		d.metricsSrv = &http.Server{Addr: cfg.Watch.MetricsAddr, Handler: mux}
	}

	return d, nil
}

// Run starts the watchers, the health schedule, and the metrics server,
// then processes events until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	warmed := d.cache.Warm()
	d.logger.Info().Int("records", warmed).Msg("cache warmed")

	if err := d.projectWatcher.Start(); err != nil {
		return fmt.Errorf("failed to start project watcher: %w", err)
	}
	defer d.projectWatcher.Stop()

	if err := d.kbWatcher.Start(); err != nil {
		return fmt.Errorf("failed to start kb watcher: %w", err)
	}
	defer d.kbWatcher.Stop()

	if _, err := d.scheduler.AddFunc(d.cfg.Watch.HealthSchedule, d.runHealthCheck); err != nil {
		return fmt.Errorf("invalid health schedule %q: %w", d.cfg.Watch.HealthSchedule, err)
	}
	d.scheduler.Start()
	defer d.scheduler.Stop()

	if d.metricsSrv != nil {
		go func() {
			d.logger.Info().Str("addr", d.metricsSrv.Addr).Msg("metrics server listening")
			if err := d.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = d.metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	d.logger.Info().
		Str("project", d.kb.ProjectPath()).
		Msg("watching for changes")
	return d.eventLoop(ctx)
}

// eventLoop is the single goroutine that touches the cache. Project
// changes arm the update timer; knowledge base changes invalidate the
// matching cache entries directly.
func (d *Daemon) eventLoop(ctx context.Context) error {
	updateTimer := time.NewTimer(updateQuietPeriod)
	if !updateTimer.Stop() {
		<-updateTimer.C
	}
	defer updateTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("shutting down")
			return ctx.Err()

		case path := <-d.projectWatcher.Invalidations():
			d.logger.Debug().Str("path", path).Msg("project change")
			updateTimer.Reset(updateQuietPeriod)

		case path := <-d.kbWatcher.Invalidations():
			if removed := d.cache.Invalidate(path); removed > 0 {
				d.logger.Debug().Str("path", path).Int("removed", removed).Msg("cache invalidated")
			}

		case <-updateTimer.C:
			changes := kb.NewIncrementalUpdater(d.kb).Run()
			if !changes.Empty() {
				d.logger.Info().Int("changes", changes.Total()).Msg("knowledge base updated")
			}
		}
	}
}

// runHealthCheck executes a scheduled health check and persists the
// report. It deliberately reads through the store, never the cache, so
// it can run off the event loop goroutine.
func (d *Daemon) runHealthCheck() {
	report := kb.NewHealthChecker(d.kb).Check()

	doc := map[string]any{
		"id":           report.ID,
		"generated_at": report.GeneratedAt.Format(time.RFC3339),
		"score":        report.OverallScore,
		"status":       report.Status,
	}
	if !d.kb.Store().SafeWrite(d.kb.IndexedPath("health.json"), doc) {
		d.logger.Warn().Msg("health report save failed")
	}
}
