// Package daemon runs a workflow on a schedule, reloads its configuration
// when the file changes and serves a small HTTP API for status, on-demand
// runs and metrics.
package daemon

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
	"git.home.luguber.info/inful/nightlybuilder/internal/pipeline"
)

// ErrRunInProgress is returned by Trigger while a run is going.
var ErrRunInProgress = errors.DaemonError("a run is already in progress").Build()

// RunFunc executes one run with the configuration current at its start.
type RunFunc func(ctx context.Context, cfg *config.Config, req pipeline.Request) (*pipeline.Summary, error)

// Options configure a Daemon.
type Options struct {
	// ConfigPath is watched for changes when set.
	ConfigPath string
	Config     *config.Config
	Run        RunFunc
	// Registry backs /metrics; a fresh registry is used when nil.
	Registry *prometheus.Registry
}

type Daemon struct {
	configPath string
	run        RunFunc
	registry   *prometheus.Registry
	startedAt  time.Time

	mu       sync.RWMutex
	cfg      *config.Config
	runs     int
	lastRun  *pipeline.Summary
	lastErr  string
	runCtx   context.Context
	running  atomic.Bool
	shutdown sync.Once

	scheduler *Scheduler
	watcher   *ConfigWatcher
	server    *http.Server
	listener  net.Listener
}

func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Run == nil {
		return nil, errors.InternalError("daemon needs a config and a run function").Build()
	}
	if len(opts.Config.Daemon.Targets) == 0 {
		return nil, errors.ConfigError("daemon.targets is empty").Build()
	}
	sched, err := NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create scheduler").Build()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Daemon{
		configPath: opts.ConfigPath,
		run:        opts.Run,
		registry:   reg,
		cfg:        opts.Config,
		scheduler:  sched,
		runCtx:     context.Background(),
	}, nil
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Start schedules runs, starts the config watcher and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	d.runCtx = ctx
	d.startedAt = time.Now()
	cfg := d.cfg
	d.mu.Unlock()

	if err := d.scheduler.Schedule(cfg.Daemon, d.execute); err != nil {
		return err
	}
	d.scheduler.Start()

	if d.configPath != "" && cfg.Daemon.WatchEnabled() {
		w, err := NewConfigWatcher(d.configPath, d.Reload)
		if err != nil {
			return errors.WrapError(err, errors.CategoryDaemon, "failed to create config watcher").Build()
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			return errors.WrapError(err, errors.CategoryDaemon, "failed to start config watcher").Build()
		}
		d.watcher = w
	}

	ln, err := net.Listen("tcp", cfg.Daemon.Listen)
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to listen").
			WithContext("address", cfg.Daemon.Listen).Build()
	}
	d.listener = ln
	d.server = &http.Server{Handler: d.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := d.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", logfields.Error(err))
		}
	}()
	slog.Info("Daemon started", slog.String("listen", ln.Addr().String()))
	return nil
}

// Addr is the bound API address once started.
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		d.Stop(context.Background())
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	d.Stop(stopCtx)
	return nil
}

// Stop shuts everything down; a run in progress is waited for.
func (d *Daemon) Stop(ctx context.Context) {
	d.shutdown.Do(func() {
		if d.server != nil {
			if err := d.server.Shutdown(ctx); err != nil {
				slog.Warn("HTTP server shutdown failed", logfields.Error(err))
			}
		}
		if d.watcher != nil {
			if err := d.watcher.Stop(); err != nil {
				slog.Warn("Config watcher shutdown failed", logfields.Error(err))
			}
		}
		if err := d.scheduler.Stop(); err != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
		slog.Info("Daemon stopped")
	})
}

// Trigger starts a run now unless one is already going.
func (d *Daemon) Trigger() error {
	if d.running.Load() {
		return ErrRunInProgress
	}
	return d.scheduler.RunNow()
}

// Reload swaps in cfg and reschedules when the schedule changed.
func (d *Daemon) Reload(_ context.Context, cfg *config.Config) error {
	if len(cfg.Daemon.Targets) == 0 {
		return errors.ConfigError("daemon.targets is empty").Build()
	}
	d.mu.Lock()
	prev := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	if reflect.DeepEqual(prev.Daemon, cfg.Daemon) {
		return nil
	}
	if prev.Daemon.Listen != cfg.Daemon.Listen {
		slog.Warn("daemon.listen changes take effect after a restart", slog.String("listen", prev.Daemon.Listen))
	}
	return d.scheduler.Schedule(cfg.Daemon, d.execute)
}

// execute is the scheduled task.
func (d *Daemon) execute() {
	if !d.running.CompareAndSwap(false, true) {
		slog.Warn("Skipping run, previous run still in progress")
		return
	}
	defer d.running.Store(false)

	d.mu.RLock()
	cfg, ctx := d.cfg, d.runCtx
	d.mu.RUnlock()

	req := pipeline.Request{Workflow: cfg.Daemon.Workflow, Targets: cfg.Daemon.Targets}
	slog.Info("Starting scheduled run",
		logfields.Workflow(string(req.Workflow)),
		slog.Any("targets", req.Targets))
	summary, err := d.run(ctx, cfg, req)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.runs++
	d.lastRun = summary
	d.lastErr = ""
	if err != nil {
		d.lastErr = err.Error()
		slog.Error("Scheduled run failed", logfields.Error(err))
	}
}
