package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/nightlybuilder/internal/command"
	"git.home.luguber.info/inful/nightlybuilder/internal/config"
	"git.home.luguber.info/inful/nightlybuilder/internal/eventstore"
	"git.home.luguber.info/inful/nightlybuilder/internal/metrics"
	"git.home.luguber.info/inful/nightlybuilder/internal/notify"
	"git.home.luguber.info/inful/nightlybuilder/internal/pipeline"
)

// Global is shared state bound into every command.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"nightlybuilder.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Quiet   bool             `short:"q" help:"Suppress console output; the run log is still written"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Nightly NightlyCmd `cmd:"" help:"Sync the tree, build targets and ship them under a dated directory"`
	Release ReleaseCmd `cmd:"" help:"Build targets and ship them under their codename directories"`
	Daemon  DaemonCmd  `cmd:"" help:"Run a workflow on a schedule with a status and trigger API"`
	Triage  TriageCmd  `cmd:"" help:"Extract compiler and make errors from a build log"`
	History HistoryCmd `cmd:"" help:"List recent runs from the history database"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	switch {
	case c.Verbose:
		level = slog.LevelDebug
	case c.Quiet:
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	g.Logger = logger
	return nil
}

// loadConfig reads root.Config; the default path may be absent.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config, isDefaultConfigPath(root.Config))
	if err != nil {
		return nil, err
	}
	if root.Verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}
	return cfg, nil
}

func isDefaultConfigPath(p string) bool {
	if p == config.DefaultPath {
		return true
	}
	wd, err := os.Getwd()
	if err != nil {
		return false
	}
	abs := filepath.Join(wd, config.DefaultPath)
	return abs == p
}

// services are the optional collaborators shared by workflow commands and
// the daemon.
type services struct {
	store    *eventstore.SQLiteStore
	notifier *notify.Notifier
	bus      *pipeline.Bus
}

func openServices(cfg *config.Config) (*services, error) {
	s := &services{bus: pipeline.NewBus()}
	if cfg.History.Path != "" {
		store, err := eventstore.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		s.store = store
		s.bus = pipeline.NewBusWithEventStore(store)
	}
	n, err := notify.Connect(cfg.Notify)
	if err != nil {
		slog.Warn("Notifications disabled", slog.String("error", err.Error()))
	}
	if n != nil {
		n.Attach(s.bus)
		s.notifier = n
	}
	return s, nil
}

func (s *services) Close() {
	s.notifier.Close()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Failed to close history database", slog.String("error", err.Error()))
		}
	}
}

// runFunc builds a pipeline runner per run so reloaded configs take effect.
func (s *services) runFunc(recorder metrics.Recorder, quiet bool) func(context.Context, *config.Config, pipeline.Request) (*pipeline.Summary, error) {
	return func(ctx context.Context, cfg *config.Config, req pipeline.Request) (*pipeline.Summary, error) {
		req.Quiet = req.Quiet || quiet
		r := &pipeline.Runner{
			Config:   cfg,
			Commands: command.ExecRunner{},
			Recorder: recorder,
			Bus:      s.bus,
		}
		return r.Run(ctx, req)
	}
}
