package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
	"git.home.luguber.info/inful/nightlybuilder/internal/daemon"
	"git.home.luguber.info/inful/nightlybuilder/internal/metrics"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Listen   string          `help:"Override daemon.listen"`
	Workflow config.Workflow `help:"Override daemon.workflow (nightly|release)"`
	Targets  []string        `help:"Override daemon.targets"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if d.Listen != "" {
		cfg.Daemon.Listen = d.Listen
	}
	if d.Workflow != "" {
		w, err := config.ParseWorkflow(string(d.Workflow))
		if err != nil {
			return err
		}
		cfg.Daemon.Workflow = w
	}
	if len(d.Targets) > 0 {
		cfg.Daemon.Targets = d.Targets
	}

	svc, err := openServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(reg)

	dmn, err := daemon.New(daemon.Options{
		ConfigPath: root.Config,
		Config:     cfg,
		Run:        svc.runFunc(recorder, root.Quiet),
		Registry:   reg,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	slog.Info("Starting daemon mode", logWorkflow(cfg))
	return dmn.Run(ctx)
}

func logWorkflow(cfg *config.Config) slog.Attr {
	return slog.Group("daemon",
		slog.String("workflow", string(cfg.Daemon.Workflow)),
		slog.Any("targets", cfg.Daemon.Targets),
		slog.String("schedule", daemon.Describe(cfg.Daemon)),
		slog.String("listen", cfg.Daemon.Listen))
}
