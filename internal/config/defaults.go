package config

import (
	"os"
	"path/filepath"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ProductDefaultApplier handles the Evervolv tree conventions.
type ProductDefaultApplier struct{}

func (ProductDefaultApplier) Domain() string { return "product" }

func (ProductDefaultApplier) ApplyDefaults(cfg *Config) error {
	p := &cfg.Product
	if p.ArtifactPrefix == "" {
		p.ArtifactPrefix = "Evervolv"
	}
	if p.ArtifactSuffix == "" {
		p.ArtifactSuffix = ".zip"
	}
	if p.OutputDir == "" {
		p.OutputDir = filepath.Join("out", "target", "product", "{target}")
	}
	if p.DeviceDir == "" {
		p.DeviceDir = "device"
	}
	if p.CodenameFile == "" {
		p.CodenameFile = "ev.mk"
	}
	if p.CodenameKey == "" {
		p.CodenameKey = "PRODUCT_CODENAME"
	}
	if p.TargetEnv == "" {
		p.TargetEnv = "EV_BUILD_TARGET"
	}
	return nil
}

// SourceDefaultApplier defaults the source tree to the working directory.
type SourceDefaultApplier struct{}

func (SourceDefaultApplier) Domain() string { return "source" }

func (SourceDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Source.Path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg.Source.Path = wd
	}
	if cfg.Source.RevisionRepo == "" {
		cfg.Source.RevisionRepo = filepath.Join(".repo", "manifests")
	}
	return nil
}

// CommandsDefaultApplier points build and sync at the helper scripts shipped
// next to the binary.
type CommandsDefaultApplier struct{}

func (CommandsDefaultApplier) Domain() string { return "commands" }

func (CommandsDefaultApplier) ApplyDefaults(cfg *Config) error {
	c := &cfg.Commands
	if c.HelperDir == "" {
		exe, err := os.Executable()
		if err == nil {
			if resolved, rerr := filepath.EvalSymlinks(exe); rerr == nil {
				exe = resolved
			}
			c.HelperDir = filepath.Join(filepath.Dir(exe), "helpers")
		} else {
			c.HelperDir = "helpers"
		}
	}
	if c.Build == "" {
		c.Build = filepath.Join(c.HelperDir, "build.sh")
	}
	if c.Sync == "" {
		c.Sync = filepath.Join(c.HelperDir, "sync.sh")
	}
	if c.SSH == "" {
		c.SSH = "ssh"
	}
	if c.Rsync == "" {
		c.Rsync = "rsync"
	}
	return nil
}

// LoggingDefaultApplier normalizes level and format.
type LoggingDefaultApplier struct{}

func (LoggingDefaultApplier) Domain() string { return "logging" }

func (LoggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

// DaemonDefaultApplier fills the schedule and listen address.
type DaemonDefaultApplier struct{}

func (DaemonDefaultApplier) Domain() string { return "daemon" }

func (DaemonDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Daemon.Workflow == "" {
		cfg.Daemon.Workflow = WorkflowNightly
	}
	if cfg.Daemon.Schedule == "" && cfg.Daemon.Interval == "" {
		cfg.Daemon.Schedule = "0 2 * * *"
	}
	if cfg.Daemon.Listen == "" {
		cfg.Daemon.Listen = "127.0.0.1:9464"
	}
	return nil
}

// NotifyDefaultApplier sets the default subject.
type NotifyDefaultApplier struct{}

func (NotifyDefaultApplier) Domain() string { return "notify" }

func (NotifyDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "nightlybuilder.runs"
	}
	return nil
}

func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		SourceDefaultApplier{},
		ProductDefaultApplier{},
		CommandsDefaultApplier{},
		LoggingDefaultApplier{},
		DaemonDefaultApplier{},
		NotifyDefaultApplier{},
	}
}

// ApplyDefaults runs every domain applier in order.
func ApplyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers() {
		if err := a.ApplyDefaults(cfg); err != nil {
			return fmtDomainErr(a.Domain(), err)
		}
	}
	return nil
}
