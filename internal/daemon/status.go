package daemon

import (
	"time"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
	"git.home.luguber.info/inful/nightlybuilder/internal/pipeline"
	"git.home.luguber.info/inful/nightlybuilder/internal/version"
)

// State of the daemon as seen by the status endpoint.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Status is served on GET /status.
type Status struct {
	State     State             `json:"state"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Workflow  config.Workflow   `json:"workflow"`
	Targets   []string          `json:"targets"`
	Schedule  string            `json:"schedule"`
	NextRun   *time.Time        `json:"next_run,omitempty"`
	Runs      int               `json:"runs"`
	LastRun   *pipeline.Summary `json:"last_run,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

// Status snapshots the daemon state.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	s := Status{
		State:     StateIdle,
		Version:   version.Version,
		Workflow:  d.cfg.Daemon.Workflow,
		Targets:   append([]string(nil), d.cfg.Daemon.Targets...),
		Schedule:  Describe(d.cfg.Daemon),
		Runs:      d.runs,
		LastRun:   d.lastRun,
		LastError: d.lastErr,
	}
	if !d.startedAt.IsZero() {
		s.Uptime = logfields.Pretty(time.Since(d.startedAt))
	}
	d.mu.RUnlock()

	if d.running.Load() {
		s.State = StateRunning
	}
	if next, ok := d.scheduler.NextRun(); ok {
		s.NextRun = &next
	}
	return s
}
