// Package pipeline drives one nightly or release run end to end: destination
// setup, source sync, sequential builds, artifact dispatch, the manifest and
// the run report.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/nightlybuilder/internal/codename"
	"git.home.luguber.info/inful/nightlybuilder/internal/command"
	"git.home.luguber.info/inful/nightlybuilder/internal/config"
	"git.home.luguber.info/inful/nightlybuilder/internal/destination"
	"git.home.luguber.info/inful/nightlybuilder/internal/dispatch"
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/nightlybuilder/internal/git"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
	"git.home.luguber.info/inful/nightlybuilder/internal/metrics"
	"git.home.luguber.info/inful/nightlybuilder/internal/orchestrator"
	"git.home.luguber.info/inful/nightlybuilder/internal/report"
	"git.home.luguber.info/inful/nightlybuilder/internal/triage"
	"git.home.luguber.info/inful/nightlybuilder/internal/workspace"
)

// Run outcomes as reported in the summary.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
)

// Request is one invocation of a workflow.
type Request struct {
	Workflow  config.Workflow
	Targets   []string
	Overrides destination.Overrides
	// SourceDir overrides source.path from the config.
	SourceDir string
	NoSync    bool
	NoBuild   bool
	Quiet     bool
}

// Summary is the result of a run.
type Summary struct {
	RunID        string                       `json:"run_id"`
	Workflow     string                       `json:"workflow"`
	Date         string                       `json:"date"`
	Outcome      string                       `json:"outcome"`
	StartedAt    time.Time                    `json:"started_at"`
	Duration     time.Duration                `json:"duration"`
	LogFile      string                       `json:"log_file,omitempty"`
	Revision     *git.Revision                `json:"revision,omitempty"`
	Destinations []string                     `json:"destinations"`
	Targets      []orchestrator.TargetOutcome `json:"targets"`
	Deliveries   []dispatch.Delivery          `json:"deliveries"`
	Manifest     bool                         `json:"manifest"`
	Error        string                       `json:"error,omitempty"`
}

// FailedDeliveries counts transfers that did not succeed.
func (s *Summary) FailedDeliveries() int {
	n := 0
	for _, d := range s.Deliveries {
		if !d.OK() {
			n++
		}
	}
	return n
}

// Runner executes workflows. The zero value is not usable; Config and
// Commands are required.
type Runner struct {
	Config   *config.Config
	Commands command.Runner
	Recorder metrics.Recorder
	Bus      *Bus
	// Transfer defaults to rsync through Commands.
	Transfer dispatch.Transfer
	Lookup   destination.LookupFunc
	// Console receives the run log unless the request is quiet; defaults to stderr.
	Console io.Writer
	Now     func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) recorder() metrics.Recorder {
	if r.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return r.Recorder
}

func (r *Runner) console(quiet bool) io.Writer {
	if quiet {
		return nil
	}
	if r.Console != nil {
		return r.Console
	}
	return os.Stderr
}

// run carries the state of one Run call.
type run struct {
	*Runner
	req     Request
	profile Profile
	source  string
	summary *Summary
	log     *RunLog
	group   *dispatch.Group
}

// Run executes req. Only fatal setup problems (no destination, every
// destination failed, staging or run log unavailable) are returned as errors;
// failed targets and transfers are reported in the summary.
func (r *Runner) Run(ctx context.Context, req Request) (*Summary, error) {
	start := r.now()
	rn := &run{
		Runner:  r,
		req:     req,
		profile: ProfileFor(req.Workflow),
		source:  req.SourceDir,
	}
	if rn.source == "" {
		rn.source = r.Config.Source.Path
	}
	rn.summary = &Summary{
		RunID:     uuid.NewString(),
		Workflow:  string(rn.profile.Workflow),
		Date:      start.Format(DateLayout),
		StartedAt: start,
	}

	// Opened before destinations are resolved so an aborted run is logged too.
	console := r.console(req.Quiet)
	runLog, err := OpenRunLog(rn.logDir(), rn.summary.Date, r.Config.Logging, console)
	if err != nil {
		return rn.abort(ctx, errors.WrapError(err, errors.CategoryFileSystem, "failed to open run log").Fatal().Build())
	}
	defer func() { _ = runLog.Close() }()
	restore := runLog.Install()
	defer restore()
	rn.log = runLog
	rn.summary.LogFile = runLog.Path()
	if console != nil {
		_, _ = fmt.Fprintf(console, "Logging to %s\n", runLog.Path())
	}

	return rn.execute(ctx)
}

func (rn *run) logDir() string {
	dir := rn.Config.Logging.Dir
	if dir == "" {
		dir = rn.profile.LogDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(rn.source, dir)
}

func (rn *run) execute(ctx context.Context) (*Summary, error) {
	cfg := rn.Config
	date := rn.summary.Date

	extractors, err := triage.FromConfig(cfg.Triage)
	if err != nil {
		return rn.abort(ctx, err)
	}

	res, err := destination.Resolve(rn.req.Overrides, cfg.Destinations, rn.Lookup)
	if err != nil {
		slog.Error("No destination configured. Set a mirror path or a remote host, user and path")
		return rn.abort(ctx, err)
	}
	prov := &destination.Provisioner{Runner: rn.Commands, SSH: cfg.Commands.SSH}
	set, err := destination.Activate(ctx, res, rn.profile.Layout(date), prov)
	if err != nil {
		return rn.abort(ctx, err)
	}
	for _, d := range set.Active() {
		rn.summary.Destinations = append(rn.summary.Destinations, d.String())
	}

	staging := workspace.NewManager(cfg.Staging.Base, rn.profile.StagingName)
	if err := staging.Create(); err != nil {
		return rn.abort(ctx, errors.WrapError(err, errors.CategoryFileSystem, "failed to create staging directory").
			Fatal().Build())
	}

	transfer := rn.Transfer
	if transfer == nil {
		transfer = &dispatch.Rsync{Runner: rn.Commands, Rsync: cfg.Commands.Rsync, SSH: cfg.Commands.SSH}
	}
	rn.group = dispatch.NewGroup(set.Active(), transfer, rn.recorder())
	rn.group.OnDelivery(func(d dispatch.Delivery) { rn.publishDelivery(ctx, d) })
	rn.group.Start(ctx)
	defer rn.group.Stop()

	rn.publishStarted(ctx)

	synced := true
	if rn.profile.Sync && !rn.req.NoSync {
		sync := &SourceSync{
			Runner:       rn.Commands,
			Command:      cfg.Commands.Sync,
			SourceDir:    rn.source,
			ChangelogDir: rn.profile.ChangelogDir,
			Date:         date,
		}
		sr := sync.Run(ctx)
		synced = sr.OK
		if sr.Changelog != "" {
			rn.group.Enqueue(dispatch.Item{Path: sr.Changelog, Name: filepath.Base(sr.Changelog)})
		}
	}

	rn.readRevision()

	orch := orchestrator.New(orchestrator.Options{
		SourceDir:      rn.source,
		BuildCommand:   cfg.Commands.Build,
		TargetEnv:      cfg.Product.TargetEnv,
		ExtraEnv:       rn.profile.ExtraEnv,
		OutputDir:      cfg.Product.OutputDir,
		ArtifactPrefix: cfg.Product.ArtifactPrefix,
		ArtifactSuffix: cfg.Product.ArtifactSuffix,
		SkipBuild:      rn.req.NoBuild,
		PerCodename:    !rn.profile.DatedLayout,
		Date:           date,
		ManifestTag:    rn.profile.ManifestTag,
		MessageFormat:  rn.profile.MessageFormat,
	}, orchestrator.Deps{
		Runner:       rn.Commands,
		Staging:      staging,
		Analyzer:     triage.NewAnalyzer(extractors),
		Codenames:    codename.NewResolver(rn.source, cfg.Product),
		Sink:         rn.group,
		Destinations: set.Active(),
		DirMaker:     prov,
		Recorder:     rn.recorder(),
		OnOutcome:    func(o orchestrator.TargetOutcome) { rn.publishTarget(ctx, o) },
	})

	if synced {
		rn.summary.Targets = orch.Run(ctx, rn.req.Targets)
	} else {
		rn.summary.Targets = orch.Skip(rn.req.Targets, "sync failed")
	}

	shipped, err := orch.ShipManifest()
	if err != nil {
		slog.Error("Failed to write manifest", logfields.Error(err))
	}
	rn.summary.Manifest = shipped

	rn.group.DrainAndWait()
	if err := staging.Cleanup(); err != nil {
		slog.Warn("Failed to remove staging directory", logfields.Path(staging.GetPath()), logfields.Error(err))
	}

	rn.summary.Deliveries = rn.group.Deliveries()
	rn.summary.Duration = rn.now().Sub(rn.summary.StartedAt)
	rn.logSummary()
	slog.Info("Total run time "+logfields.Pretty(rn.summary.Duration), logfields.Duration(rn.summary.Duration))

	rn.shipReport()

	rn.summary.Deliveries = rn.group.Deliveries()
	rn.summary.Outcome = OutcomeCompleted
	rn.complete(ctx)
	return rn.summary, nil
}

func (rn *run) readRevision() {
	rev, err := git.ReadRevision(filepath.Join(rn.source, rn.Config.Source.RevisionRepo), rn.source)
	switch {
	case err == nil:
		rn.summary.Revision = &rev
		slog.Info("Source revision", slog.String("commit", rev.Short()), slog.String("branch", rev.Branch))
	case stderrors.Is(err, git.ErrNoRepository):
		slog.Debug("Source tree is not a git repository", logfields.Path(rn.source))
	default:
		slog.Warn("Failed to read source revision", logfields.Error(err))
	}
}

// shipReport renders the run log so far and offers it to every destination,
// then waits for it to land.
func (rn *run) shipReport() {
	if err := rn.log.Sync(); err != nil {
		slog.Warn("Failed to flush run log", logfields.Error(err))
	}
	lines, err := report.ReadLines(rn.log.Path())
	if err != nil {
		slog.Error("Failed to read run log", logfields.Path(rn.log.Path()), logfields.Error(err))
		return
	}
	html := strings.TrimSuffix(rn.log.Path(), filepath.Ext(rn.log.Path())) + ".html"
	doc := report.Document{Title: rn.profile.ReportTitle, Header: rn.summary.Date, Lines: lines}
	if err := report.WriteFile(html, doc); err != nil {
		slog.Error("Failed to render run report", logfields.Path(html), logfields.Error(err))
		return
	}
	rn.group.Enqueue(dispatch.Item{Path: html, Name: filepath.Base(html)})
	rn.group.DrainAndWait()
}

func (rn *run) logSummary() {
	s := rn.summary
	for _, t := range s.Targets {
		attrs := []any{logfields.Target(t.Target), logfields.Status(string(t.Status)), logfields.Duration(t.Duration)}
		if t.Status == orchestrator.StatusFailed {
			attrs = append(attrs, logfields.ExitCode(t.ExitCode))
		}
		if t.Reason != "" {
			attrs = append(attrs, slog.String("reason", t.Reason))
		}
		slog.Info("Target summary", attrs...)
	}
	for _, d := range s.Deliveries {
		if d.OK() {
			continue
		}
		slog.Warn("Undelivered artifact",
			logfields.Artifact(d.Item.Name),
			logfields.Destination(d.Destination),
			logfields.Error(d.Err))
	}
	tally := orchestrator.Tally(s.Targets)
	slog.Info("Run summary",
		logfields.RunID(s.RunID),
		logfields.Workflow(s.Workflow),
		slog.Int("succeeded", tally[orchestrator.StatusSucceeded]),
		slog.Int("failed", tally[orchestrator.StatusFailed]),
		slog.Int("deliveries", len(s.Deliveries)),
		slog.Int("failed_deliveries", s.FailedDeliveries()))
}

// abort finishes a run that could not get started.
func (rn *run) abort(ctx context.Context, err error) (*Summary, error) {
	rn.summary.Outcome = OutcomeAborted
	rn.summary.Error = err.Error()
	rn.summary.Duration = rn.now().Sub(rn.summary.StartedAt)
	slog.Error("Run aborted", logfields.RunID(rn.summary.RunID), logfields.Error(err))
	rn.complete(ctx)
	return rn.summary, err
}

func (rn *run) complete(ctx context.Context) {
	outcome := metrics.RunCompleted
	if rn.summary.Outcome == OutcomeAborted {
		outcome = metrics.RunAborted
	}
	rn.recorder().IncRunOutcome(rn.summary.Workflow, outcome)
	rn.recorder().ObserveRunDuration(rn.summary.Workflow, rn.summary.Duration)
	rn.publishCompleted(ctx)
}
