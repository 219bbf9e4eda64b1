// Package orchestrator builds targets one at a time and hands every produced
// artifact to the dispatch queues and the run manifest.
//
// Each target moves Pending → Building → {Succeeded, Failed}. A failing
// target is triaged and logged, then the next target starts; nothing a target
// does can abort its siblings.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/nightlybuilder/internal/command"
	"git.home.luguber.info/inful/nightlybuilder/internal/destination"
	"git.home.luguber.info/inful/nightlybuilder/internal/dispatch"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
	"git.home.luguber.info/inful/nightlybuilder/internal/manifest"
	"git.home.luguber.info/inful/nightlybuilder/internal/metrics"
	"git.home.luguber.info/inful/nightlybuilder/internal/triage"
	"git.home.luguber.info/inful/nightlybuilder/internal/workspace"
)

// TargetPlaceholder in OutputDir is replaced by the target name.
const TargetPlaceholder = "{target}"

// CaptureFile is the build output capture inside the staging directory.
const CaptureFile = "build_stderr"

// Sink receives staged artifacts; dispatch.Group in production.
type Sink interface {
	Enqueue(it dispatch.Item)
}

// DirMaker creates per-target destination subdirectories.
type DirMaker interface {
	EnsureDir(ctx context.Context, d *destination.Destination, subdir string) error
}

// CodenameResolver maps a target to its destination subdirectory.
type CodenameResolver interface {
	Resolve(target string) (string, error)
}

// Options fixes the per-run behavior.
type Options struct {
	SourceDir      string
	BuildCommand   string
	TargetEnv      string
	ExtraEnv       map[string]string
	OutputDir      string
	ArtifactPrefix string
	ArtifactSuffix string
	// SkipBuild goes straight to artifact discovery.
	SkipBuild bool
	// PerCodename ships each target under a codename subdirectory.
	PerCodename bool
	Date        string
	ManifestTag string
	// MessageFormat renders the manifest message; %s is the target.
	MessageFormat string
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Runner       command.Runner
	Staging      *workspace.Manager
	Analyzer     *triage.Analyzer
	Codenames    CodenameResolver
	Sink         Sink
	Destinations []*destination.Destination
	DirMaker     DirMaker
	Manifest     *manifest.Accumulator
	Recorder     metrics.Recorder
	// OnOutcome is called after every target reaches a terminal state.
	OnOutcome func(TargetOutcome)
}

type Orchestrator struct {
	opts Options
	deps Deps
}

func New(opts Options, deps Deps) *Orchestrator {
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	if deps.Analyzer == nil {
		deps.Analyzer = triage.NewAnalyzer(nil)
	}
	if deps.Manifest == nil {
		deps.Manifest = &manifest.Accumulator{}
	}
	return &Orchestrator{opts: opts, deps: deps}
}

// Manifest returns the accumulator fed by this orchestrator.
func (o *Orchestrator) Manifest() *manifest.Accumulator { return o.deps.Manifest }

// Run processes targets strictly in order and returns one outcome per target.
func (o *Orchestrator) Run(ctx context.Context, targets []string) []TargetOutcome {
	start := time.Now()
	outcomes := make([]TargetOutcome, 0, len(targets))
	for _, t := range targets {
		outcomes = append(outcomes, o.finish(o.process(ctx, t)))
	}
	slog.Info("Built all targets in "+logfields.Pretty(time.Since(start)),
		logfields.Duration(time.Since(start)))
	return outcomes
}

// Skip marks every target skipped without building.
func (o *Orchestrator) Skip(targets []string, reason string) []TargetOutcome {
	outcomes := make([]TargetOutcome, 0, len(targets))
	for _, t := range targets {
		outcomes = append(outcomes, o.finish(TargetOutcome{Target: t, Status: StatusSkipped, Reason: reason}))
	}
	return outcomes
}

func (o *Orchestrator) finish(out TargetOutcome) TargetOutcome {
	o.deps.Recorder.IncTargetOutcome(string(out.Status))
	if o.deps.OnOutcome != nil {
		o.deps.OnOutcome(out)
	}
	return out
}

func (o *Orchestrator) process(ctx context.Context, target string) TargetOutcome {
	out := TargetOutcome{Target: target}

	if !o.opts.SkipBuild {
		attempt := o.Build(ctx, target)
		out.Duration = attempt.Duration()
		o.deps.Recorder.ObserveTargetDuration(target, out.Duration)
		if !attempt.Succeeded() {
			return o.failed(out, attempt)
		}
		slog.Info(fmt.Sprintf("Built %s in %s", target, logfields.Pretty(out.Duration)),
			logfields.Target(target), logfields.Duration(out.Duration))
	}

	files, err := o.Discover(target)
	if err != nil {
		out.Status = StatusFailed
		out.Reason = err.Error()
		slog.Error("Artifact discovery failed", logfields.Target(target), logfields.Error(err))
		return out
	}
	if len(files) == 0 {
		out.Status = StatusNoArtifacts
		slog.Warn("No zips found for "+target, logfields.Target(target))
		return out
	}

	var subdir string
	if o.opts.PerCodename {
		codename, err := o.deps.Codenames.Resolve(target)
		if err != nil {
			out.Status = StatusUnshipped
			out.Reason = err.Error()
			slog.Error("Failed to get codename for "+target, logfields.Target(target), logfields.Error(err))
			return out
		}
		subdir = codename
		o.prepareSubdir(ctx, target, subdir)
	}

	for _, f := range files {
		a, err := o.ship(target, f, subdir)
		if err != nil {
			slog.Error("Failed to stage artifact",
				logfields.Target(target), logfields.Path(f), logfields.Error(err))
			continue
		}
		out.Artifacts = append(out.Artifacts, a)
	}
	if len(out.Artifacts) == 0 {
		out.Status = StatusFailed
		out.Reason = "no artifact could be staged"
		return out
	}
	out.Status = StatusSucceeded
	return out
}

func (o *Orchestrator) failed(out TargetOutcome, attempt BuildAttempt) TargetOutcome {
	out.Status = StatusFailed
	code := attempt.ExitCode
	out.ExitCode = code
	out.Reason = attempt.Err.Error()
	slog.Error(fmt.Sprintf("Build returned %d for %s", code, out.Target),
		logfields.Target(out.Target),
		logfields.ExitCode(code),
		logfields.Category("build"),
		logfields.Error(attempt.Err))

	findings, err := o.deps.Analyzer.AnalyzeFile(attempt.LogPath)
	if err != nil {
		slog.Error("Could not read build log", logfields.Path(attempt.LogPath), logfields.Error(err))
		return out
	}
	out.Findings = findings
	triage.Log(slog.Default(), out.Target, findings)
	return out
}

// Build runs the build command for target with its combined output written
// to a capture file that is truncated first. The target reaches the command
// only through the environment of this one invocation.
func (o *Orchestrator) Build(ctx context.Context, target string) BuildAttempt {
	attempt := BuildAttempt{Target: target, LogPath: o.deps.Staging.File(CaptureFile), Start: time.Now()}

	capture, err := os.Create(attempt.LogPath)
	if err != nil {
		attempt.Err = fmt.Errorf("create build capture: %w", err)
		attempt.End = time.Now()
		return attempt
	}
	defer func() { _ = capture.Close() }()

	env := make(map[string]string, len(o.opts.ExtraEnv)+1)
	for k, v := range o.opts.ExtraEnv {
		env[k] = v
	}
	env[o.opts.TargetEnv] = target

	slog.Info("Building "+target, logfields.Target(target))
	attempt.Err = o.deps.Runner.Run(ctx, command.Spec{
		Path:   o.opts.BuildCommand,
		Env:    env,
		Dir:    o.opts.SourceDir,
		Stdout: capture,
		Stderr: capture,
	})
	attempt.End = time.Now()
	if attempt.Err != nil {
		code, ok := command.ExitCode(attempt.Err)
		if !ok {
			code = -1
		}
		attempt.ExitCode = code
	}
	return attempt
}

// OutputDir returns the directory a target's artifacts are produced in.
func (o *Orchestrator) OutputDir(target string) string {
	rel := strings.ReplaceAll(o.opts.OutputDir, TargetPlaceholder, target)
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(o.opts.SourceDir, rel)
}

// Discover lists the regular files in the target's output directory that
// follow the artifact naming convention, sorted by name. A missing directory
// yields no files.
func (o *Orchestrator) Discover(target string) ([]string, error) {
	dir := o.OutputDir(target)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() ||
			!strings.HasPrefix(name, o.opts.ArtifactPrefix) ||
			!strings.HasSuffix(name, o.opts.ArtifactSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (o *Orchestrator) prepareSubdir(ctx context.Context, target, subdir string) {
	if o.deps.DirMaker == nil {
		return
	}
	for _, d := range o.deps.Destinations {
		if err := o.deps.DirMaker.EnsureDir(ctx, d, subdir); err != nil {
			code, _ := command.ExitCode(err)
			slog.Error("Failed to create destination subdirectory",
				logfields.Target(target),
				logfields.Destination(d.Name()),
				logfields.Codename(subdir),
				logfields.ExitCode(code),
				logfields.Error(err))
		}
	}
}

// ship stages one file, offers it to every destination and records it in
// the manifest.
func (o *Orchestrator) ship(target, path, subdir string) (Artifact, error) {
	staged, err := o.deps.Staging.Stage(target, path)
	if err != nil {
		return Artifact{}, err
	}
	a := Artifact{
		Target: target,
		Name:   staged.Name,
		Origin: path,
		Staged: staged.Path,
		Subdir: subdir,
		Size:   staged.Size,
		MD5Sum: staged.MD5,
	}

	o.deps.Sink.Enqueue(dispatch.Item{Path: a.Staged, Name: a.Name, Subdir: subdir, Target: target})
	o.deps.Manifest.Add(manifest.Entry{
		Date:    o.opts.Date,
		Device:  target,
		Message: fmt.Sprintf(o.opts.MessageFormat, target),
		MD5Sum:  a.MD5Sum,
		Name:    a.Name,
		Size:    a.Size,
		Type:    o.opts.ManifestTag,
	})
	slog.Info("Queued "+a.Name,
		logfields.Target(target),
		logfields.Artifact(a.Name),
		logfields.Size(a.Size),
		logfields.Checksum(a.MD5Sum))
	return a, nil
}

// ShipManifest writes the accumulated manifest into the staging directory and
// offers it to every destination. An empty manifest is neither written nor
// shipped.
func (o *Orchestrator) ShipManifest() (bool, error) {
	path := o.deps.Staging.File(manifest.FileName)
	written, err := o.deps.Manifest.WriteFile(path)
	if err != nil {
		return false, err
	}
	if !written {
		slog.Info("No artifacts produced, skipping manifest")
		return false, nil
	}
	o.deps.Sink.Enqueue(dispatch.Item{Path: path, Name: manifest.FileName})
	slog.Info("Queued "+manifest.FileName, slog.Int("entries", o.deps.Manifest.Len()))
	return true, nil
}
