package orchestrator

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nightlybuilder/internal/command"
	"git.home.luguber.info/inful/nightlybuilder/internal/destination"
	"git.home.luguber.info/inful/nightlybuilder/internal/dispatch"
	"git.home.luguber.info/inful/nightlybuilder/internal/manifest"
	"git.home.luguber.info/inful/nightlybuilder/internal/workspace"
)

const failingLog = `[ 12% 100/800] target thumb C++: libfoo <= foo.cpp
foo.cpp:10:3: error: expected ';' before '}' token
    }
    ^
make: *** [out/target/product/alpha/obj/foo.o] Error 1
`

type sink struct {
	mu    sync.Mutex
	items []dispatch.Item
}

func (s *sink) Enqueue(it dispatch.Item) {
	s.mu.Lock()
	s.items = append(s.items, it)
	s.mu.Unlock()
}

type dirMaker struct {
	calls []string
	err   error
}

func (d *dirMaker) EnsureDir(_ context.Context, dest *destination.Destination, subdir string) error {
	d.calls = append(d.calls, dest.Name()+":"+subdir)
	return d.err
}

type codenames map[string]string

func (c codenames) Resolve(target string) (string, error) {
	if name, ok := c[target]; ok {
		return name, nil
	}
	return "", fmt.Errorf("no codename for %s", target)
}

type fixture struct {
	src      string
	runner   *command.Recorder
	sink     *sink
	staging  *workspace.Manager
	manifest *manifest.Accumulator
	opts     Options
	deps     Deps
	captures map[string]string
}

func productDir(src, target string) string {
	return filepath.Join(src, "out", "target", "product", target)
}

// newFixture builds a fixture whose build command fails for targets in
// failing and writes one Evervolv zip for every other target.
func newFixture(t *testing.T, failing ...string) *fixture {
	t.Helper()
	f := &fixture{src: t.TempDir(), sink: &sink{}, manifest: &manifest.Accumulator{}, captures: map[string]string{}}
	fail := map[string]bool{}
	for _, name := range failing {
		fail[name] = true
	}

	f.runner = &command.Recorder{Handler: func(_ context.Context, spec command.Spec) error {
		target := spec.Env["EV_BUILD_TARGET"]
		if fail[target] {
			_, _ = io.WriteString(spec.Stdout, failingLog)
			return &command.ExitError{Command: spec.Path, Code: 2}
		}
		_, _ = io.WriteString(spec.Stdout, "#### make completed successfully ####\n")
		dir := productDir(f.src, target)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "Evervolv-"+target+".zip"), []byte("zip of "+target), 0o600)
	}}

	f.staging = workspace.NewManager(t.TempDir(), "tmp-nightlybuilder_zips")
	require.NoError(t, f.staging.Create())

	f.opts = Options{
		SourceDir:      f.src,
		BuildCommand:   "/helpers/build.sh",
		TargetEnv:      "EV_BUILD_TARGET",
		ExtraEnv:       map[string]string{"NIGHTLY_BUILD": "true"},
		OutputDir:      "out/target/product/{target}",
		ArtifactPrefix: "Evervolv",
		ArtifactSuffix: ".zip",
		Date:           "2024.03.05",
		ManifestTag:    "nightly",
		MessageFormat:  "Nightly build for %s",
	}
	f.deps = Deps{
		Runner:   f.runner,
		Staging:  f.staging,
		Sink:     f.sink,
		Manifest: f.manifest,
	}
	return f
}

func (f *fixture) orchestrator() *Orchestrator { return New(f.opts, f.deps) }

func TestFailedTargetDoesNotStopSiblings(t *testing.T) {
	f := newFixture(t, "alpha")
	outcomes := f.orchestrator().Run(context.Background(), []string{"alpha", "beta"})

	require.Len(t, outcomes, 2)
	alpha, beta := outcomes[0], outcomes[1]

	assert.Equal(t, StatusFailed, alpha.Status)
	assert.Equal(t, 2, alpha.ExitCode)
	require.NotEmpty(t, alpha.Findings)
	assert.Equal(t, "GCC", alpha.Findings[0].Label)
	assert.Contains(t, alpha.Findings[0].Lines, "foo.cpp:10:3: error: expected ';' before '}' token")

	assert.Equal(t, StatusSucceeded, beta.Status)
	require.Len(t, beta.Artifacts, 1)

	entries := f.manifest.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "beta", entries[0].Device)
	require.Len(t, f.sink.items, 1)
	assert.Equal(t, "Evervolv-beta.zip", f.sink.items[0].Name)
	assert.Equal(t, "beta", f.sink.items[0].Target)
}

func TestCaptureIsTruncatedPerTarget(t *testing.T) {
	f := newFixture(t, "alpha")
	f.orchestrator().Run(context.Background(), []string{"alpha", "beta"})

	data, err := os.ReadFile(f.staging.File(CaptureFile))
	require.NoError(t, err)
	assert.Equal(t, "#### make completed successfully ####\n", string(data))
}

func TestTargetIsPassedOnlyThroughInvocationEnv(t *testing.T) {
	t.Setenv("EV_BUILD_TARGET", "")
	f := newFixture(t)
	f.orchestrator().Run(context.Background(), []string{"alpha", "beta"})

	calls := f.runner.CallsTo("/helpers/build.sh")
	require.Len(t, calls, 2)
	assert.Equal(t, map[string]string{"EV_BUILD_TARGET": "alpha", "NIGHTLY_BUILD": "true"}, calls[0].Spec.Env)
	assert.Equal(t, "beta", calls[1].Spec.Env["EV_BUILD_TARGET"])
	assert.Equal(t, f.src, calls[0].Spec.Dir)
	assert.Equal(t, "", os.Getenv("EV_BUILD_TARGET"))
}

func TestManifestMatchesStagedBytes(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator()
	o.Run(context.Background(), []string{"alpha", "beta"})

	entries := f.manifest.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		data, err := os.ReadFile(f.staging.File(filepath.Join(e.Device, e.Name)))
		require.NoError(t, err)
		sum := md5.Sum(data) //nolint:gosec
		assert.Equal(t, hex.EncodeToString(sum[:]), e.MD5Sum)
		assert.Equal(t, int64(len(data)), e.Size)
		assert.Equal(t, "2024.03.05", e.Date)
		assert.Equal(t, 0, e.Count)
		assert.Equal(t, "nightly", e.Type)
		assert.Equal(t, "Nightly build for "+e.Device, e.Message)
	}

	shipped, err := o.ShipManifest()
	require.NoError(t, err)
	assert.True(t, shipped)
	last := f.sink.items[len(f.sink.items)-1]
	assert.Equal(t, manifest.FileName, last.Name)
	assert.FileExists(t, last.Path)
}

func TestNoArtifactsIsNotAFailure(t *testing.T) {
	f := newFixture(t)
	f.deps.Runner = &command.Recorder{}
	o := f.orchestrator()

	outcomes := o.Run(context.Background(), []string{"alpha"})
	assert.Equal(t, StatusNoArtifacts, outcomes[0].Status)

	shipped, err := o.ShipManifest()
	require.NoError(t, err)
	assert.False(t, shipped)
	assert.Empty(t, f.sink.items)
	assert.NoFileExists(t, f.staging.File(manifest.FileName))
}

func TestDiscoverFiltersByConvention(t *testing.T) {
	f := newFixture(t)
	dir := productDir(f.src, "alpha")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Evervolv-dir.zip"), 0o755))
	for _, name := range []string{"Evervolv-b.zip", "Evervolv-a.zip", "other.zip", "Evervolv-a.zip.md5sum", "system.img"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}

	files, err := f.orchestrator().Discover("alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "Evervolv-a.zip"), filepath.Join(dir, "Evervolv-b.zip")}, files)

	files, err = f.orchestrator().Discover("missing")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPerCodenameShipping(t *testing.T) {
	f := newFixture(t)
	dm := &dirMaker{}
	f.opts.PerCodename = true
	f.deps.Codenames = codenames{"beta": "Turba"}
	f.deps.DirMaker = dm
	f.deps.Destinations = []*destination.Destination{
		{Kind: destination.KindRemote, Host: "h", User: "u", Path: "/srv"},
		{Kind: destination.KindLocal, Path: t.TempDir()},
	}

	outcomes := f.orchestrator().Run(context.Background(), []string{"alpha", "beta"})

	assert.Equal(t, StatusUnshipped, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Reason, "alpha")
	assert.Equal(t, StatusSucceeded, outcomes[1].Status)

	require.Len(t, f.sink.items, 1)
	assert.Equal(t, "Turba", f.sink.items[0].Subdir)
	assert.Equal(t, []string{"remote:Turba", "local:Turba"}, dm.calls)
	require.Len(t, f.manifest.Entries(), 1)
	assert.Equal(t, "beta", f.manifest.Entries()[0].Device)
}

func TestSubdirFailureStillShips(t *testing.T) {
	f := newFixture(t)
	f.opts.PerCodename = true
	f.deps.Codenames = codenames{"alpha": "Kappa"}
	f.deps.DirMaker = &dirMaker{err: stderrors.New("ssh exited with status 255")}
	f.deps.Destinations = []*destination.Destination{{Kind: destination.KindRemote, Host: "h", User: "u", Path: "/srv"}}

	outcomes := f.orchestrator().Run(context.Background(), []string{"alpha"})
	assert.Equal(t, StatusSucceeded, outcomes[0].Status)
	assert.Len(t, f.sink.items, 1)
}

func TestSkipBuildUsesExistingOutput(t *testing.T) {
	f := newFixture(t)
	dir := productDir(f.src, "alpha")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Evervolv-alpha.zip"), []byte("old"), 0o600))
	f.opts.SkipBuild = true

	outcomes := f.orchestrator().Run(context.Background(), []string{"alpha"})
	assert.Empty(t, f.runner.Calls())
	assert.Equal(t, StatusSucceeded, outcomes[0].Status)
}

func TestSkipAndOutcomeHook(t *testing.T) {
	f := newFixture(t)
	var seen []TargetOutcome
	f.deps.OnOutcome = func(o TargetOutcome) { seen = append(seen, o) }

	outcomes := f.orchestrator().Skip([]string{"alpha", "beta"}, "sync failed")
	assert.Empty(t, f.runner.Calls())
	assert.Len(t, seen, 2)
	assert.Equal(t, map[Status]int{StatusSkipped: 2}, Tally(outcomes))
	assert.Equal(t, "sync failed", outcomes[1].Reason)
}

func TestMissingBuildCommandIsFailure(t *testing.T) {
	f := newFixture(t)
	f.deps.Runner = &command.Recorder{Handler: func(context.Context, command.Spec) error {
		return stderrors.New("run /helpers/build.sh: no such file or directory")
	}}

	outcomes := f.orchestrator().Run(context.Background(), []string{"alpha"})
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Equal(t, -1, outcomes[0].ExitCode)
	assert.Empty(t, outcomes[0].Findings)
}

func TestSameArtifactNameAcrossTargets(t *testing.T) {
	f := newFixture(t)
	f.runner.Handler = func(_ context.Context, spec command.Spec) error {
		target := spec.Env["EV_BUILD_TARGET"]
		dir := productDir(f.src, target)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "Evervolv-signed.zip"), []byte("signed bytes of "+target), 0o600)
	}

	outcomes := f.orchestrator().Run(context.Background(), []string{"alpha", "beta"})
	require.Len(t, outcomes, 2)
	assert.Equal(t, StatusSucceeded, outcomes[0].Status)
	assert.Equal(t, StatusSucceeded, outcomes[1].Status)

	require.Len(t, f.sink.items, 2)
	assert.NotEqual(t, f.sink.items[0].Path, f.sink.items[1].Path)

	entries := map[string]manifest.Entry{}
	for _, e := range f.manifest.Entries() {
		entries[e.Device] = e
	}
	require.Len(t, entries, 2)
	for _, it := range f.sink.items {
		assert.Equal(t, "Evervolv-signed.zip", it.Name)
		data, err := os.ReadFile(it.Path)
		require.NoError(t, err)
		assert.Equal(t, "signed bytes of "+it.Target, string(data))
		sum := md5.Sum(data) //nolint:gosec
		assert.Equal(t, hex.EncodeToString(sum[:]), entries[it.Target].MD5Sum, it.Target)
		assert.Equal(t, int64(len(data)), entries[it.Target].Size, it.Target)
	}
}

func TestBuildRecordsExitCode(t *testing.T) {
	f := newFixture(t, "alpha")
	o := f.orchestrator()

	failed := o.Build(context.Background(), "alpha")
	assert.False(t, failed.Succeeded())
	assert.Equal(t, 2, failed.ExitCode)

	ok := o.Build(context.Background(), "beta")
	assert.True(t, ok.Succeeded())
	assert.Equal(t, 0, ok.ExitCode)

	f.deps.Runner = &command.Recorder{Handler: func(context.Context, command.Spec) error {
		return stderrors.New("run /helpers/build.sh: no such file or directory")
	}}
	missing := f.orchestrator().Build(context.Background(), "alpha")
	assert.Equal(t, -1, missing.ExitCode)
}
