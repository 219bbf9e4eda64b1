package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nightlybuilder/internal/command"
	"git.home.luguber.info/inful/nightlybuilder/internal/config"
)

func TestProfileLayout(t *testing.T) {
	nightly := ProfileFor(config.WorkflowNightly)
	assert.Equal(t, "2024.03.05", nightly.Layout("2024.03.05"))
	assert.True(t, nightly.Sync)
	assert.Equal(t, "true", nightly.ExtraEnv["NIGHTLY_BUILD"])

	release := ProfileFor(config.WorkflowRelease)
	assert.Empty(t, release.Layout("2024.03.05"))
	assert.False(t, release.Sync)
	assert.Empty(t, release.ExtraEnv)
	assert.Equal(t, "Release build for %s", release.MessageFormat)
}

func TestRunLogAppendsAndInstalls(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LoggingConfig{Level: config.LogLevelInfo, Format: config.LogFormatJSON}

	for i := 0; i < 2; i++ {
		l, err := OpenRunLog(dir, "2024.03.05", cfg, nil)
		require.NoError(t, err)
		restore := l.Install()
		slog.Info("hello")
		slog.Debug("hidden")
		restore()
		require.NoError(t, l.Close())
	}

	data, err := os.ReadFile(filepath.Join(dir, "scriptlog-2024.03.05.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"hello"`)
}

func TestSourceSyncRendersChangelog(t *testing.T) {
	src := t.TempDir()
	runner := &command.Recorder{Handler: func(_ context.Context, spec command.Spec) error {
		_, _ = io.WriteString(spec.Stdout, "Changes since yesterday\n* one\n* two\n")
		return nil
	}}
	s := &SourceSync{Runner: runner, Command: "/helpers/sync.sh", SourceDir: src, ChangelogDir: "nightly_changelogs", Date: "2024.03.05"}

	res := s.Run(context.Background())
	require.True(t, res.OK)
	require.Equal(t, filepath.Join(src, "nightly_changelogs", "changelog-2024.03.05.html"), res.Changelog)

	html, err := os.ReadFile(res.Changelog)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>Changelog</title>")
	assert.Contains(t, string(html), "Changes since yesterday")
	assert.Contains(t, string(html), "* two")
}

func TestSourceSyncFailureReportsExitCode(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "out"), 0o755))
	runner := &command.Recorder{Handler: func(context.Context, command.Spec) error {
		return &command.ExitError{Command: "sync", Code: 3}
	}}
	s := &SourceSync{Runner: runner, Command: "/helpers/sync.sh", SourceDir: src, ChangelogDir: "nightly_changelogs", Date: "2024.03.05"}

	res := s.Run(context.Background())
	assert.False(t, res.OK)
	assert.Equal(t, 3, res.ExitCode)
	assert.NoDirExists(t, filepath.Join(src, "out"))
	// The empty changelog still exists and is rendered.
	assert.NotEmpty(t, res.Changelog)
}

func TestSourceSyncStderrGoesToRunLog(t *testing.T) {
	src := t.TempDir()
	runner := &command.Recorder{Handler: func(_ context.Context, spec command.Spec) error {
		_, _ = io.WriteString(spec.Stdout, "Changes since yesterday\n* one\n")
		_, _ = io.WriteString(spec.Stderr, "remote: Counting objects: 100% (12/12), done.\n")
		return nil
	}}
	s := &SourceSync{Runner: runner, Command: "/helpers/sync.sh", SourceDir: src, ChangelogDir: "nightly_changelogs", Date: "2024.03.05"}

	logDir := t.TempDir()
	l, err := OpenRunLog(logDir, "2024.03.05", config.LoggingConfig{Level: config.LogLevelInfo, Format: config.LogFormatText}, nil)
	require.NoError(t, err)
	restore := l.Install()
	res := s.Run(context.Background())
	restore()
	require.NoError(t, l.Close())
	require.True(t, res.OK)

	changelog, err := os.ReadFile(filepath.Join(src, "nightly_changelogs", "changelog-2024.03.05.log"))
	require.NoError(t, err)
	assert.Equal(t, "Changes since yesterday\n* one\n", string(changelog))

	runLog, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Contains(t, string(runLog), "remote: Counting objects")
	assert.NotContains(t, string(runLog), "* one")
}
