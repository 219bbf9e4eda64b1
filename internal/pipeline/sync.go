package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/nightlybuilder/internal/command"
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
	"git.home.luguber.info/inful/nightlybuilder/internal/report"
)

// SourceSync updates the source tree before a nightly run and captures the
// changelog the sync command prints.
type SourceSync struct {
	Runner    command.Runner
	Command   string
	SourceDir string
	// ChangelogDir is relative to SourceDir.
	ChangelogDir string
	Date         string
}

// SyncResult is what the rest of the run needs to know about the sync.
type SyncResult struct {
	OK       bool
	ExitCode int
	Duration time.Duration
	// Changelog is the rendered HTML changelog, empty when none was produced.
	Changelog string
	Err       error
}

func (s *SourceSync) changelogBase() string {
	return filepath.Join(s.SourceDir, s.ChangelogDir, "changelog-"+s.Date)
}

// Run executes the sync command. A failing sync removes <source>/out so
// artifacts from an earlier run are never picked up.
func (s *SourceSync) Run(ctx context.Context) SyncResult {
	start := time.Now()
	res := SyncResult{OK: true}
	logPath := s.changelogBase() + ".log"

	res.Err = s.exec(ctx, logPath)
	res.Duration = time.Since(start)
	if res.Err != nil {
		res.OK = false
		code, ok := command.ExitCode(res.Err)
		if !ok {
			code = -1
		}
		res.ExitCode = code
		slog.Error(fmt.Sprintf("Sync returned %d", code),
			logfields.ExitCode(code),
			logfields.Duration(res.Duration),
			logfields.Error(res.Err))
		slog.Error("Skipping the build. You need to fix the repo")
		out := filepath.Join(s.SourceDir, "out")
		if err := os.RemoveAll(out); err != nil {
			slog.Warn("Failed to remove stale output", logfields.Path(out), logfields.Error(err))
		}
	} else {
		slog.Info("Synced source tree", logfields.Duration(res.Duration))
	}

	if _, err := os.Stat(logPath); err == nil {
		html, rerr := s.renderChangelog(logPath)
		if rerr != nil {
			slog.Warn("Failed to render changelog", logfields.Path(logPath), logfields.Error(rerr))
		} else {
			res.Changelog = html
		}
	}
	return res
}

func (s *SourceSync) exec(ctx context.Context, logPath string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return errors.WrapError(err, errors.CategorySync, "failed to create changelog directory").
			WithContext("path", filepath.Dir(logPath)).Build()
	}
	f, err := os.Create(logPath)
	if err != nil {
		return errors.WrapError(err, errors.CategorySync, "failed to open changelog").
			WithContext("path", logPath).Build()
	}
	defer func() { _ = f.Close() }()

	// Only stdout is the changelog; progress and errors on stderr belong in
	// the run log.
	var stderr bytes.Buffer
	err = s.Runner.Run(ctx, command.Spec{
		Path:   s.Command,
		Dir:    s.SourceDir,
		Stdout: f,
		Stderr: &stderr,
	})
	logStderr(s.Command, &stderr)
	return err
}

func logStderr(cmd string, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		slog.Info(line, logfields.Command(cmd), logfields.Category("sync"))
	}
}

func (s *SourceSync) renderChangelog(logPath string) (string, error) {
	lines, err := report.ReadLines(logPath)
	if err != nil {
		return "", err
	}
	doc := report.Document{Title: "Changelog"}
	if len(lines) > 0 {
		doc.Header = strings.TrimSpace(lines[0])
		doc.Lines = lines[1:]
	}
	html := s.changelogBase() + ".html"
	if err := report.WriteFile(html, doc); err != nil {
		return "", err
	}
	return html, nil
}
