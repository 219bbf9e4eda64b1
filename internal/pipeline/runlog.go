package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
)

// RunLog is the per-run script log. While installed it is the default slog
// logger, so every package's records land in the file.
type RunLog struct {
	path   string
	file   *os.File
	logger *slog.Logger
}

// OpenRunLog opens (appending) dir/scriptlog-<date>.log. Records are also
// written to console when it is not nil.
func OpenRunLog(dir, date string, cfg config.LoggingConfig, console io.Writer) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, "scriptlog-"+date+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	var w io.Writer = f
	if console != nil {
		w = io.MultiWriter(f, console)
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level)}
	var h slog.Handler
	if cfg.Format == config.LogFormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &RunLog{path: path, file: f, logger: slog.New(h)}, nil
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Install makes the run log the default logger and returns a function that
// restores the previous one.
func (l *RunLog) Install() (restore func()) {
	prev := slog.Default()
	slog.SetDefault(l.logger)
	return func() { slog.SetDefault(prev) }
}

func (l *RunLog) Logger() *slog.Logger { return l.logger }

func (l *RunLog) Path() string { return l.path }

// Sync flushes the file so it can be rendered while still open.
func (l *RunLog) Sync() error { return l.file.Sync() }

func (l *RunLog) Close() error { return l.file.Close() }
