package triage

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
)

// AnalyzeFile opens path and runs a over it.
func (a *Analyzer) AnalyzeFile(path string) ([]Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return a.Analyze(f)
}

// Log writes findings for target to the run log, one record per line so the
// rendered run report reads like the raw excerpt.
func Log(logger *slog.Logger, target string, findings []Finding) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("Dumping errors", logfields.Target(target))
	for _, f := range findings {
		logger.Error(f.Label+":", logfields.Target(target), logfields.Category(f.Label))
		for _, line := range f.Lines {
			if line == "" {
				continue
			}
			logger.Error(line, logfields.Target(target), logfields.Category(f.Label))
		}
	}
	if len(findings) == 0 {
		logger.Error("No known error patterns in build log", logfields.Target(target))
	}
}
