// Package triage pulls likely error excerpts out of a captured build log.
//
// Each extractor is an independent context search in the manner of
// grep -B/-A: matching lines plus surrounding context, with "--" between
// non-adjacent groups. Every extractor scans the whole log, so one failure
// may be reported under several labels. The output is a digest for a human,
// not a root cause.
package triage

import (
	"bufio"
	"fmt"
	"io"
	"regexp"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
)

// GroupSeparator separates non-adjacent context groups.
const GroupSeparator = "--"

// Extractor is one labeled context search.
type Extractor struct {
	Label   string
	Pattern *regexp.Regexp
	Before  int
	After   int
}

// NewExtractor compiles pattern into an Extractor.
func NewExtractor(label, pattern string, before, after int) (Extractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Extractor{}, fmt.Errorf("triage pattern for %s: %w", label, err)
	}
	return Extractor{Label: label, Pattern: re, Before: before, After: after}, nil
}

// DefaultExtractors covers compiler, javac and make failures of an Android
// platform build.
func DefaultExtractors() []Extractor {
	return []Extractor{
		{Label: "GCC", Pattern: regexp.MustCompile(` error:`), Before: 1, After: 2},
		{Label: "JAVA", Pattern: regexp.MustCompile(` error$`), Before: 10},
		{Label: "JAVA", Pattern: regexp.MustCompile(` errors$`), Before: 20},
		{Label: "MAKE", Pattern: regexp.MustCompile(regexp.QuoteMeta(` *** `))},
	}
}

// FromConfig builds extractors from configuration, falling back to
// DefaultExtractors when none are configured.
func FromConfig(cfg config.TriageConfig) ([]Extractor, error) {
	if len(cfg.Extractors) == 0 {
		return DefaultExtractors(), nil
	}
	out := make([]Extractor, 0, len(cfg.Extractors))
	for _, ec := range cfg.Extractors {
		ex, err := NewExtractor(ec.Label, ec.Pattern, ec.Before, ec.After)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

// Finding is the output of one extractor that matched.
type Finding struct {
	Label string   `json:"label"`
	Lines []string `json:"lines"`
}

// Analyzer applies an ordered list of extractors to a log.
type Analyzer struct {
	extractors []Extractor
}

// NewAnalyzer returns an Analyzer; nil extractors means DefaultExtractors.
func NewAnalyzer(extractors []Extractor) *Analyzer {
	if extractors == nil {
		extractors = DefaultExtractors()
	}
	return &Analyzer{extractors: extractors}
}

// Analyze rewinds r before every extractor and returns one Finding per
// extractor that produced output, in extractor order. The result depends only
// on the log content.
func (a *Analyzer) Analyze(r io.ReadSeeker) ([]Finding, error) {
	var findings []Finding
	for _, ex := range a.extractors {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return findings, fmt.Errorf("rewind build log: %w", err)
		}
		lines, err := readLines(r)
		if err != nil {
			return findings, fmt.Errorf("read build log: %w", err)
		}
		if out := ex.Extract(lines); len(out) > 0 {
			findings = append(findings, Finding{Label: ex.Label, Lines: out})
		}
	}
	return findings, nil
}

// Extract returns matching lines with their context.
func (ex Extractor) Extract(lines []string) []string {
	var out []string
	last := -1 // index of the last line emitted
	for i, line := range lines {
		if !ex.Pattern.MatchString(line) {
			continue
		}
		from := max(i-ex.Before, 0)
		to := min(i+ex.After, len(lines)-1)
		if from <= last {
			from = last + 1
		} else if last >= 0 && from > last+1 {
			out = append(out, GroupSeparator)
		}
		for j := from; j <= to; j++ {
			out = append(out, lines[j])
		}
		if to > last {
			last = to
		}
	}
	return out
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
