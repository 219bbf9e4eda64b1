package triage

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
)

const gccLog = `target thumb C: libfoo <= foo.c
foo.c: In function 'main':
foo.c:3:5: error: 'x' undeclared (first use in this function)
foo.c:3:5: note: each undeclared identifier is reported only once
compilation terminated.
make: *** [out/target/product/passion/obj/foo.o] Error 1
make: *** Waiting for unfinished jobs....
`

func TestGCCAndMakeBothFire(t *testing.T) {
	findings, err := NewAnalyzer(nil).Analyze(strings.NewReader(gccLog))
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, "GCC", findings[0].Label)
	assert.Equal(t, []string{
		"foo.c: In function 'main':",
		"foo.c:3:5: error: 'x' undeclared (first use in this function)",
		"foo.c:3:5: note: each undeclared identifier is reported only once",
		"compilation terminated.",
	}, findings[0].Lines)

	assert.Equal(t, "MAKE", findings[1].Label)
	assert.Len(t, findings[1].Lines, 2)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	r := strings.NewReader(gccLog)
	a := NewAnalyzer(nil)
	first, err := a.Analyze(r)
	require.NoError(t, err)
	second, err := a.Analyze(r)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCleanLogHasNoFindings(t *testing.T) {
	findings, err := NewAnalyzer(nil).Analyze(strings.NewReader("all good\n#### make completed successfully ####\n"))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestJavaExtractorsUseLeadingContext(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 25; i++ {
		b.WriteString("line\n")
	}
	b.WriteString("Foo.java:12: cannot find symbol\n1 error\n")
	findings, err := NewAnalyzer(nil).Analyze(strings.NewReader(b.String()))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "JAVA", findings[0].Label)
	assert.Len(t, findings[0].Lines, 11)
	assert.Equal(t, "1 error", findings[0].Lines[10])
}

func TestExtractSeparatesDistantGroups(t *testing.T) {
	ex, err := NewExtractor("X", "hit", 1, 1)
	require.NoError(t, err)
	lines := []string{"a", "hit1", "b", "c", "d", "hit2", "e"}
	assert.Equal(t, []string{"a", "hit1", "b", GroupSeparator, "d", "hit2", "e"}, ex.Extract(lines))
}

func TestExtractMergesOverlappingAndAdjacentGroups(t *testing.T) {
	ex, err := NewExtractor("X", "hit", 1, 1)
	require.NoError(t, err)

	overlapping := []string{"a", "hit1", "hit2", "b"}
	assert.Equal(t, overlapping, ex.Extract(overlapping))

	adjacent := []string{"hit1", "a", "b", "hit2"}
	assert.Equal(t, adjacent, ex.Extract(adjacent))
}

func TestMakePatternIsLiteral(t *testing.T) {
	findings, err := NewAnalyzer(nil).Analyze(strings.NewReader("a**b\nmake: *** No rule\n"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, []string{"make: *** No rule"}, findings[0].Lines)
}

func TestFromConfig(t *testing.T) {
	exs, err := FromConfig(config.TriageConfig{})
	require.NoError(t, err)
	assert.Len(t, exs, 4)

	exs, err = FromConfig(config.TriageConfig{Extractors: []config.ExtractorConfig{
		{Label: "LINK", Pattern: `undefined reference`, After: 1},
	}})
	require.NoError(t, err)
	require.Len(t, exs, 1)
	assert.Equal(t, "LINK", exs[0].Label)

	_, err = FromConfig(config.TriageConfig{Extractors: []config.ExtractorConfig{{Label: "BAD", Pattern: "("}}})
	assert.Error(t, err)
}

func TestAnalyzeFileAndLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build_stderr")
	require.NoError(t, os.WriteFile(path, []byte(gccLog), 0o600))

	findings, err := NewAnalyzer(nil).AnalyzeFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	Log(slog.New(slog.NewTextHandler(&buf, nil)), "alpha", findings)
	out := buf.String()
	assert.Contains(t, out, `msg=GCC:`)
	assert.Contains(t, out, "target=alpha")
	assert.Contains(t, out, "undeclared")
	assert.Contains(t, out, `msg=MAKE:`)
}
