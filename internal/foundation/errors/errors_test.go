package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "nightlybuilder.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, exists := err.Context().GetString("file")
		require.True(t, exists)
		assert.Equal(t, "nightlybuilder.yaml", file)
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		base := DestinationError("no destination").Fatal().Build()
		wrapped := fmt.Errorf("run: %w", base)

		assert.True(t, IsClassified(wrapped))
		assert.True(t, HasCategory(wrapped, CategoryDestination))
		assert.True(t, IsFatal(wrapped))
		assert.Equal(t, CategoryDestination, GetCategory(wrapped))
		assert.Equal(t, CategoryInternal, GetCategory(stderrors.New("plain")))
	})

	t.Run("Sentinel matching", func(t *testing.T) {
		sentinel := ConfigError("no destination configured").Build()
		err := ConfigError("no destination configured").WithContext("x", 1).Build()
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("WithContext copies", func(t *testing.T) {
		orig := BuildError("boom").Build()
		cp := orig.WithContext("target", "alpha")
		_, onOrig := orig.Context().Get("target")
		assert.False(t, onOrig)
		v, _ := cp.Context().GetString("target")
		assert.Equal(t, "alpha", v)
	})
}

func TestErrorBuilder(t *testing.T) {
	cause := stderrors.New("ssh exited 255")
	err := WrapError(cause, CategoryDestination, "remote directory setup failed").
		Warning().
		WithContext("host", "example.org").
		Build()

	assert.Equal(t, SeverityWarning, err.Severity())
	assert.Same(t, cause, err.Cause())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[destination:warning] remote directory setup failed: ssh exited 255")
}

func TestErrorContextMerge(t *testing.T) {
	var nilCtx ErrorContext
	other := ErrorContext{"a": 1}
	assert.Equal(t, other, nilCtx.Merge(other))

	merged := ErrorContext{"a": 1, "b": 2}.Merge(ErrorContext{"b": 3})
	assert.Equal(t, ErrorContext{"a": 1, "b": 3}, merged)
}

func TestCLIErrorAdapter(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{stderrors.New("plain"), 1},
		{ValidationError("bad flag").Build(), 2},
		{ConfigError("no destination").Build(), 7},
		{DestinationError("ssh failed").Build(), 8},
		{BuildError("build").Build(), 11},
		{DaemonError("scheduler").Build(), 12},
		{InternalError("bug").Build(), 10},
	}
	a := NewCLIErrorAdapter(false, nil)
	for _, tc := range cases {
		assert.Equal(t, tc.code, a.ExitCodeFor(tc.err), "%v", tc.err)
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	a := NewCLIErrorAdapter(false, logger)
	a.out = &out
	exitCode := -1
	a.exit = func(code int) { exitCode = code }

	a.HandleError(ConfigError("nowhere to put builds").WithContext("hint", "set DROID_MIRROR").Build())

	assert.Equal(t, 7, exitCode)
	assert.Equal(t, "Error: nowhere to put builds\n", out.String())
	assert.Contains(t, logs.String(), "category=config")
	assert.Contains(t, logs.String(), "hint=\"set DROID_MIRROR\"")
}

func TestCLIErrorAdapter_FormatVerbose(t *testing.T) {
	a := NewCLIErrorAdapter(true, nil)
	err := SyncError("sync returned 1").Build()
	assert.Equal(t, err.Error(), a.FormatError(err))
	assert.Equal(t, "Error: plain", a.FormatError(stderrors.New("plain")))
}
