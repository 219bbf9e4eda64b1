package command

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_Success(t *testing.T) {
	var out bytes.Buffer
	err := ExecRunner{}.Run(t.Context(), Spec{
		Path:   "sh",
		Args:   []string{"-c", `printf "%s" "$NB_TARGET"`},
		Env:    map[string]string{"NB_TARGET": "passion"},
		Stdout: &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "passion", out.String())
}

func TestExecRunner_ExitCode(t *testing.T) {
	err := ExecRunner{}.Run(t.Context(), Spec{Path: "sh", Args: []string{"-c", "exit 3"}})
	require.Error(t, err)
	code, ok := ExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 3, code)
	assert.Equal(t, "sh exited with status 3", err.Error())
}

func TestExecRunner_CombinedOutput(t *testing.T) {
	var buf bytes.Buffer
	err := ExecRunner{}.Run(t.Context(), Spec{
		Path:   "sh",
		Args:   []string{"-c", "echo out; echo err 1>&2"},
		Stdout: &buf,
		Stderr: &buf,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "out\n")
	assert.Contains(t, buf.String(), "err\n")
}

func TestExecRunner_MissingBinary(t *testing.T) {
	err := ExecRunner{}.Run(t.Context(), Spec{Path: "/nonexistent/definitely-not-here"})
	require.Error(t, err)
	_, ok := ExitCode(err)
	assert.False(t, ok)
}

func TestExitCode_Nil(t *testing.T) {
	_, ok := ExitCode(nil)
	assert.False(t, ok)
	_, ok = ExitCode(errors.New("x"))
	assert.False(t, ok)
}

func TestEnvListSorted(t *testing.T) {
	got := envList(map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, []string{"A=1", "B=2"}, got)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{Handler: func(_ context.Context, spec Spec) error {
		if spec.Path == "ssh" {
			return &ExitError{Command: "ssh", Code: 255}
		}
		return nil
	}}
	require.NoError(t, r.Run(t.Context(), Spec{Path: "rsync"}))
	require.Error(t, r.Run(t.Context(), Spec{Path: "ssh"}))
	assert.Len(t, r.Calls(), 2)
	assert.Len(t, r.CallsTo("ssh"), 1)
}
