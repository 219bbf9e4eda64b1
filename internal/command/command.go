// Package command runs the external programs the pipeline depends on (build
// and sync helpers, ssh, rsync) behind a small interface so the pipeline can be
// exercised without them.
package command

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Spec describes one invocation. Env entries are added on top of the current
// process environment for this invocation only; the process environment is
// never mutated.
type Spec struct {
	Path   string
	Args   []string
	Env    map[string]string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the invocation for logs.
func (s Spec) String() string {
	return strings.TrimSpace(s.Path + " " + strings.Join(s.Args, " "))
}

// Runner executes a Spec and blocks until it exits.
type Runner interface {
	Run(ctx context.Context, spec Spec) error
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}

// ExitCode extracts the exit status from err. ok is false when err is nil or
// the command never produced an exit status (e.g. binary not found).
func ExitCode(err error) (code int, ok bool) {
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, spec Spec) error {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(spec.Env)...)
	}

	slog.Debug("Running command", "command", spec.String(), "dir", spec.Dir)
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return &ExitError{Command: spec.Path, Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("run %s: %w", spec.Path, err)
}

// envList renders env deterministically so repeated runs produce identical
// environments.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
