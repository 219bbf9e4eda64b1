package orchestrator

import (
	"time"

	"git.home.luguber.info/inful/nightlybuilder/internal/triage"
)

// Status is a target's terminal state.
type Status string

const (
	StatusSucceeded   Status = "succeeded"
	StatusNoArtifacts Status = "no_artifacts"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
	// StatusUnshipped means the build succeeded but its artifacts could not be
	// placed (no codename resolved) and were not offered to any destination.
	StatusUnshipped Status = "unshipped"
)

// BuildAttempt is one invocation of the build command. It is not modified
// after Build returns. ExitCode is zero on success and -1 when the command
// did not exit with a status of its own.
type BuildAttempt struct {
	Target   string
	Start    time.Time
	End      time.Time
	LogPath  string
	ExitCode int
	Err      error
}

// Succeeded reports a zero exit status.
func (a BuildAttempt) Succeeded() bool { return a.Err == nil }

func (a BuildAttempt) Duration() time.Duration { return a.End.Sub(a.Start) }

// Artifact is a build output that was staged and offered to every destination.
type Artifact struct {
	Target string `json:"target"`
	Name   string `json:"name"`
	Origin string `json:"origin"`
	Staged string `json:"staged"`
	Subdir string `json:"subdir,omitempty"`
	Size   int64  `json:"size"`
	MD5Sum string `json:"md5sum"`
}

// TargetOutcome is what happened to one requested target.
type TargetOutcome struct {
	Target    string           `json:"target"`
	Status    Status           `json:"status"`
	ExitCode  int              `json:"exit_code,omitempty"`
	Duration  time.Duration    `json:"duration"`
	Artifacts []Artifact       `json:"artifacts,omitempty"`
	Findings  []triage.Finding `json:"findings,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// Tally counts outcomes by status.
func Tally(outcomes []TargetOutcome) map[Status]int {
	out := map[Status]int{}
	for _, o := range outcomes {
		out[o.Status]++
	}
	return out
}
