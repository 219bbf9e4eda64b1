package metrics

import "time"

// TransferResult labels the outcome of one artifact transfer.
type TransferResult string

const (
	TransferSuccess TransferResult = "success"
	TransferFailed  TransferResult = "failed"
)

// RunOutcome labels how a whole run ended.
type RunOutcome string

const (
	RunCompleted RunOutcome = "completed"
	RunAborted   RunOutcome = "aborted"
)

// Recorder defines the observability hooks of a run. Implementations must be
// safe for concurrent use; dispatch workers call them from their own goroutines.
type Recorder interface {
	ObserveTargetDuration(target string, d time.Duration)
	IncTargetOutcome(status string)
	ObserveTransferDuration(destination string, d time.Duration)
	IncTransferResult(destination string, result TransferResult)
	SetQueueDepth(destination string, n int)
	ObserveRunDuration(workflow string, d time.Duration)
	IncRunOutcome(workflow string, outcome RunOutcome)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTargetDuration(string, time.Duration)   {}
func (NoopRecorder) IncTargetOutcome(string)                       {}
func (NoopRecorder) ObserveTransferDuration(string, time.Duration) {}
func (NoopRecorder) IncTransferResult(string, TransferResult)      {}
func (NoopRecorder) SetQueueDepth(string, int)                     {}
func (NoopRecorder) ObserveRunDuration(string, time.Duration)      {}
func (NoopRecorder) IncRunOutcome(string, RunOutcome)              {}
