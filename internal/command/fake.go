package command

import (
	"context"
	"sync"
)

// Call records one invocation seen by a Recorder.
type Call struct {
	Spec Spec
}

// Recorder is a Runner for tests. Each call is recorded and answered by
// Handler; a nil Handler succeeds without output.
type Recorder struct {
	Handler func(ctx context.Context, spec Spec) error

	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Run(ctx context.Context, spec Spec) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Spec: spec})
	h := r.Handler
	r.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(ctx, spec)
}

// Calls returns a copy of every recorded invocation.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded invocations of path.
func (r *Recorder) CallsTo(path string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Spec.Path == path {
			out = append(out, c)
		}
	}
	return out
}
