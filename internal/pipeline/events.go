package pipeline

import (
	"git.home.luguber.info/inful/nightlybuilder/internal/eventstore"
)

// Event is a domain event published during a run.
type Event interface{ Name() string }

// RunEvent wraps a stored run event. Summary is set on RunCompleted only.
type RunEvent struct {
	*eventstore.BaseEvent
	Summary *Summary
}

func (e RunEvent) Name() string { return e.Type() }

func newRunEvent(base *eventstore.BaseEvent, workflow string) RunEvent {
	base.EventMetadata = map[string]string{"workflow": workflow}
	return RunEvent{BaseEvent: base}
}
