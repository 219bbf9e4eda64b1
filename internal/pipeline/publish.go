package pipeline

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/nightlybuilder/internal/dispatch"
	"git.home.luguber.info/inful/nightlybuilder/internal/eventstore"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
	"git.home.luguber.info/inful/nightlybuilder/internal/orchestrator"
)

func (rn *run) publish(ctx context.Context, base *eventstore.BaseEvent, err error, summary *Summary) {
	if rn.Bus == nil {
		return
	}
	if err != nil {
		slog.Warn("Failed to build event", logfields.RunID(rn.summary.RunID), logfields.Error(err))
		return
	}
	ev := newRunEvent(base, rn.summary.Workflow)
	ev.Summary = summary
	if err := rn.Bus.Publish(ctx, ev); err != nil {
		slog.Warn("Event handler failed",
			slog.String("event", ev.Name()),
			logfields.RunID(rn.summary.RunID),
			logfields.Error(err))
	}
}

func (rn *run) publishStarted(ctx context.Context) {
	base, err := eventstore.NewRunStarted(rn.summary.RunID, eventstore.RunStartedPayload{
		Workflow:     rn.summary.Workflow,
		Date:         rn.summary.Date,
		Targets:      rn.req.Targets,
		Destinations: rn.summary.Destinations,
	})
	rn.publish(ctx, base, err, nil)
}

func (rn *run) publishTarget(ctx context.Context, o orchestrator.TargetOutcome) {
	base, err := eventstore.NewTargetFinished(rn.summary.RunID, eventstore.TargetFinishedPayload{
		Target:     o.Target,
		Status:     string(o.Status),
		ExitCode:   o.ExitCode,
		DurationMS: o.Duration.Milliseconds(),
		Artifacts:  len(o.Artifacts),
		Reason:     o.Reason,
	})
	rn.publish(ctx, base, err, nil)
}

func (rn *run) publishDelivery(ctx context.Context, d dispatch.Delivery) {
	p := eventstore.ArtifactDeliveredPayload{
		Artifact:    d.Item.Name,
		Target:      d.Item.Target,
		Destination: d.Destination,
		Address:     d.Address,
		OK:          d.OK(),
		DurationMS:  d.Duration.Milliseconds(),
	}
	if d.Err != nil {
		p.Error = d.Err.Error()
	}
	base, err := eventstore.NewArtifactDelivered(rn.summary.RunID, p)
	rn.publish(ctx, base, err, nil)
}

func (rn *run) publishCompleted(ctx context.Context) {
	s := rn.summary
	p := eventstore.RunCompletedPayload{
		Outcome:          s.Outcome,
		DurationMS:       s.Duration.Milliseconds(),
		Targets:          map[string]string{},
		Delivered:        len(s.Deliveries) - s.FailedDeliveries(),
		FailedDeliveries: s.FailedDeliveries(),
		Manifest:         s.Manifest,
		Error:            s.Error,
	}
	for _, t := range s.Targets {
		p.Targets[t.Target] = string(t.Status)
	}
	if s.Revision != nil {
		p.Revision = s.Revision.Commit
	}
	base, err := eventstore.NewRunCompleted(s.RunID, p)
	rn.publish(ctx, base, err, s)
}

// OnCompleted subscribes fn to finished runs.
func (b *Bus) OnCompleted(fn func(*Summary) error) {
	b.Subscribe(eventstore.TypeRunCompleted, func(e Event) error {
		ev, ok := e.(RunEvent)
		if !ok || ev.Summary == nil {
			return nil
		}
		return fn(ev.Summary)
	})
}
