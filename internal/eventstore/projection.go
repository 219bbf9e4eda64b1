package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

const statusRunning = "running"

// RunRecord is the read model of one run.
type RunRecord struct {
	RunID            string            `json:"run_id"`
	Workflow         string            `json:"workflow"`
	Date             string            `json:"date"`
	Status           string            `json:"status"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	Duration         time.Duration     `json:"duration"`
	Targets          map[string]string `json:"targets"`
	Delivered        int               `json:"delivered"`
	FailedDeliveries int               `json:"failed_deliveries"`
	Revision         string            `json:"revision,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// RunHistory rebuilds run records from the store.
type RunHistory struct {
	store Store
}

func NewRunHistory(store Store) *RunHistory {
	return &RunHistory{store: store}
}

// Recent returns up to limit runs, newest first.
func (h *RunHistory) Recent(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := h.store.RecentRunIDs(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*RunRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := h.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Get folds the events of one run into a record.
func (h *RunHistory) Get(ctx context.Context, runID string) (*RunRecord, error) {
	events, err := h.store.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	rec := &RunRecord{RunID: runID, Status: statusRunning, Targets: map[string]string{}}
	for _, e := range events {
		apply(rec, e)
	}
	return rec, nil
}

func apply(rec *RunRecord, e Event) {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = e.Timestamp()
	}
	switch e.Type() {
	case TypeRunStarted:
		var p RunStartedPayload
		if json.Unmarshal(e.Payload(), &p) == nil {
			rec.Workflow = p.Workflow
			rec.Date = p.Date
			for _, t := range p.Targets {
				rec.Targets[t] = "pending"
			}
		}
		rec.StartedAt = e.Timestamp()

	case TypeTargetFinished:
		var p TargetFinishedPayload
		if json.Unmarshal(e.Payload(), &p) == nil {
			rec.Targets[p.Target] = p.Status
		}

	case TypeArtifactDelivered:
		var p ArtifactDeliveredPayload
		if json.Unmarshal(e.Payload(), &p) == nil {
			if p.OK {
				rec.Delivered++
			} else {
				rec.FailedDeliveries++
			}
		}

	case TypeRunCompleted:
		now := e.Timestamp()
		rec.CompletedAt = &now
		rec.Duration = now.Sub(rec.StartedAt)
		var p RunCompletedPayload
		if json.Unmarshal(e.Payload(), &p) == nil {
			rec.Status = p.Outcome
			rec.Revision = p.Revision
			rec.Error = p.Error
		}
	}
}
