package eventstore

import (
	"testing"
)

func appendEvent(t *testing.T, store Store, e *BaseEvent, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	if err := store.Append(t.Context(), e.RunID(), e.Type(), e.Payload(), nil); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestRunHistoryFoldsEvents(t *testing.T) {
	store := newMemoryStore(t)

	e, err := NewRunStarted(testRunID, RunStartedPayload{Workflow: "nightly", Date: "2024.03.05", Targets: []string{"alpha", "beta"}})
	appendEvent(t, store, e, err)
	e, err = NewTargetFinished(testRunID, TargetFinishedPayload{Target: "alpha", Status: "failed", ExitCode: 1})
	appendEvent(t, store, e, err)
	e, err = NewTargetFinished(testRunID, TargetFinishedPayload{Target: "beta", Status: "succeeded", Artifacts: 1})
	appendEvent(t, store, e, err)
	e, err = NewArtifactDelivered(testRunID, ArtifactDeliveredPayload{Artifact: "Evervolv-beta.zip", Destination: "local", OK: true})
	appendEvent(t, store, e, err)
	e, err = NewArtifactDelivered(testRunID, ArtifactDeliveredPayload{Artifact: "Evervolv-beta.zip", Destination: "remote", Error: "exit 23"})
	appendEvent(t, store, e, err)
	e, err = NewRunCompleted(testRunID, RunCompletedPayload{Outcome: "completed", Revision: "abc123"})
	appendEvent(t, store, e, err)

	rec, err := NewRunHistory(store).Get(t.Context(), testRunID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Workflow != "nightly" || rec.Date != "2024.03.05" {
		t.Errorf("unexpected run header %+v", rec)
	}
	if rec.Targets["alpha"] != "failed" || rec.Targets["beta"] != "succeeded" {
		t.Errorf("unexpected targets %v", rec.Targets)
	}
	if rec.Delivered != 1 || rec.FailedDeliveries != 1 {
		t.Errorf("deliveries = %d/%d", rec.Delivered, rec.FailedDeliveries)
	}
	if rec.Status != "completed" || rec.CompletedAt == nil || rec.Revision != "abc123" {
		t.Errorf("unexpected completion %+v", rec)
	}
}

func TestRunHistoryRecent(t *testing.T) {
	store := newMemoryStore(t)
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		e, err := NewRunStarted(id, RunStartedPayload{Workflow: "release"})
		appendEvent(t, store, e, err)
	}

	recs, err := NewRunHistory(store).Recent(t.Context(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(recs))
	}
	if recs[0].Status != statusRunning {
		t.Errorf("run without completion should be running, got %s", recs[0].Status)
	}
	for _, r := range recs {
		if r.RunID == "run-1" {
			t.Error("oldest run should be cut by the limit")
		}
	}
}
