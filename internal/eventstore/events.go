package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
)

// Event type names.
const (
	TypeRunStarted        = "RunStarted"
	TypeTargetFinished    = "TargetFinished"
	TypeArtifactDelivered = "ArtifactDelivered"
	TypeRunCompleted      = "RunCompleted"
)

// RunStartedPayload describes what a run was asked to do.
type RunStartedPayload struct {
	Workflow     string   `json:"workflow"`
	Date         string   `json:"date"`
	Targets      []string `json:"targets"`
	Destinations []string `json:"destinations"`
}

// TargetFinishedPayload is one target's terminal outcome.
type TargetFinishedPayload struct {
	Target     string `json:"target"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Artifacts  int    `json:"artifacts"`
	Reason     string `json:"reason,omitempty"`
}

// ArtifactDeliveredPayload is one transfer attempt.
type ArtifactDeliveredPayload struct {
	Artifact    string `json:"artifact"`
	Target      string `json:"target,omitempty"`
	Destination string `json:"destination"`
	Address     string `json:"address"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// RunCompletedPayload summarizes a finished run.
type RunCompletedPayload struct {
	Outcome          string            `json:"outcome"`
	DurationMS       int64             `json:"duration_ms"`
	Targets          map[string]string `json:"targets"`
	Delivered        int               `json:"delivered"`
	FailedDeliveries int               `json:"failed_deliveries"`
	Manifest         bool              `json:"manifest"`
	Revision         string            `json:"revision,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// NewEvent marshals payload into an event of eventType for runID.
func NewEvent(runID, eventType string, payload any) (*BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("run_id", runID).
			Build()
	}
	return &BaseEvent{
		EventRunID:     runID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

func NewRunStarted(runID string, p RunStartedPayload) (*BaseEvent, error) {
	return NewEvent(runID, TypeRunStarted, p)
}

func NewTargetFinished(runID string, p TargetFinishedPayload) (*BaseEvent, error) {
	return NewEvent(runID, TypeTargetFinished, p)
}

func NewArtifactDelivered(runID string, p ArtifactDeliveredPayload) (*BaseEvent, error) {
	return NewEvent(runID, TypeArtifactDelivered, p)
}

func NewRunCompleted(runID string, p RunCompletedPayload) (*BaseEvent, error) {
	return NewEvent(runID, TypeRunCompleted, p)
}
