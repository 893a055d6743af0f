package core

import (
	"time"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// The interfaces below are defined locally in core so the engine does not
// import the storage or observability packages.

// EntityProvider loads the current workspace snapshot.
type EntityProvider interface {
	LoadWorkspace() (*models.Workspace, error)
}

// EventStore is the append-only behavioral event log.
type EventStore interface {
	Append(event models.TrackableEvent) (models.TrackableEvent, error)
	Query(filter models.EventFilter) ([]models.TrackableEvent, error)
	Prune(policy models.RetentionPolicy, now time.Time) (int, error)
}

// ScratchpadStore persists agent memory entries.
type ScratchpadStore interface {
	Write(scope models.ScratchpadScope, kind models.ScratchpadKind, content string) (models.ScratchpadEntry, error)
	Read(query models.ScratchpadQuery) ([]models.ScratchpadEntry, error)
	Consume(id string) (models.ScratchpadEntry, error)
}

// MetricsRecorder receives engine counters. observability.PromMetrics
// satisfies it.
type MetricsRecorder interface {
	ObserveSnapshot(d time.Duration, surfaced int)
	SnapshotFailed()
	FeedbackRecorded(action string)
	EventAppended(eventType string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSnapshot(time.Duration, int) {}
func (nopRecorder) SnapshotFailed()                    {}
func (nopRecorder) FeedbackRecorded(string)            {}
func (nopRecorder) EventAppended(string)               {}
