package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Urgency expresses how time-sensitive a suggestion is.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Rank orders urgencies from low (0) to critical (3). Unknown values rank -1.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 0
	case UrgencyNormal:
		return 1
	case UrgencyHigh:
		return 2
	case UrgencyCritical:
		return 3
	}
	return -1
}

// UrgencyForLevel maps a staleness level to its default urgency.
func UrgencyForLevel(l StaleLevel) Urgency {
	switch l {
	case LevelCritical:
		return UrgencyCritical
	case LevelStale:
		return UrgencyHigh
	case LevelAging:
		return UrgencyNormal
	}
	return UrgencyLow
}

// FeedbackAction is the user's explicit response to a suggestion.
type FeedbackAction string

const (
	FeedbackApprove FeedbackAction = "approve"
	FeedbackDismiss FeedbackAction = "dismiss"
)

// EventType maps the action to the event it records.
func (a FeedbackAction) EventType() (EventType, bool) {
	switch a {
	case FeedbackApprove:
		return EventSuggestionApproved, true
	case FeedbackDismiss:
		return EventSuggestionDismissed, true
	}
	return "", false
}

// SuggestionCandidate is a proposed action awaiting scoring and gating.
type SuggestionCandidate struct {
	TriggerType    string    `json:"trigger_type"`
	Title          string    `json:"title"`
	ProposedAction string    `json:"proposed_action"`
	Entity         EntityKey `json:"entity"`
	TriggeredAt    time.Time `json:"triggered_at"`
	// Relevance is the intrinsic base score used when the entity has no
	// staleness result.
	Relevance float64 `json:"relevance"`
	// Urgency overrides the staleness-derived urgency when set.
	Urgency Urgency `json:"urgency,omitempty"`
}

// SuggestionID derives a stable id from the trigger type and entity.
func SuggestionID(triggerType string, entity EntityKey) string {
	sum := sha256.Sum256([]byte(triggerType + "|" + entity.String()))
	return "sg-" + hex.EncodeToString(sum[:])[:12]
}

// Suggestion is a scored, gated candidate.
type Suggestion struct {
	ID              string             `json:"id"`
	TriggerType     string             `json:"trigger_type"`
	Title           string             `json:"title"`
	ProposedAction  string             `json:"proposed_action"`
	Entity          EntityKey          `json:"entity"`
	Confidence      float64            `json:"confidence"`
	Urgency         Urgency            `json:"urgency"`
	StaleLevel      StaleLevel         `json:"stale_level,omitempty"`
	TriggeredAt     time.Time          `json:"triggered_at"`
	Ignored         bool               `json:"ignored,omitempty"`
	ShouldSurface   bool               `json:"should_surface"`
	RelatedEntities []RelationshipEdge `json:"related_entities"`
}
