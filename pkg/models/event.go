package models

import (
	"fmt"
	"strings"
	"time"
)

// EventSchemaVersion is the payload layout written by this version.
const EventSchemaVersion = 1

// EventType identifies a user behavior event.
type EventType string

const (
	EventSessionStarted      EventType = "session.started"
	EventSessionEnded        EventType = "session.ended"
	EventSuggestionShown     EventType = "suggestion.shown"
	EventSuggestionApproved  EventType = "suggestion.approved"
	EventSuggestionDismissed EventType = "suggestion.dismissed"
	EventFeatureUsed         EventType = "feature.used"
	EventNavigation          EventType = "navigation"
	EventShortcutUsed        EventType = "shortcut.used"
)

// IsSuggestion reports whether the event concerns a suggestion.
func (t EventType) IsSuggestion() bool {
	return strings.HasPrefix(string(t), "suggestion.")
}

// IsSession reports whether the event marks a session boundary.
func (t EventType) IsSession() bool {
	return t == EventSessionStarted || t == EventSessionEnded
}

// SuggestionPayload accompanies suggestion.* events.
type SuggestionPayload struct {
	SuggestionID string `json:"suggestion_id"`
	TriggerType  string `json:"trigger_type"`
}

// FeaturePayload accompanies feature.used events.
type FeaturePayload struct {
	Name string `json:"name"`
}

// NavigationPayload accompanies navigation events.
type NavigationPayload struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

// ShortcutPayload accompanies shortcut.used events.
type ShortcutPayload struct {
	Keys    string `json:"keys"`
	Feature string `json:"feature,omitempty"`
}

// EventPayload is a tagged variant: exactly the field matching the event
// type is set. Session events carry no variant.
type EventPayload struct {
	SchemaVersion int                `json:"schema_version"`
	Suggestion    *SuggestionPayload `json:"suggestion,omitempty"`
	Feature       *FeaturePayload    `json:"feature,omitempty"`
	Navigation    *NavigationPayload `json:"navigation,omitempty"`
	Shortcut      *ShortcutPayload   `json:"shortcut,omitempty"`
}

func (p EventPayload) variants() int {
	n := 0
	if p.Suggestion != nil {
		n++
	}
	if p.Feature != nil {
		n++
	}
	if p.Navigation != nil {
		n++
	}
	if p.Shortcut != nil {
		n++
	}
	return n
}

// TrackableEvent is one immutable entry of the behavior log.
type TrackableEvent struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	Payload   EventPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
	SessionID string       `json:"session_id,omitempty"`
}

// TriggerType returns the suggestion trigger type carried by the event, or "".
func (e TrackableEvent) TriggerType() string {
	if e.Payload.Suggestion == nil {
		return ""
	}
	return e.Payload.Suggestion.TriggerType
}

// Validate checks the event against its type's payload schema. The ID may
// be empty; stores assign one on append.
func (e TrackableEvent) Validate() error {
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: %s event has no timestamp", ErrInvalidEvent, e.Type)
	}
	if e.Payload.SchemaVersion != EventSchemaVersion {
		return fmt.Errorf("%w: payload schema_version %d is not supported", ErrInvalidEvent, e.Payload.SchemaVersion)
	}

	p := e.Payload
	want := 1
	switch e.Type {
	case EventSessionStarted, EventSessionEnded:
		want = 0
		if e.SessionID == "" {
			return fmt.Errorf("%w: %s requires a session_id", ErrInvalidEvent, e.Type)
		}
	case EventSuggestionShown, EventSuggestionApproved, EventSuggestionDismissed:
		if p.Suggestion == nil || p.Suggestion.TriggerType == "" || p.Suggestion.SuggestionID == "" {
			return fmt.Errorf("%w: %s requires suggestion.suggestion_id and suggestion.trigger_type", ErrInvalidEvent, e.Type)
		}
	case EventFeatureUsed:
		if p.Feature == nil || p.Feature.Name == "" {
			return fmt.Errorf("%w: %s requires feature.name", ErrInvalidEvent, e.Type)
		}
	case EventNavigation:
		if p.Navigation == nil || p.Navigation.To == "" {
			return fmt.Errorf("%w: %s requires navigation.to", ErrInvalidEvent, e.Type)
		}
	case EventShortcutUsed:
		if p.Shortcut == nil || p.Shortcut.Keys == "" {
			return fmt.Errorf("%w: %s requires shortcut.keys", ErrInvalidEvent, e.Type)
		}
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, e.Type)
	}

	if got := p.variants(); got != want {
		return fmt.Errorf("%w: %s carries %d payload variants, want %d", ErrInvalidEvent, e.Type, got, want)
	}
	return nil
}

// NewSuggestionEvent builds a suggestion.* event.
func NewSuggestionEvent(t EventType, suggestionID, triggerType, sessionID string, at time.Time) TrackableEvent {
	return TrackableEvent{
		Type: t,
		Payload: EventPayload{
			SchemaVersion: EventSchemaVersion,
			Suggestion:    &SuggestionPayload{SuggestionID: suggestionID, TriggerType: triggerType},
		},
		Timestamp: at,
		SessionID: sessionID,
	}
}

// NewSessionEvent builds a session.started or session.ended event.
func NewSessionEvent(t EventType, sessionID string, at time.Time) TrackableEvent {
	return TrackableEvent{
		Type:      t,
		Payload:   EventPayload{SchemaVersion: EventSchemaVersion},
		Timestamp: at,
		SessionID: sessionID,
	}
}

// NewFeatureEvent builds a feature.used event.
func NewFeatureEvent(feature, sessionID string, at time.Time) TrackableEvent {
	return TrackableEvent{
		Type: EventFeatureUsed,
		Payload: EventPayload{
			SchemaVersion: EventSchemaVersion,
			Feature:       &FeaturePayload{Name: feature},
		},
		Timestamp: at,
		SessionID: sessionID,
	}
}

// NewNavigationEvent builds a navigation event.
func NewNavigationEvent(from, to, sessionID string, at time.Time) TrackableEvent {
	return TrackableEvent{
		Type: EventNavigation,
		Payload: EventPayload{
			SchemaVersion: EventSchemaVersion,
			Navigation:    &NavigationPayload{From: from, To: to},
		},
		Timestamp: at,
		SessionID: sessionID,
	}
}

// NewShortcutEvent builds a shortcut.used event.
func NewShortcutEvent(keys, feature, sessionID string, at time.Time) TrackableEvent {
	return TrackableEvent{
		Type: EventShortcutUsed,
		Payload: EventPayload{
			SchemaVersion: EventSchemaVersion,
			Shortcut:      &ShortcutPayload{Keys: keys, Feature: feature},
		},
		Timestamp: at,
		SessionID: sessionID,
	}
}

// EventFilter selects events from the log. Zero fields match everything.
type EventFilter struct {
	Since     *time.Time
	Until     *time.Time
	Types     []EventType
	SessionID string
	// Limit keeps only the most recent matches when positive.
	Limit int
}

// Matches reports whether e satisfies every criterion except Limit.
func (f EventFilter) Matches(e TrackableEvent) bool {
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if len(f.Types) > 0 {
		for _, t := range f.Types {
			if t == e.Type {
				return true
			}
		}
		return false
	}
	return true
}

// RetentionPolicy bounds the event log. Zero fields disable the bound.
type RetentionPolicy struct {
	MaxAge    time.Duration
	MaxEvents int
}
