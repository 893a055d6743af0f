package observability

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// Metrics holds activity figures derived from the event log.
type Metrics struct {
	EventCount           int            `json:"event_count"`
	EventsByType         map[string]int `json:"events_by_type"`
	Sessions             int            `json:"sessions"`
	SuggestionsShown     int            `json:"suggestions_shown"`
	SuggestionsApproved  int            `json:"suggestions_approved"`
	SuggestionsDismissed int            `json:"suggestions_dismissed"`
	OldestEvent          *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent          *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event at or after since.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Query(models.EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{EventsByType: make(map[string]int)}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Timestamp
			m.OldestEvent = &t
		}
		t := event.Timestamp
		m.NewestEvent = &t

		m.EventsByType[string(event.Type)]++
		switch event.Type {
		case models.EventSessionStarted:
			m.Sessions++
		case models.EventSuggestionShown:
			m.SuggestionsShown++
		case models.EventSuggestionApproved:
			m.SuggestionsApproved++
		case models.EventSuggestionDismissed:
			m.SuggestionsDismissed++
		}
	}

	return m, nil
}
