package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SuggestionStats counts explicit feedback for one trigger type. Rate is
// nil when there are no samples.
type SuggestionStats struct {
	Approved  int      `json:"approved"`
	Dismissed int      `json:"dismissed"`
	Rate      *float64 `json:"rate"`
}

// Samples is approved + dismissed.
func (s SuggestionStats) Samples() int { return s.Approved + s.Dismissed }

// UserPatterns is a pure projection of the event log.
type UserPatterns struct {
	AcceptanceRateByType map[string]float64         `json:"acceptance_rate_by_type"`
	SuggestionStats      map[string]SuggestionStats `json:"suggestion_stats"`
	IgnoredTypes         map[string]bool            `json:"ignored_types"`
	ActiveHourHistogram  [24]int                    `json:"active_hour_histogram"`
	FeatureUsageCounts   map[string]int             `json:"feature_usage_counts"`
	EventsAnalyzed       int                        `json:"events_analyzed"`
}

// NeutralPatterns returns patterns with no data.
func NeutralPatterns() UserPatterns {
	return UserPatterns{
		AcceptanceRateByType: map[string]float64{},
		SuggestionStats:      map[string]SuggestionStats{},
		IgnoredTypes:         map[string]bool{},
		FeatureUsageCounts:   map[string]int{},
	}
}

// AcceptanceRate returns the approval share for triggerType, or
// ErrInsufficientSampleSize when no feedback was recorded.
func (p UserPatterns) AcceptanceRate(triggerType string) (float64, error) {
	rate, ok := p.AcceptanceRateByType[triggerType]
	if !ok {
		return 0, fmt.Errorf("%w: no feedback for %q", ErrInsufficientSampleSize, triggerType)
	}
	return rate, nil
}

// IsIgnored reports whether the user habitually dismisses triggerType.
func (p UserPatterns) IsIgnored(triggerType string) bool {
	return p.IgnoredTypes[triggerType]
}

// IgnoredList returns the ignored trigger types sorted.
func (p UserPatterns) IgnoredList() []string {
	out := make([]string, 0, len(p.IgnoredTypes))
	for t, ignored := range p.IgnoredTypes {
		if ignored {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// PeakHours returns up to n hours with the most activity, busiest first,
// ties broken by earlier hour. Hours with no activity are omitted.
func (p UserPatterns) PeakHours(n int) []int {
	hours := make([]int, 0, 24)
	for h, c := range p.ActiveHourHistogram {
		if c > 0 {
			hours = append(hours, h)
		}
	}
	sort.SliceStable(hours, func(i, j int) bool {
		return p.ActiveHourHistogram[hours[i]] > p.ActiveHourHistogram[hours[j]]
	})
	if n >= 0 && len(hours) > n {
		hours = hours[:n]
	}
	return hours
}

// ClockTime is a local wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" in 24-hour form.
func ParseClockTime(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ClockTime{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidQuietHours, s)
	}
	h, err := strconv.Atoi(hh)
	if !isDigits(hh, 1, 2) || err != nil || h > 23 {
		return ClockTime{}, fmt.Errorf("%w: hour in %q must be 0-23", ErrInvalidQuietHours, s)
	}
	m, err := strconv.Atoi(mm)
	if !isDigits(mm, 2, 2) || err != nil || m > 59 {
		return ClockTime{}, fmt.Errorf("%w: minute in %q must be 00-59", ErrInvalidQuietHours, s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// isDigits reports whether s is between lo and hi ASCII digits long.
func isDigits(s string, lo, hi int) bool {
	if len(s) < lo || len(s) > hi {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

// QuietHours is the user's declared do-not-disturb window in local time.
type QuietHours struct {
	Start         string `yaml:"start" json:"start" mapstructure:"start"`
	End           string `yaml:"end" json:"end" mapstructure:"end"`
	Timezone      string `yaml:"timezone,omitempty" json:"timezone,omitempty" mapstructure:"timezone"`
	WeekendsQuiet bool   `yaml:"weekends_quiet,omitempty" json:"weekends_quiet,omitempty" mapstructure:"weekends_quiet"`
}

// Location resolves Timezone, falling back to def when unset.
func (q QuietHours) Location(def *time.Location) (*time.Location, error) {
	if q.Timezone == "" {
		return def, nil
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidQuietHours, q.Timezone, err)
	}
	return loc, nil
}

// QuietSignals are real-time interruptibility indicators.
type QuietSignals struct {
	InFlowState         bool   `json:"in_flow_state"`
	SessionDurationMin  int    `json:"session_duration_min"`
	WithinQuietHours    bool   `json:"within_quiet_hours"`
	RecentBurstActivity bool   `json:"recent_burst_activity"`
	SessionID           string `json:"session_id,omitempty"`
	RecentEventCount    int    `json:"recent_event_count"`
}
