package core

import (
	"time"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// PatternAnalyzer mines the event log for behavioral statistics.
type PatternAnalyzer interface {
	Analyze(events []models.TrackableEvent, now time.Time) models.UserPatterns
}

// DefaultPatternConfig returns the standard analyzer settings.
func DefaultPatternConfig() models.PatternConfig {
	return models.PatternConfig{
		IgnoreMultiple:   3,
		MinSamples:       5,
		ActiveWindowDays: 30,
	}
}

type patternAnalyzer struct {
	ignoreMultiple float64
	minSamples     int
	activeWindow   time.Duration
	loc            *time.Location
}

// NewPatternAnalyzer creates a PatternAnalyzer. Hours are bucketed in loc
// (UTC when nil). Zero config values fall back to DefaultPatternConfig.
func NewPatternAnalyzer(cfg models.PatternConfig, loc *time.Location) PatternAnalyzer {
	def := DefaultPatternConfig()
	if cfg.IgnoreMultiple <= 0 {
		cfg.IgnoreMultiple = def.IgnoreMultiple
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.ActiveWindowDays <= 0 {
		cfg.ActiveWindowDays = def.ActiveWindowDays
	}
	if loc == nil {
		loc = time.UTC
	}
	return &patternAnalyzer{
		ignoreMultiple: cfg.IgnoreMultiple,
		minSamples:     cfg.MinSamples,
		activeWindow:   time.Duration(cfg.ActiveWindowDays) * day,
		loc:            loc,
	}
}

// Analyze is a pure projection of events. With no events it returns
// neutral patterns.
func (a *patternAnalyzer) Analyze(events []models.TrackableEvent, now time.Time) models.UserPatterns {
	p := models.NeutralPatterns()
	p.EventsAnalyzed = len(events)
	windowStart := now.Add(-a.activeWindow)

	for _, e := range events {
		switch e.Type {
		case models.EventSuggestionApproved, models.EventSuggestionDismissed:
			trigger := e.TriggerType()
			if trigger == "" {
				continue
			}
			stats := p.SuggestionStats[trigger]
			if e.Type == models.EventSuggestionApproved {
				stats.Approved++
			} else {
				stats.Dismissed++
			}
			p.SuggestionStats[trigger] = stats
		case models.EventFeatureUsed:
			if e.Payload.Feature != nil && e.Payload.Feature.Name != "" {
				p.FeatureUsageCounts[e.Payload.Feature.Name]++
			}
		}

		if e.Timestamp.After(windowStart) && !e.Timestamp.After(now) {
			p.ActiveHourHistogram[e.Timestamp.In(a.loc).Hour()]++
		}
	}

	for trigger, stats := range p.SuggestionStats {
		samples := stats.Samples()
		if samples == 0 {
			continue
		}
		rate := float64(stats.Approved) / float64(samples)
		stats.Rate = &rate
		p.SuggestionStats[trigger] = stats
		p.AcceptanceRateByType[trigger] = rate

		if samples >= a.minSamples && float64(stats.Dismissed) > a.ignoreMultiple*float64(stats.Approved) {
			p.IgnoredTypes[trigger] = true
		}
	}

	return p
}
