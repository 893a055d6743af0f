package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// QuietSignalDetector computes interruptibility signals. It does not decide
// suggestion eligibility; the ConfidenceScorer composes the signals.
type QuietSignalDetector interface {
	Detect(events []models.TrackableEvent, now time.Time, quietHours *models.QuietHours) (models.QuietSignals, error)
}

// DefaultQuietConfig returns the standard detector settings.
func DefaultQuietConfig() models.QuietConfig {
	return models.QuietConfig{
		FlowMinutes:        25,
		BurstWindowMinutes: 5,
		BurstThreshold:     3,
	}
}

type quietSignalDetector struct {
	flowThreshold  time.Duration
	burstWindow    time.Duration
	burstThreshold int
	loc            *time.Location
}

// NewQuietSignalDetector creates a QuietSignalDetector. loc is the default
// zone for quiet hours without an explicit timezone (UTC when nil).
func NewQuietSignalDetector(cfg models.QuietConfig, loc *time.Location) QuietSignalDetector {
	def := DefaultQuietConfig()
	if cfg.FlowMinutes <= 0 {
		cfg.FlowMinutes = def.FlowMinutes
	}
	if cfg.BurstWindowMinutes <= 0 {
		cfg.BurstWindowMinutes = def.BurstWindowMinutes
	}
	if cfg.BurstThreshold <= 0 {
		cfg.BurstThreshold = def.BurstThreshold
	}
	if loc == nil {
		loc = time.UTC
	}
	return &quietSignalDetector{
		flowThreshold:  time.Duration(cfg.FlowMinutes) * time.Minute,
		burstWindow:    time.Duration(cfg.BurstWindowMinutes) * time.Minute,
		burstThreshold: cfg.BurstThreshold,
		loc:            loc,
	}
}

// Detect derives the four signals. Events after now are ignored so a
// snapshot taken "in the past" is reproducible.
func (d *quietSignalDetector) Detect(events []models.TrackableEvent, now time.Time, quietHours *models.QuietHours) (models.QuietSignals, error) {
	var signals models.QuietSignals

	within, err := d.withinQuietHours(now, quietHours)
	if err != nil {
		return models.QuietSignals{}, err
	}
	signals.WithinQuietHours = within

	ordered := make([]models.TrackableEvent, 0, len(events))
	for _, e := range events {
		if !e.Timestamp.After(now) {
			ordered = append(ordered, e)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	// Walk backwards to the latest session start with no later end.
	openIdx := -1
	for i := len(ordered) - 1; i >= 0; i-- {
		t := ordered[i].Type
		if t == models.EventSessionEnded {
			break
		}
		if t == models.EventSessionStarted {
			openIdx = i
			break
		}
	}

	if openIdx >= 0 {
		start := ordered[openIdx]
		elapsed := now.Sub(start.Timestamp)
		signals.SessionID = start.SessionID
		signals.SessionDurationMin = int(elapsed / time.Minute)

		interrupted := false
		for _, e := range ordered[openIdx+1:] {
			if e.Type.IsSuggestion() {
				interrupted = true
				break
			}
		}
		signals.InFlowState = elapsed > d.flowThreshold && !interrupted
	}

	burstStart := now.Add(-d.burstWindow)
	for _, e := range ordered {
		if e.Timestamp.After(burstStart) {
			signals.RecentEventCount++
		}
	}
	signals.RecentBurstActivity = signals.RecentEventCount > d.burstThreshold

	return signals, nil
}

// withinQuietHours handles windows that wrap midnight, e.g. 22:00-06:00.
// An empty window (start == end) is never quiet.
func (d *quietSignalDetector) withinQuietHours(now time.Time, qh *models.QuietHours) (bool, error) {
	if qh == nil || (qh.Start == "" && qh.End == "" && !qh.WeekendsQuiet) {
		return false, nil
	}
	loc, err := qh.Location(d.loc)
	if err != nil {
		return false, err
	}
	local := now.In(loc)

	if qh.WeekendsQuiet {
		if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return true, nil
		}
	}
	if qh.Start == "" && qh.End == "" {
		return false, nil
	}

	start, err := models.ParseClockTime(qh.Start)
	if err != nil {
		return false, fmt.Errorf("parsing quiet hours start: %w", err)
	}
	end, err := models.ParseClockTime(qh.End)
	if err != nil {
		return false, fmt.Errorf("parsing quiet hours end: %w", err)
	}

	t := local.Hour()*60 + local.Minute()
	s, e := start.Minutes(), end.Minutes()
	switch {
	case s == e:
		return false, nil
	case s < e:
		return t >= s && t < e, nil
	default:
		return t >= s || t < e, nil
	}
}
