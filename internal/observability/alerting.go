package observability

import (
	"fmt"
	"sort"
	"time"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

func (s AlertSeverity) rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	}
	return 0
}

// Alert conditions.
const (
	ConditionEntityCritical        = "entity_critical"
	ConditionCriticalBacklog       = "critical_backlog"
	ConditionSuggestionTypeIgnored = "suggestion_type_ignored"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	MaxCritical int `yaml:"max_critical" json:"max_critical"`
}

// DefaultAlertThresholds returns the default alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{MaxCritical: 5}
}

// AlertEngine evaluates alert conditions against a snapshot.
type AlertEngine interface {
	Evaluate(snapshot *models.AXStateGraph) []Alert
}

type alertEngine struct {
	thresholds AlertThresholds
}

// NewAlertEngine creates an AlertEngine with the given thresholds.
func NewAlertEngine(thresholds AlertThresholds) AlertEngine {
	return &alertEngine{thresholds: thresholds}
}

// Evaluate returns alerts ordered by severity, then id. The snapshot's
// generation time stamps every alert so the result is reproducible.
func (ae *alertEngine) Evaluate(snapshot *models.AXStateGraph) []Alert {
	if snapshot == nil {
		return nil
	}
	now := snapshot.GeneratedAt
	var alerts []Alert

	alerts = append(alerts, ae.checkCriticalEntities(snapshot, now)...)
	alerts = append(alerts, ae.checkCriticalBacklog(snapshot, now)...)
	alerts = append(alerts, ae.checkIgnoredTypes(snapshot, now)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		if ri, rj := alerts[i].Severity.rank(), alerts[j].Severity.rank(); ri != rj {
			return ri > rj
		}
		return alerts[i].ID < alerts[j].ID
	})
	return alerts
}

// checkCriticalEntities raises one alert per critical entity. Blockers
// are high severity.
func (ae *alertEngine) checkCriticalEntities(snapshot *models.AXStateGraph, now time.Time) []Alert {
	var alerts []Alert
	for _, entry := range snapshot.Staleness.Entries {
		if entry.Result.StaleLevel != models.LevelCritical {
			continue
		}
		severity := SeverityMedium
		if entry.Entity.Kind == models.KindBlocker {
			severity = SeverityHigh
		}
		msg := fmt.Sprintf("%s %q is critical", entry.Entity.Kind, entry.Title)
		if reason := entry.Result.Reason(); reason != "" {
			msg = fmt.Sprintf("%s: %s", msg, reason)
		}
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("critical-%s", entry.Entity),
			Condition:   ConditionEntityCritical,
			Severity:    severity,
			Message:     msg,
			TriggeredAt: now,
		})
	}
	return alerts
}

func (ae *alertEngine) checkCriticalBacklog(snapshot *models.AXStateGraph, now time.Time) []Alert {
	count := snapshot.Staleness.Counts[models.LevelCritical]
	if count <= ae.thresholds.MaxCritical {
		return nil
	}
	return []Alert{{
		ID:          "critical-backlog",
		Condition:   ConditionCriticalBacklog,
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("%d entities are critical, exceeding the maximum of %d", count, ae.thresholds.MaxCritical),
		TriggeredAt: now,
	}}
}

func (ae *alertEngine) checkIgnoredTypes(snapshot *models.AXStateGraph, now time.Time) []Alert {
	var alerts []Alert
	for _, trigger := range snapshot.Patterns.IgnoredList() {
		stats := snapshot.Patterns.SuggestionStats[trigger]
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("ignored-%s", trigger),
			Condition:   ConditionSuggestionTypeIgnored,
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("%s suggestions are ignored (%d dismissed, %d approved)", trigger, stats.Dismissed, stats.Approved),
			TriggeredAt: now,
		})
	}
	return alerts
}
