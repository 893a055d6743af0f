package core

import (
	"sort"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// levelBase maps a staleness level to its intrinsic relevance.
var levelBase = map[models.StaleLevel]float64{
	models.LevelFresh:    0.1,
	models.LevelAging:    0.3,
	models.LevelStale:    0.6,
	models.LevelCritical: 0.9,
}

// ConfidenceScorer combines staleness, patterns and quiet signals into a
// bounded score and a surfacing decision.
type ConfidenceScorer interface {
	Score(c models.SuggestionCandidate, p models.UserPatterns, q models.QuietSignals, st *models.StalenessResult) float64
	ShouldSurface(s models.Suggestion, q models.QuietSignals) bool
	Evaluate(c models.SuggestionCandidate, p models.UserPatterns, q models.QuietSignals, st *models.StalenessResult, related []models.RelationshipEdge) models.Suggestion
	Rank(suggestions []models.Suggestion)
}

// DefaultConfidenceConfig returns the standard gating settings.
func DefaultConfidenceConfig() models.ConfidenceConfig {
	return models.ConfidenceConfig{SurfaceThreshold: 0.3}
}

type confidenceScorer struct {
	threshold float64
}

// NewConfidenceScorer creates a ConfidenceScorer. A negative threshold
// falls back to the default; zero surfaces any non-zero score.
func NewConfidenceScorer(cfg models.ConfidenceConfig) ConfidenceScorer {
	if cfg.SurfaceThreshold < 0 || cfg.SurfaceThreshold > 1 {
		cfg = DefaultConfidenceConfig()
	}
	return &confidenceScorer{threshold: cfg.SurfaceThreshold}
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Score returns a value in [0,1]. An ignored trigger type always scores 0.
// An undefined acceptance rate leaves the base untouched.
func (s *confidenceScorer) Score(c models.SuggestionCandidate, p models.UserPatterns, _ models.QuietSignals, st *models.StalenessResult) float64 {
	if p.IsIgnored(c.TriggerType) {
		return 0
	}

	base := c.Relevance
	if st != nil {
		base = levelBase[st.StaleLevel]
	}

	multiplier := 1.0
	if rate, err := p.AcceptanceRate(c.TriggerType); err == nil {
		multiplier = 0.5 + rate
	}
	return clamp01(base * multiplier)
}

// ShouldSurface applies the gating rules. Quiet hours are never overridden;
// flow state yields only to critical urgency.
func (s *confidenceScorer) ShouldSurface(sg models.Suggestion, q models.QuietSignals) bool {
	switch {
	case sg.Ignored:
		return false
	case q.WithinQuietHours:
		return false
	case q.RecentBurstActivity:
		return false
	case q.InFlowState && sg.Urgency.Rank() < models.UrgencyCritical.Rank():
		return false
	}
	return sg.Confidence > 0 && sg.Confidence >= s.threshold
}

// Evaluate scores and gates one candidate.
func (s *confidenceScorer) Evaluate(c models.SuggestionCandidate, p models.UserPatterns, q models.QuietSignals, st *models.StalenessResult, related []models.RelationshipEdge) models.Suggestion {
	sg := models.Suggestion{
		ID:              models.SuggestionID(c.TriggerType, c.Entity),
		TriggerType:     c.TriggerType,
		Title:           c.Title,
		ProposedAction:  c.ProposedAction,
		Entity:          c.Entity,
		Confidence:      s.Score(c, p, q, st),
		Urgency:         c.Urgency,
		TriggeredAt:     c.TriggeredAt,
		Ignored:         p.IsIgnored(c.TriggerType),
		RelatedEntities: related,
	}
	if sg.RelatedEntities == nil {
		sg.RelatedEntities = []models.RelationshipEdge{}
	}
	if st != nil {
		sg.StaleLevel = st.StaleLevel
	}
	if sg.Urgency.Rank() < 0 {
		sg.Urgency = models.UrgencyForLevel(sg.StaleLevel)
	}
	sg.ShouldSurface = s.ShouldSurface(sg, q)
	return sg
}

// Rank orders suggestions: surfaced first, then by confidence, staleness
// level, most recent trigger, and finally id.
func (s *confidenceScorer) Rank(suggestions []models.Suggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.ShouldSurface != b.ShouldSurface {
			return a.ShouldSurface
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.StaleLevel.Rank() != b.StaleLevel.Rank() {
			return a.StaleLevel.Rank() > b.StaleLevel.Rank()
		}
		if !a.TriggeredAt.Equal(b.TriggeredAt) {
			return a.TriggeredAt.After(b.TriggeredAt)
		}
		return a.ID < b.ID
	})
}
