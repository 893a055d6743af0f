package core

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

const day = 24 * time.Hour

// StalenessContext carries the flags that can escalate a level beyond what
// the entity's age alone implies.
type StalenessContext struct {
	Kind               models.EntityKind
	HasBlockers        bool
	HasUntaggedContent bool
}

// StalenessScorer converts last activity into a staleness level and reason.
type StalenessScorer interface {
	Score(lastActivity, now time.Time, ctx StalenessContext) (models.StalenessResult, error)
}

// DefaultStalenessConfig returns the standard day thresholds.
func DefaultStalenessConfig() models.StalenessConfig {
	return models.StalenessConfig{
		AgingDays:           2,
		StaleDays:           5,
		CriticalDays:        14,
		BlockerAgingDays:    2,
		BlockerStaleDays:    5,
		BlockerCriticalDays: 14,
	}
}

type levelThresholds struct {
	aging, stale, critical int
}

func (t levelThresholds) level(age int) models.StaleLevel {
	switch {
	case age >= t.critical:
		return models.LevelCritical
	case age >= t.stale:
		return models.LevelStale
	case age >= t.aging:
		return models.LevelAging
	default:
		return models.LevelFresh
	}
}

type stalenessScorer struct {
	generic levelThresholds
	blocker levelThresholds
}

// NewStalenessScorer creates a StalenessScorer. Zero thresholds fall back
// to DefaultStalenessConfig.
func NewStalenessScorer(cfg models.StalenessConfig) StalenessScorer {
	def := DefaultStalenessConfig()
	pick := func(v, fallback int) int {
		if v > 0 {
			return v
		}
		return fallback
	}
	return &stalenessScorer{
		generic: levelThresholds{
			aging:    pick(cfg.AgingDays, def.AgingDays),
			stale:    pick(cfg.StaleDays, def.StaleDays),
			critical: pick(cfg.CriticalDays, def.CriticalDays),
		},
		blocker: levelThresholds{
			aging:    pick(cfg.BlockerAgingDays, def.BlockerAgingDays),
			stale:    pick(cfg.BlockerStaleDays, def.BlockerStaleDays),
			critical: pick(cfg.BlockerCriticalDays, def.BlockerCriticalDays),
		},
	}
}

// Score computes age in whole days and grades it. Flags only ever raise
// the level. A zero or future lastActivity is rejected.
func (s *stalenessScorer) Score(lastActivity, now time.Time, ctx StalenessContext) (models.StalenessResult, error) {
	if lastActivity.IsZero() {
		return models.StalenessResult{}, fmt.Errorf("%w: last activity is unset", models.ErrInvalidTimestamp)
	}
	elapsed := now.Sub(lastActivity)
	if elapsed < 0 {
		return models.StalenessResult{}, fmt.Errorf("%w: last activity %s is after %s",
			models.ErrInvalidTimestamp, lastActivity.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	age := int(elapsed / day)
	thresholds := s.generic
	if ctx.Kind == models.KindBlocker {
		thresholds = s.blocker
	}

	level := thresholds.level(age)
	if ctx.HasBlockers {
		level = models.MaxLevel(level, models.LevelStale)
	}
	if ctx.HasUntaggedContent {
		level = models.MaxLevel(level, models.LevelAging)
	}

	result := models.StalenessResult{AgeInDays: age, StaleLevel: level}
	if level == models.LevelCritical {
		var reason string
		if ctx.Kind == models.KindBlocker {
			reason = fmt.Sprintf("Active blocker for %d days", age)
		} else {
			reason = fmt.Sprintf("Not updated in %d+ days", thresholds.critical)
		}
		result.AttentionReason = &reason
	}
	return result, nil
}
