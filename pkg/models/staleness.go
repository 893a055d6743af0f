package models

// StaleLevel grades how overdue an entity is for attention.
type StaleLevel string

const (
	LevelFresh    StaleLevel = "fresh"
	LevelAging    StaleLevel = "aging"
	LevelStale    StaleLevel = "stale"
	LevelCritical StaleLevel = "critical"
)

// Rank orders levels from fresh (0) to critical (3). Unknown levels rank -1.
func (l StaleLevel) Rank() int {
	switch l {
	case LevelFresh:
		return 0
	case LevelAging:
		return 1
	case LevelStale:
		return 2
	case LevelCritical:
		return 3
	}
	return -1
}

// AtLeast reports whether l is as severe as other.
func (l StaleLevel) AtLeast(other StaleLevel) bool {
	return l.Rank() >= other.Rank()
}

// MaxLevel returns the more severe of two levels.
func MaxLevel(a, b StaleLevel) StaleLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// StaleLevels lists every level from least to most severe.
var StaleLevels = []StaleLevel{LevelFresh, LevelAging, LevelStale, LevelCritical}

// StalenessResult is derived per entity and never persisted.
type StalenessResult struct {
	AgeInDays       int        `json:"age_in_days"`
	StaleLevel      StaleLevel `json:"stale_level"`
	AttentionReason *string    `json:"attention_reason"`
}

// Reason returns the attention reason or "".
func (r StalenessResult) Reason() string {
	if r.AttentionReason == nil {
		return ""
	}
	return *r.AttentionReason
}

// EntityStaleness pairs an entity with its staleness result.
type EntityStaleness struct {
	Entity EntityKey       `json:"entity"`
	Title  string          `json:"title"`
	Result StalenessResult `json:"result"`
}

// StalenessOverview aggregates per-entity staleness for a snapshot.
type StalenessOverview struct {
	Entries []EntityStaleness  `json:"entries"`
	Counts  map[StaleLevel]int `json:"counts"`
}

// Lookup returns the staleness entry for key, if scored.
func (o StalenessOverview) Lookup(key EntityKey) (EntityStaleness, bool) {
	for _, e := range o.Entries {
		if e.Entity == key {
			return e, true
		}
	}
	return EntityStaleness{}, false
}

// AtLeast returns entries whose level is at least min, in overview order.
func (o StalenessOverview) AtLeast(min StaleLevel) []EntityStaleness {
	var out []EntityStaleness
	for _, e := range o.Entries {
		if e.Result.StaleLevel.AtLeast(min) {
			out = append(out, e)
		}
	}
	return out
}
