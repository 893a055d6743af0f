package models

import "time"

// AXStateGraph is the immutable bundle handed to the presentation layer.
type AXStateGraph struct {
	GeneratedAt   time.Time         `json:"generated_at"`
	Staleness     StalenessOverview `json:"staleness"`
	Relationships RelationshipMap   `json:"relationships"`
	Patterns      UserPatterns      `json:"patterns"`
	Quiet         QuietSignals      `json:"quiet"`
	Suggestions   []Suggestion      `json:"suggestions"`
	Scratchpad    []ScratchpadEntry `json:"scratchpad,omitempty"`
}

// Surfaced returns the suggestions that passed gating, in rank order.
func (g *AXStateGraph) Surfaced() []Suggestion {
	var out []Suggestion
	for _, s := range g.Suggestions {
		if s.ShouldSurface {
			out = append(out, s)
		}
	}
	return out
}

// FindSuggestion returns the suggestion with id.
func (g *AXStateGraph) FindSuggestion(id string) (Suggestion, bool) {
	for _, s := range g.Suggestions {
		if s.ID == id {
			return s, true
		}
	}
	return Suggestion{}, false
}
