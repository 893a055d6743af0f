package core

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// Built-in trigger types.
const (
	TriggerTagSuggestion   = "tag-suggestion"
	TriggerBlockerFollowup = "blocker-followup"
	TriggerProjectCheckin  = "project-checkin"
)

// untaggedNoteAge is how long a note may stay untagged before a tag
// suggestion is proposed.
const untaggedNoteAge = 7 * day

// CandidateInput is what generators see: the workspace and the derived
// structures computed before scoring.
type CandidateInput struct {
	Workspace     *models.Workspace
	Staleness     models.StalenessOverview
	Relationships models.RelationshipMap
	Now           time.Time
}

// CandidateGenerator proposes suggestions for scoring.
type CandidateGenerator interface {
	Generate(in CandidateInput) []models.SuggestionCandidate
}

// CandidateFunc adapts a function to CandidateGenerator.
type CandidateFunc func(in CandidateInput) []models.SuggestionCandidate

// Generate calls f.
func (f CandidateFunc) Generate(in CandidateInput) []models.SuggestionCandidate {
	return f(in)
}

// DefaultCandidateGenerators returns the built-in generators.
func DefaultCandidateGenerators() []CandidateGenerator {
	return []CandidateGenerator{
		CandidateFunc(untaggedNoteCandidates),
		CandidateFunc(blockerFollowupCandidates),
		CandidateFunc(projectCheckinCandidates),
	}
}

func untaggedNoteCandidates(in CandidateInput) []models.SuggestionCandidate {
	var out []models.SuggestionCandidate
	for _, n := range in.Workspace.Notes {
		if len(n.Tags) > 0 || n.CreatedAt.IsZero() {
			continue
		}
		due := n.CreatedAt.Add(untaggedNoteAge)
		if in.Now.Before(due) {
			continue
		}
		out = append(out, models.SuggestionCandidate{
			TriggerType:    TriggerTagSuggestion,
			Title:          fmt.Sprintf("Tag %q", n.Title),
			ProposedAction: "Add tags so the note shows up in project views and search",
			Entity:         n.Ref().Key(),
			TriggeredAt:    due,
			Relevance:      0.4,
		})
	}
	return out
}

// triggeredAt is the moment an entity aging from since reached its current
// age in days.
func triggeredAt(since time.Time, st models.StalenessResult) time.Time {
	return since.Add(time.Duration(st.AgeInDays) * day)
}

func blockerFollowupCandidates(in CandidateInput) []models.SuggestionCandidate {
	var out []models.SuggestionCandidate
	for _, b := range in.Workspace.Blockers {
		if b.Resolved {
			continue
		}
		ref := b.Ref()
		entry, ok := in.Staleness.Lookup(ref.Key())
		if !ok || !entry.Result.StaleLevel.AtLeast(models.LevelAging) {
			continue
		}
		blocked := len(in.Relationships.EdgesFrom(ref.Key()))
		out = append(out, models.SuggestionCandidate{
			TriggerType:    TriggerBlockerFollowup,
			Title:          fmt.Sprintf("Follow up on blocker %q", b.Title),
			ProposedAction: fmt.Sprintf("Check whether the blocker can be resolved (open for %d days, %d linked item(s))", entry.Result.AgeInDays, blocked),
			Entity:         ref.Key(),
			TriggeredAt:    triggeredAt(b.CreatedAt, entry.Result),
			Relevance:      0.6,
		})
	}
	return out
}

func projectCheckinCandidates(in CandidateInput) []models.SuggestionCandidate {
	var out []models.SuggestionCandidate
	for _, p := range in.Workspace.Projects {
		ref := p.Ref()
		entry, ok := in.Staleness.Lookup(ref.Key())
		if !ok || !entry.Result.StaleLevel.AtLeast(models.LevelStale) {
			continue
		}
		out = append(out, models.SuggestionCandidate{
			TriggerType:    TriggerProjectCheckin,
			Title:          fmt.Sprintf("Check in on %q", p.Title),
			ProposedAction: fmt.Sprintf("Review open work; last activity %d days ago", entry.Result.AgeInDays),
			Entity:         ref.Key(),
			TriggeredAt:    triggeredAt(ref.LastActivity(), entry.Result),
			Relevance:      0.5,
		})
	}
	return out
}
