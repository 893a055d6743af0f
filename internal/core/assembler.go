package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// AssembleInput is everything one snapshot is computed from. All data is
// pre-fetched by the caller.
type AssembleInput struct {
	Workspace  *models.Workspace
	Events     []models.TrackableEvent
	QuietHours *models.QuietHours
	Now        time.Time
}

// SnapshotAssembler composes the scoring components into one AXStateGraph.
// There is no incremental path: every call recomputes from its input.
type SnapshotAssembler interface {
	Assemble(in AssembleInput) (*models.AXStateGraph, error)
}

type snapshotAssembler struct {
	staleness  StalenessScorer
	graph      RelationshipGraphBuilder
	patterns   PatternAnalyzer
	quiet      QuietSignalDetector
	confidence ConfidenceScorer
	generators []CandidateGenerator
}

// NewSnapshotAssembler wires the scoring components from cfg. loc is the
// user's local zone for hour bucketing and quiet hours. A nil generators
// slice selects DefaultCandidateGenerators.
func NewSnapshotAssembler(cfg *models.GlobalConfig, loc *time.Location, generators []CandidateGenerator) SnapshotAssembler {
	if cfg == nil {
		cfg = DefaultGlobalConfig()
	}
	if generators == nil {
		generators = DefaultCandidateGenerators()
	}
	return &snapshotAssembler{
		staleness:  NewStalenessScorer(cfg.Staleness),
		graph:      NewRelationshipGraphBuilder(),
		patterns:   NewPatternAnalyzer(cfg.Patterns, loc),
		quiet:      NewQuietSignalDetector(cfg.Quiet, loc),
		confidence: NewConfidenceScorer(cfg.Confidence),
		generators: generators,
	}
}

// Assemble scores every open entity, builds the graph, analyzes the event
// log, and scores each generated candidate.
func (a *snapshotAssembler) Assemble(in AssembleInput) (*models.AXStateGraph, error) {
	ws := in.Workspace
	if ws == nil {
		ws = &models.Workspace{SchemaVersion: models.WorkspaceSchemaVersion}
	}

	overview, err := a.scoreWorkspace(ws, in.Now)
	if err != nil {
		return nil, err
	}
	relationships := a.graph.Build(ws)
	patterns := a.patterns.Analyze(in.Events, in.Now)
	quiet, err := a.quiet.Detect(in.Events, in.Now, in.QuietHours)
	if err != nil {
		return nil, fmt.Errorf("detecting quiet signals: %w", err)
	}

	candidateInput := CandidateInput{
		Workspace:     ws,
		Staleness:     overview,
		Relationships: relationships,
		Now:           in.Now,
	}
	seen := make(map[string]bool)
	suggestions := []models.Suggestion{}
	for _, gen := range a.generators {
		for _, c := range gen.Generate(candidateInput) {
			id := models.SuggestionID(c.TriggerType, c.Entity)
			if seen[id] {
				continue
			}
			seen[id] = true

			var st *models.StalenessResult
			if entry, ok := overview.Lookup(c.Entity); ok {
				result := entry.Result
				st = &result
			}
			suggestions = append(suggestions,
				a.confidence.Evaluate(c, patterns, quiet, st, relationships.EdgesOf(c.Entity)))
		}
	}
	a.confidence.Rank(suggestions)

	return &models.AXStateGraph{
		GeneratedAt:   in.Now,
		Staleness:     overview,
		Relationships: relationships,
		Patterns:      patterns,
		Quiet:         quiet,
		Suggestions:   suggestions,
	}, nil
}

// scoreWorkspace runs the staleness scorer over every entity that can still
// need attention. Done tasks and resolved blockers are skipped.
func (a *snapshotAssembler) scoreWorkspace(ws *models.Workspace, now time.Time) (models.StalenessOverview, error) {
	blockedProjects := make(map[string]bool)
	blockedTasks := make(map[string]bool)
	for _, b := range ws.Blockers {
		if b.Resolved {
			continue
		}
		if b.ProjectID != "" {
			blockedProjects[b.ProjectID] = true
		}
		for _, id := range b.BlockedTaskIDs {
			blockedTasks[id] = true
		}
	}

	overview := models.StalenessOverview{
		Entries: []models.EntityStaleness{},
		Counts:  make(map[models.StaleLevel]int, len(models.StaleLevels)),
	}
	for _, l := range models.StaleLevels {
		overview.Counts[l] = 0
	}

	score := func(ref models.EntityRef, last time.Time, ctx StalenessContext) error {
		ctx.Kind = ref.Kind
		result, err := a.staleness.Score(last, now, ctx)
		if err != nil {
			return fmt.Errorf("scoring %s: %w", ref.Key(), err)
		}
		overview.Entries = append(overview.Entries, models.EntityStaleness{
			Entity: ref.Key(),
			Title:  ref.Title,
			Result: result,
		})
		overview.Counts[result.StaleLevel]++
		return nil
	}

	for _, p := range ws.Projects {
		ref := p.Ref()
		if err := score(ref, ref.LastActivity(), StalenessContext{HasBlockers: blockedProjects[p.ID]}); err != nil {
			return overview, err
		}
	}
	for _, n := range ws.Notes {
		ref := n.Ref()
		if err := score(ref, ref.LastActivity(), StalenessContext{HasUntaggedContent: len(n.Tags) == 0}); err != nil {
			return overview, err
		}
	}
	for _, t := range ws.Tasks {
		if t.Status == models.TaskDone {
			continue
		}
		ref := t.Ref()
		if err := score(ref, ref.LastActivity(), StalenessContext{HasBlockers: blockedTasks[t.ID]}); err != nil {
			return overview, err
		}
	}
	for _, b := range ws.Blockers {
		if b.Resolved {
			continue
		}
		// A blocker ages from when it was raised, not from its last edit.
		if err := score(b.Ref(), b.CreatedAt, StalenessContext{}); err != nil {
			return overview, err
		}
	}
	for _, c := range ws.Calls {
		ref := c.Ref()
		if err := score(ref, ref.LastActivity(), StalenessContext{}); err != nil {
			return overview, err
		}
	}

	sort.SliceStable(overview.Entries, func(i, j int) bool {
		a, b := overview.Entries[i], overview.Entries[j]
		if ra, rb := a.Result.StaleLevel.Rank(), b.Result.StaleLevel.Rank(); ra != rb {
			return ra > rb
		}
		if a.Result.AgeInDays != b.Result.AgeInDays {
			return a.Result.AgeInDays > b.Result.AgeInDays
		}
		return a.Entity.Less(b.Entity)
	})
	return overview, nil
}
