package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

func assemblerWorkspace() *models.Workspace {
	ws := candidateWorkspace()
	ws.Tasks = []models.Task{
		{ID: "t-open", Title: "Draft", ProjectID: "p-blocked", CreatedAt: daysAgo(1)},
		{ID: "t-done", Title: "Shipped", Status: models.TaskDone, CreatedAt: daysAgo(40)},
	}
	ws.Blockers[0].BlockedTaskIDs = []string{"t-open"}
	ws.Calls = []models.Call{
		{ID: "c1", Title: "Review", CreatedAt: daysAgo(2), References: []models.EntityKey{key(models.KindProject, "p-idle")}},
	}
	return ws
}

func TestSnapshotAssembler_Assemble(t *testing.T) {
	a := NewSnapshotAssembler(nil, time.UTC, nil)

	graph, err := a.Assemble(AssembleInput{Workspace: assemblerWorkspace(), Now: refNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !graph.GeneratedAt.Equal(refNow) {
		t.Errorf("expected generated at %v, got %v", refNow, graph.GeneratedAt)
	}
	if _, ok := graph.Staleness.Lookup(key(models.KindTask, "t-done")); ok {
		t.Error("expected done task to be skipped")
	}
	if _, ok := graph.Staleness.Lookup(key(models.KindBlocker, "b-done")); ok {
		t.Error("expected resolved blocker to be skipped")
	}

	total := 0
	for _, l := range models.StaleLevels {
		total += graph.Staleness.Counts[l]
	}
	if total != len(graph.Staleness.Entries) {
		t.Errorf("expected counts to sum to %d, got %d", len(graph.Staleness.Entries), total)
	}

	escalated := []models.EntityKey{key(models.KindProject, "p-blocked"), key(models.KindTask, "t-open")}
	for _, k := range escalated {
		entry, ok := graph.Staleness.Lookup(k)
		if !ok {
			t.Fatalf("expected %s to be scored", k)
		}
		if entry.Result.StaleLevel != models.LevelStale {
			t.Errorf("expected %s escalated to stale, got %s", k, entry.Result.StaleLevel)
		}
	}
	if entry, _ := graph.Staleness.Lookup(key(models.KindNote, "n-new")); entry.Result.StaleLevel != models.LevelAging {
		t.Errorf("expected untagged note to be at least aging, got %s", entry.Result.StaleLevel)
	}

	for i := 1; i < len(graph.Staleness.Entries); i++ {
		prev, cur := graph.Staleness.Entries[i-1], graph.Staleness.Entries[i]
		if prev.Result.StaleLevel.Rank() < cur.Result.StaleLevel.Rank() {
			t.Errorf("entries not ordered by level at %d: %s before %s", i, prev.Entity, cur.Entity)
		}
	}

	if len(graph.Suggestions) != 4 {
		t.Fatalf("expected 4 suggestions, got %d", len(graph.Suggestions))
	}
	for _, s := range graph.Suggestions {
		if s.Confidence < 0 || s.Confidence > 1 {
			t.Errorf("suggestion %s has confidence %v", s.ID, s.Confidence)
		}
	}
	idle, ok := graph.FindSuggestion(models.SuggestionID(TriggerProjectCheckin, key(models.KindProject, "p-idle")))
	if !ok {
		t.Fatal("expected a check-in for p-idle")
	}
	if len(idle.RelatedEntities) != 1 {
		t.Errorf("expected 1 related edge for p-idle, got %d", len(idle.RelatedEntities))
	}
}

func TestSnapshotAssembler_Deterministic(t *testing.T) {
	a := NewSnapshotAssembler(nil, time.UTC, nil)
	in := AssembleInput{
		Workspace: assemblerWorkspace(),
		Events: append(feedbackEvents(TriggerTagSuggestion, 1, 2, daysAgo(2)),
			models.NewFeatureEvent("search", "s1", daysAgo(1))),
		QuietHours: &models.QuietHours{Start: "22:00", End: "06:00"},
		Now:        refNow,
	}

	first, err := a.Assemble(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := a.Assemble(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(first, second, cmpopts.IgnoreUnexported(models.RelationshipMap{})); diff != "" {
		t.Errorf("snapshots differ (-first +second):\n%s", diff)
	}
	b1, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b2, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Error("expected byte-identical JSON for identical input")
	}
}

func TestSnapshotAssembler_QuietHoursHoldEverything(t *testing.T) {
	a := NewSnapshotAssembler(nil, time.UTC, nil)

	graph, err := a.Assemble(AssembleInput{
		Workspace:  assemblerWorkspace(),
		QuietHours: &models.QuietHours{Start: "22:00", End: "06:00"},
		Now:        time.Date(2025, 3, 20, 23, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !graph.Quiet.WithinQuietHours {
		t.Fatal("expected quiet hours")
	}
	if got := graph.Surfaced(); len(got) != 0 {
		t.Errorf("expected nothing surfaced during quiet hours, got %d", len(got))
	}
	if len(graph.Suggestions) == 0 {
		t.Error("expected held suggestions to still be listed")
	}
}

func TestSnapshotAssembler_IgnoredTypeNeverSurfaces(t *testing.T) {
	a := NewSnapshotAssembler(nil, time.UTC, nil)

	graph, err := a.Assemble(AssembleInput{
		Workspace: assemblerWorkspace(),
		Events:    feedbackEvents(TriggerProjectCheckin, 1, 10, daysAgo(5)),
		Now:       refNow,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !graph.Patterns.IsIgnored(TriggerProjectCheckin) {
		t.Fatal("expected project check-ins to be ignored")
	}
	for _, s := range graph.Suggestions {
		if s.TriggerType == TriggerProjectCheckin && (s.ShouldSurface || s.Confidence != 0) {
			t.Errorf("expected ignored suggestion %s to be hidden, got %+v", s.ID, s)
		}
	}
}

func TestSnapshotAssembler_DeduplicatesCandidates(t *testing.T) {
	gen := CandidateFunc(untaggedNoteCandidates)
	a := NewSnapshotAssembler(nil, time.UTC, []CandidateGenerator{gen, gen})

	graph, err := a.Assemble(AssembleInput{Workspace: assemblerWorkspace(), Now: refNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.Suggestions) != 1 {
		t.Errorf("expected 1 suggestion after dedupe, got %d", len(graph.Suggestions))
	}
}

func TestSnapshotAssembler_InvalidTimestamp(t *testing.T) {
	ws := assemblerWorkspace()
	ws.Notes[0].UpdatedAt = refNow.Add(time.Hour)

	_, err := NewSnapshotAssembler(nil, time.UTC, nil).Assemble(AssembleInput{Workspace: ws, Now: refNow})
	if !errors.Is(err, models.ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}
	if !strings.Contains(err.Error(), "note#n-old") {
		t.Errorf("expected error to name the entity, got %q", err)
	}
}

func TestSnapshotAssembler_EmptyWorkspace(t *testing.T) {
	graph, err := NewSnapshotAssembler(nil, time.UTC, nil).Assemble(AssembleInput{Now: refNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if graph.Suggestions == nil || len(graph.Suggestions) != 0 {
		t.Errorf("expected empty non-nil suggestions, got %v", graph.Suggestions)
	}
	if graph.Staleness.Counts[models.LevelCritical] != 0 {
		t.Errorf("expected zero counts, got %v", graph.Staleness.Counts)
	}
}
