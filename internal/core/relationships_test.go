package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

func key(kind models.EntityKind, id string) models.EntityKey {
	return models.EntityKey{Kind: kind, ID: id}
}

func graphWorkspace() *models.Workspace {
	created := daysAgo(1)
	return &models.Workspace{
		SchemaVersion: models.WorkspaceSchemaVersion,
		Projects:      []models.Project{{ID: "p1", Title: "Launch", CreatedAt: created}},
		Notes: []models.Note{
			{ID: "n1", Title: "Kickoff", ProjectID: "p1", CreatedAt: created, References: []models.EntityKey{
				key(models.KindTask, "t1"),
				key(models.KindTask, "t1"),      // duplicate
				key(models.KindNote, "n1"),      // self
				key(models.KindCall, "missing"), // dangling
			}},
		},
		Tasks: []models.Task{
			{ID: "t1", Title: "Write brief", ProjectID: "p1", CreatedAt: created},
			{ID: "t2", Title: "Orphan", ProjectID: "gone", CreatedAt: created},
		},
		Blockers: []models.Blocker{
			{ID: "b1", Title: "Legal review", ProjectID: "p1", BlockedTaskIDs: []string{"t1", "t9"}, CreatedAt: created},
		},
		Calls: []models.Call{
			{ID: "c1", Title: "Standup", CreatedAt: created, References: []models.EntityKey{key(models.KindProject, "p1")}},
		},
	}
}

func TestRelationshipGraphBuilder_Build(t *testing.T) {
	m := NewRelationshipGraphBuilder().Build(graphWorkspace())

	want := []models.RelationshipEdge{
		{Type: models.EdgeBelongsTo, FromKind: models.KindBlocker, FromID: "b1", ToKind: models.KindProject, ToID: "p1", Label: "belongs to Launch"},
		{Type: models.EdgeBelongsTo, FromKind: models.KindNote, FromID: "n1", ToKind: models.KindProject, ToID: "p1", Label: "belongs to Launch"},
		{Type: models.EdgeBelongsTo, FromKind: models.KindTask, FromID: "t1", ToKind: models.KindProject, ToID: "p1", Label: "belongs to Launch"},
		{Type: models.EdgeBlocks, FromKind: models.KindBlocker, FromID: "b1", ToKind: models.KindTask, ToID: "t1", Label: "blocks Write brief"},
		{Type: models.EdgeReferences, FromKind: models.KindCall, FromID: "c1", ToKind: models.KindProject, ToID: "p1", Label: "references Launch"},
		{Type: models.EdgeReferences, FromKind: models.KindNote, FromID: "n1", ToKind: models.KindTask, ToID: "t1", Label: "references Write brief"},
	}
	if diff := cmp.Diff(want, m.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestRelationshipMap_BidirectionalLookup(t *testing.T) {
	m := NewRelationshipGraphBuilder().Build(graphWorkspace())

	if got := len(m.EdgesTo(key(models.KindProject, "p1"))); got != 4 {
		t.Errorf("expected 4 edges into p1, got %d", got)
	}
	if got := len(m.EdgesFrom(key(models.KindProject, "p1"))); got != 0 {
		t.Errorf("expected no edges out of p1, got %d", got)
	}

	t1 := m.EdgesOf(key(models.KindTask, "t1"))
	if len(t1) != 3 {
		t.Fatalf("expected 3 edges touching t1, got %d", len(t1))
	}
	if t1[0].From() != key(models.KindTask, "t1") {
		t.Errorf("expected outgoing edge first, got %+v", t1[0])
	}

	// Every edge is reachable from both endpoints.
	for _, e := range m.Edges {
		if !containsEdge(m.EdgesFrom(e.From()), e) || !containsEdge(m.EdgesTo(e.To()), e) {
			t.Errorf("edge %+v not indexed in both directions", e)
		}
	}
}

func containsEdge(edges []models.RelationshipEdge, e models.RelationshipEdge) bool {
	for _, x := range edges {
		if x == e {
			return true
		}
	}
	return false
}

func TestRelationshipGraphBuilder_EmptyWorkspace(t *testing.T) {
	m := NewRelationshipGraphBuilder().Build(nil)
	if m.Len() != 0 {
		t.Errorf("expected empty map, got %d edges", m.Len())
	}
	if m.EdgesOf(key(models.KindNote, "x")) != nil {
		t.Error("expected nil edges for unknown key")
	}
}
