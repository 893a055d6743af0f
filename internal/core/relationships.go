package core

import (
	"fmt"
	"sort"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// RelationshipGraphBuilder derives typed edges from foreign-key style
// references between workspace entities.
type RelationshipGraphBuilder interface {
	Build(ws *models.Workspace) models.RelationshipMap
}

type relationshipGraphBuilder struct{}

// NewRelationshipGraphBuilder creates a RelationshipGraphBuilder.
func NewRelationshipGraphBuilder() RelationshipGraphBuilder {
	return relationshipGraphBuilder{}
}

type edgeIdentity struct {
	typ      models.EdgeType
	from, to models.EntityKey
}

// graphBuild accumulates edges for one Build call.
type graphBuild struct {
	titles map[models.EntityKey]string
	seen   map[edgeIdentity]bool
	edges  []models.RelationshipEdge
}

// add emits an edge unless its target is absent or it was already emitted.
func (g *graphBuild) add(typ models.EdgeType, from, to models.EntityKey) {
	title, ok := g.titles[to]
	if !ok {
		// Dangling reference: referential integrity is the provider's job.
		return
	}
	id := edgeIdentity{typ: typ, from: from, to: to}
	if g.seen[id] {
		return
	}
	g.seen[id] = true
	g.edges = append(g.edges, models.RelationshipEdge{
		Type:     typ,
		FromKind: from.Kind,
		FromID:   from.ID,
		ToKind:   to.Kind,
		ToID:     to.ID,
		Label:    edgeLabel(typ, title),
	})
}

func edgeLabel(typ models.EdgeType, targetTitle string) string {
	switch typ {
	case models.EdgeBelongsTo:
		return fmt.Sprintf("belongs to %s", targetTitle)
	case models.EdgeBlocks:
		return fmt.Sprintf("blocks %s", targetTitle)
	default:
		return fmt.Sprintf("references %s", targetTitle)
	}
}

// Build emits belongs-to edges for every non-project entity with a known
// project, blocks edges from blockers to their blocked tasks, and
// references edges from notes and calls. Edges are returned sorted.
func (relationshipGraphBuilder) Build(ws *models.Workspace) models.RelationshipMap {
	if ws == nil {
		return models.NewRelationshipMap(nil)
	}

	g := &graphBuild{
		titles: make(map[models.EntityKey]string),
		seen:   make(map[edgeIdentity]bool),
	}
	refs := ws.Refs()
	for _, r := range refs {
		g.titles[r.Key()] = r.Title
	}

	for _, r := range refs {
		if r.Kind == models.KindProject || r.ProjectID == "" {
			continue
		}
		g.add(models.EdgeBelongsTo, r.Key(), models.EntityKey{Kind: models.KindProject, ID: r.ProjectID})
	}

	for _, b := range ws.Blockers {
		from := b.Ref().Key()
		for _, taskID := range b.BlockedTaskIDs {
			g.add(models.EdgeBlocks, from, models.EntityKey{Kind: models.KindTask, ID: taskID})
		}
	}

	for _, n := range ws.Notes {
		from := n.Ref().Key()
		for _, to := range n.References {
			if to != from {
				g.add(models.EdgeReferences, from, to)
			}
		}
	}
	for _, c := range ws.Calls {
		from := c.Ref().Key()
		for _, to := range c.References {
			if to != from {
				g.add(models.EdgeReferences, from, to)
			}
		}
	}

	sort.Slice(g.edges, func(i, j int) bool { return g.edges[i].Less(g.edges[j]) })
	return models.NewRelationshipMap(g.edges)
}
