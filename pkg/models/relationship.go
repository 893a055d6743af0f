package models

import "encoding/json"

// EdgeType names the kind of association between two entities.
type EdgeType string

const (
	EdgeBelongsTo  EdgeType = "belongs-to"
	EdgeBlocks     EdgeType = "blocks"
	EdgeReferences EdgeType = "references"
)

// RelationshipEdge is a directed association between two entities.
type RelationshipEdge struct {
	Type     EdgeType   `json:"type"`
	FromKind EntityKind `json:"from_kind"`
	FromID   string     `json:"from_id"`
	ToKind   EntityKind `json:"to_kind"`
	ToID     string     `json:"to_id"`
	Label    string     `json:"label"`
}

// From returns the source key.
func (e RelationshipEdge) From() EntityKey { return EntityKey{Kind: e.FromKind, ID: e.FromID} }

// To returns the target key.
func (e RelationshipEdge) To() EntityKey { return EntityKey{Kind: e.ToKind, ID: e.ToID} }

// Less orders edges by type, source, then target.
func (e RelationshipEdge) Less(o RelationshipEdge) bool {
	if e.Type != o.Type {
		return e.Type < o.Type
	}
	if e.From() != o.From() {
		return e.From().Less(o.From())
	}
	return e.To().Less(o.To())
}

// RelationshipMap holds the edges of one snapshot together with adjacency
// indices keyed in both directions.
type RelationshipMap struct {
	Edges []RelationshipEdge

	from map[EntityKey][]int
	to   map[EntityKey][]int
}

// NewRelationshipMap indexes edges as given. Callers are responsible for
// ordering and deduplication.
func NewRelationshipMap(edges []RelationshipEdge) RelationshipMap {
	m := RelationshipMap{Edges: edges}
	m.reindex()
	return m
}

func (m *RelationshipMap) reindex() {
	m.from = make(map[EntityKey][]int)
	m.to = make(map[EntityKey][]int)
	for i, e := range m.Edges {
		m.from[e.From()] = append(m.from[e.From()], i)
		m.to[e.To()] = append(m.to[e.To()], i)
	}
}

func (m RelationshipMap) collect(idx []int) []RelationshipEdge {
	if len(idx) == 0 {
		return nil
	}
	out := make([]RelationshipEdge, len(idx))
	for i, j := range idx {
		out[i] = m.Edges[j]
	}
	return out
}

// EdgesFrom returns edges whose source is key.
func (m RelationshipMap) EdgesFrom(key EntityKey) []RelationshipEdge {
	return m.collect(m.from[key])
}

// EdgesTo returns edges whose target is key.
func (m RelationshipMap) EdgesTo(key EntityKey) []RelationshipEdge {
	return m.collect(m.to[key])
}

// EdgesOf returns every edge touching key, outgoing first.
func (m RelationshipMap) EdgesOf(key EntityKey) []RelationshipEdge {
	out := m.EdgesFrom(key)
	return append(out, m.EdgesTo(key)...)
}

// Len returns the number of edges.
func (m RelationshipMap) Len() int { return len(m.Edges) }

type relationshipMapJSON struct {
	Edges []RelationshipEdge `json:"edges"`
}

// MarshalJSON emits only the edges; indices are rebuilt on decode.
func (m RelationshipMap) MarshalJSON() ([]byte, error) {
	edges := m.Edges
	if edges == nil {
		edges = []RelationshipEdge{}
	}
	return json.Marshal(relationshipMapJSON{Edges: edges})
}

// UnmarshalJSON decodes edges and rebuilds the adjacency indices.
func (m *RelationshipMap) UnmarshalJSON(data []byte) error {
	var raw relationshipMapJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Edges = raw.Edges
	m.reindex()
	return nil
}
