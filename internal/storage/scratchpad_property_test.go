package storage

import (
	"os"
	"testing"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

func genScope(t *rapid.T) models.ScratchpadScope {
	if rapid.Bool().Draw(t, "global") {
		return models.GlobalScope()
	}
	return models.ProjectScope(rapid.SampledFrom([]string{"p1", "p2", "p3"}).Draw(t, "project"))
}

func genKind(t *rapid.T) models.ScratchpadKind {
	return rapid.SampledFrom([]models.ScratchpadKind{
		models.KindObservation, models.KindPendingAction, models.KindLearnedPreference,
	}).Draw(t, "kind")
}

// TestProperty_ScratchpadAppendOnly verifies that after any sequence of
// writes and consumes every written entry is still readable with its
// original content, and exactly the consumed ones carry consumed_at.
func TestProperty_ScratchpadAppendOnly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dir, err := os.MkdirTemp("", "ax-scratchpad-*")
		if err != nil {
			t.Fatalf("creating temp dir: %v", err)
		}
		defer os.RemoveAll(dir)

		store := NewYAMLScratchpadStore(dir)
		written := make(map[string]string)
		consumed := make(map[string]bool)
		var ids []string

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(ids) > 0 && rapid.Bool().Draw(t, "consume") {
				id := rapid.SampledFrom(ids).Draw(t, "consumeID")
				if _, err := store.Consume(id); err != nil {
					t.Fatalf("consuming %s: %v", id, err)
				}
				consumed[id] = true
				continue
			}
			content := rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "content")
			e, err := store.Write(genScope(t), genKind(t), content)
			if err != nil {
				t.Fatalf("writing: %v", err)
			}
			written[e.ID] = content
			ids = append(ids, e.ID)
		}

		all, err := store.Read(models.ScratchpadQuery{IncludeConsumed: true})
		if err != nil {
			t.Fatalf("reading: %v", err)
		}
		if len(all) != len(written) {
			t.Fatalf("expected %d entries, got %d", len(written), len(all))
		}
		for _, e := range all {
			if written[e.ID] != e.Content {
				t.Errorf("entry %s content changed: %q -> %q", e.ID, written[e.ID], e.Content)
			}
			if e.Consumed() != consumed[e.ID] {
				t.Errorf("entry %s consumed=%v, want %v", e.ID, e.Consumed(), consumed[e.ID])
			}
		}

		open, err := store.Read(models.ScratchpadQuery{})
		if err != nil {
			t.Fatalf("reading: %v", err)
		}
		if len(open) != len(written)-len(consumed) {
			t.Errorf("expected %d unconsumed entries, got %d", len(written)-len(consumed), len(open))
		}
	})
}
