package observability

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

var logNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestEventLog(t *testing.T) (EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log, path
}

func mustAppend(t *testing.T, log EventLog, e models.TrackableEvent) models.TrackableEvent {
	t.Helper()
	stored, err := log.Append(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return stored
}

func TestJSONLEventLog_AppendAndQuery(t *testing.T) {
	log, _ := newTestEventLog(t)

	second := mustAppend(t, log, models.NewFeatureEvent("search", "s1", logNow.Add(-time.Hour)))
	first := mustAppend(t, log, models.NewSessionEvent(models.EventSessionStarted, "s1", logNow.Add(-2*time.Hour)))
	mustAppend(t, log, models.NewSuggestionEvent(models.EventSuggestionDismissed, "sg-1", "tag-suggestion", "s2", logNow))

	if first.ID == "" || first.ID == second.ID {
		t.Errorf("expected distinct assigned ids, got %q and %q", first.ID, second.ID)
	}

	all, err := log.Query(models.EventFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].ID != first.ID || all[1].ID != second.ID {
		t.Errorf("expected events in timestamp order, got %s, %s", all[0].Type, all[1].Type)
	}

	since := logNow.Add(-time.Hour)
	tests := []struct {
		name   string
		filter models.EventFilter
		want   int
	}{
		{"since is inclusive", models.EventFilter{Since: &since}, 2},
		{"by type", models.EventFilter{Types: []models.EventType{models.EventSuggestionDismissed}}, 1},
		{"by session", models.EventFilter{SessionID: "s1"}, 2},
		{"limit keeps newest", models.EventFilter{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := log.Query(tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d events, got %d", tt.want, len(got))
			}
		})
	}

	newest, _ := log.Query(models.EventFilter{Limit: 1})
	if newest[0].Type != models.EventSuggestionDismissed {
		t.Errorf("expected newest event, got %s", newest[0].Type)
	}
}

func TestJSONLEventLog_RejectsInvalid(t *testing.T) {
	log, path := newTestEventLog(t)

	_, err := log.Append(models.TrackableEvent{Type: models.EventFeatureUsed, Timestamp: logNow})
	if !errors.Is(err, models.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected nothing written, got %d bytes", info.Size())
	}
}

func TestJSONLEventLog_SkipsMalformedLines(t *testing.T) {
	log, path := newTestEventLog(t)
	mustAppend(t, log, models.NewFeatureEvent("search", "s1", logNow))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.WriteString("{not json\n\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = f.Close()
	mustAppend(t, log, models.NewFeatureEvent("export", "s1", logNow))

	got, err := log.Query(models.EventFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 well-formed events, got %d", len(got))
	}
}

func TestJSONLEventLog_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustAppend(t, log, models.NewFeatureEvent("search", "s1", logNow))
	if err := log.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Query(models.EventFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Payload.Feature.Name != "search" {
		t.Errorf("expected the persisted event, got %+v", got)
	}
}

func TestJSONLEventLog_Prune(t *testing.T) {
	log, _ := newTestEventLog(t)
	for _, age := range []int{200, 100, 10, 5, 1} {
		mustAppend(t, log, models.NewFeatureEvent("search", "s1", logNow.Add(-time.Duration(age)*24*time.Hour)))
	}

	removed, err := log.Prune(models.RetentionPolicy{MaxAge: 180 * 24 * time.Hour}, logNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 event removed by age, got %d", removed)
	}

	removed, err = log.Prune(models.RetentionPolicy{MaxEvents: 2}, logNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 events removed by count, got %d", removed)
	}

	// The log stays writable after the rewrite.
	mustAppend(t, log, models.NewFeatureEvent("export", "s1", logNow))
	got, err := log.Query(models.EventFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(logNow.Add(-5 * 24 * time.Hour)) {
		t.Errorf("expected the oldest survivor to be 5 days old, got %v", got[0].Timestamp)
	}

	removed, err = log.Prune(models.RetentionPolicy{}, logNow)
	if err != nil || removed != 0 {
		t.Errorf("expected empty policy to remove nothing, got %d, %v", removed, err)
	}
}

func TestJSONLEventLog_RejectsOversizedEvent(t *testing.T) {
	log, _ := newTestEventLog(t)
	mustAppend(t, log, models.NewFeatureEvent("search", "s1", logNow))

	huge := models.NewNavigationEvent("home", strings.Repeat("x", 2*1024*1024), "s1", logNow)
	if _, err := log.Append(huge); !errors.Is(err, models.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}

	got, err := log.Query(models.EventFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected only the small event, got %d", len(got))
	}
}

func TestJSONLEventLog_SkipsOverlongLines(t *testing.T) {
	log, path := newTestEventLog(t)
	mustAppend(t, log, models.NewFeatureEvent("search", "s1", logNow))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.WriteString(`{"id":"big","to":"` + strings.Repeat("x", 2*1024*1024) + "\"}\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = f.Close()
	mustAppend(t, log, models.NewFeatureEvent("export", "s1", logNow))

	got, err := log.Query(models.EventFilter{})
	if err != nil {
		t.Fatalf("expected the log to stay readable, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events around the long line, got %d", len(got))
	}

	removed, err := log.Prune(models.RetentionPolicy{}, logNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected no events removed, got %d", removed)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Size() > MaxEventBytes {
		t.Errorf("expected prune to drop the long line, file is %d bytes", info.Size())
	}
}

func TestJSONLEventLog_AutomaticRetention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	policy := models.RetentionPolicy{MaxAge: 30 * 24 * time.Hour, MaxEvents: 10}
	clock := func() time.Time { return logNow }

	seed, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustAppend(t, seed, models.NewFeatureEvent("search", "s0", logNow.Add(-60*24*time.Hour)))
	if err := seed.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log, err := NewJSONLEventLog(path, WithRetention(policy, clock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer log.Close()

	got, err := log.Query(models.EventFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected the expired event dropped on open, got %d", len(got))
	}

	for i := 0; i < 100; i++ {
		mustAppend(t, log, models.NewFeatureEvent("search", "s1", logNow.Add(time.Duration(i)*time.Second)))
		got, err := log.Query(models.EventFilter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) > 11 {
			t.Fatalf("log grew to %d events after %d appends", len(got), i+1)
		}
	}

	got, err = log.Query(models.EventFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last := got[len(got)-1]; !last.Timestamp.Equal(logNow.Add(99 * time.Second)) {
		t.Errorf("expected the newest event kept, got %v", last.Timestamp)
	}
}
