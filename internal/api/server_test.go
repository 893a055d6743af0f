package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/valter-silva-au/ax-engine/internal/core"
	"github.com/valter-silva-au/ax-engine/internal/observability"
	"github.com/valter-silva-au/ax-engine/internal/storage"
	"github.com/valter-silva-au/ax-engine/pkg/models"
)

var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

func testWorkspace() *models.Workspace {
	return &models.Workspace{
		SchemaVersion: models.WorkspaceSchemaVersion,
		Projects: []models.Project{
			{ID: "p1", Title: "Launch", CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		},
		Notes: []models.Note{
			{ID: "n1", Title: "Kickoff", ProjectID: "p1", CreatedAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)},
		},
		Blockers: []models.Blocker{
			{ID: "b1", Title: "Legal review", ProjectID: "p1", CreatedAt: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)},
		},
	}
}

type failingEvents struct{}

func (failingEvents) Append(models.TrackableEvent) (models.TrackableEvent, error) {
	return models.TrackableEvent{}, models.ErrStoreUnavailable
}

func (failingEvents) Query(models.EventFilter) ([]models.TrackableEvent, error) {
	return nil, fmt.Errorf("%w: disk gone", models.ErrStoreUnavailable)
}

func (failingEvents) Prune(models.RetentionPolicy, time.Time) (int, error) {
	return 0, models.ErrStoreUnavailable
}

func newTestServer(t *testing.T, events core.EventStore) *Server {
	t.Helper()
	dir := t.TempDir()

	workspace := storage.NewWorkspaceProvider(dir)
	if err := workspace.SaveWorkspace(testWorkspace()); err != nil {
		t.Fatalf("saving workspace: %v", err)
	}
	if events == nil {
		log, err := observability.NewJSONLEventLog(filepath.Join(dir, "events.jsonl"))
		if err != nil {
			t.Fatalf("opening event log: %v", err)
		}
		t.Cleanup(func() { _ = log.Close() })
		events = log
	}

	reg := prometheus.NewRegistry()
	engine := core.NewEngine(workspace, events, storage.NewYAMLScratchpadStore(dir), core.EngineOptions{
		Location: time.UTC,
		Metrics:  observability.NewPromMetrics(reg),
		Now:      func() time.Time { return testNow },
	})
	return NewServer(engine, nil, reg)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("expected 200 ok, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestServer_Snapshot(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/v1/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SnapshotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Enriched || resp.Snapshot == nil {
		t.Fatalf("expected enriched snapshot, got %+v", resp)
	}

	checkin := models.SuggestionID(core.TriggerProjectCheckin, models.EntityKey{Kind: models.KindProject, ID: "p1"})
	if _, ok := resp.Snapshot.FindSuggestion(checkin); !ok {
		t.Errorf("expected project check-in suggestion %s in %+v", checkin, resp.Snapshot.Suggestions)
	}
	if got := resp.Snapshot.Staleness.Counts[models.LevelCritical]; got != 1 {
		t.Errorf("expected 1 critical entity, got %d", got)
	}
}

func TestServer_SnapshotFallsBackToWorkspace(t *testing.T) {
	rec := do(t, newTestServer(t, failingEvents{}), http.MethodGet, "/v1/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SnapshotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Enriched {
		t.Error("expected enriched=false")
	}
	if resp.Workspace == nil || len(resp.Workspace.Projects) != 1 {
		t.Errorf("expected raw workspace with one project, got %+v", resp.Workspace)
	}
	if resp.Snapshot != nil {
		t.Error("expected no snapshot on fallback")
	}
}

func TestServer_Feedback(t *testing.T) {
	srv := newTestServer(t, nil)
	checkin := models.SuggestionID(core.TriggerProjectCheckin, models.EntityKey{Kind: models.KindProject, ID: "p1"})

	tests := []struct {
		name   string
		id     string
		body   string
		status int
	}{
		{"approve known suggestion", checkin, `{"action":"approve"}`, http.StatusCreated},
		{"explicit trigger type", checkin, `{"action":"dismiss","trigger_type":"project-checkin"}`, http.StatusCreated},
		{"mismatched trigger type", checkin, `{"action":"dismiss","trigger_type":"tag-suggestion"}`, http.StatusNotFound},
		{"unknown suggestion", "sg-000000000000", `{"action":"dismiss"}`, http.StatusNotFound},
		{"bad action", checkin, `{"action":"snooze"}`, http.StatusBadRequest},
		{"malformed body", checkin, `{"action":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/v1/suggestions/"+tt.id+"/feedback", tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_FeedbackRecordsEvent(t *testing.T) {
	srv := newTestServer(t, nil)
	checkin := models.SuggestionID(core.TriggerProjectCheckin, models.EntityKey{Kind: models.KindProject, ID: "p1"})

	rec := do(t, srv, http.MethodPost, "/v1/suggestions/"+checkin+"/feedback", `{"action":"dismiss"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var event models.TrackableEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &event); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	if event.Type != models.EventSuggestionDismissed {
		t.Errorf("expected %s, got %s", models.EventSuggestionDismissed, event.Type)
	}
	if event.TriggerType() != core.TriggerProjectCheckin {
		t.Errorf("expected trigger type %s, got %s", core.TriggerProjectCheckin, event.TriggerType())
	}
	if event.ID == "" {
		t.Error("expected event id to be assigned")
	}
}

func TestServer_ScratchpadLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/v1/scratchpad", `{"scope":"project","project_id":"p1","kind":"observation","content":"prefers async updates"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var entry models.ScratchpadEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decoding entry: %v", err)
	}
	if entry.ID != "SP-00001" {
		t.Errorf("expected SP-00001, got %s", entry.ID)
	}

	rec = do(t, srv, http.MethodGet, "/v1/scratchpad?scope=project&project=p1", "")
	var entries []models.ScratchpadEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	rec = do(t, srv, http.MethodPost, "/v1/scratchpad/SP-00001/consume", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodGet, "/v1/scratchpad?scope=project:p1", "")
	entries = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected consumed entry to be hidden, got %d", len(entries))
	}

	rec = do(t, srv, http.MethodGet, "/v1/scratchpad?all=true", "")
	entries = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding entries: %v", err)
	}
	if len(entries) != 1 || entries[0].ConsumedAt == nil {
		t.Errorf("expected consumed entry with all=true, got %+v", entries)
	}
}

func TestServer_ScratchpadErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"empty content", http.MethodPost, "/v1/scratchpad", `{"scope":"global","kind":"observation","content":""}`, http.StatusBadRequest},
		{"unknown kind", http.MethodPost, "/v1/scratchpad", `{"scope":"global","kind":"todo","content":"x"}`, http.StatusBadRequest},
		{"unknown scope", http.MethodPost, "/v1/scratchpad", `{"scope":"team","kind":"observation","content":"x"}`, http.StatusBadRequest},
		{"consume unknown", http.MethodPost, "/v1/scratchpad/SP-00099/consume", "", http.StatusNotFound},
		{"bad all flag", http.MethodGet, "/v1/scratchpad?all=maybe", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_Events(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/v1/events", `{"type":"feature.used","payload":{"schema_version":1,"feature":{"name":"search"}}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var event models.TrackableEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &event); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	if !event.Timestamp.Equal(testNow) {
		t.Errorf("expected timestamp %v, got %v", testNow, event.Timestamp)
	}

	rec = do(t, srv, http.MethodPost, "/v1/events", `{"type":"feature.used","payload":{"schema_version":1}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing feature payload, got %d", rec.Code)
	}
}

func TestServer_EventSizeLimits(t *testing.T) {
	srv := newTestServer(t, nil)

	event := func(to string) string {
		return `{"type":"navigation","payload":{"schema_version":1,"navigation":{"from":"home","to":"` + to + `"}}}`
	}
	if rec := do(t, srv, http.MethodPost, "/v1/events", event(strings.Repeat("x", 200*1024))); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an oversized event, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, srv, http.MethodPost, "/v1/events", event(strings.Repeat("x", 2*1024*1024))); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for an oversized body, got %d", rec.Code)
	}

	rec := do(t, srv, http.MethodGet, "/v1/snapshot", "")
	var resp SnapshotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if !resp.Enriched {
		t.Errorf("expected snapshots to stay enriched, got error %q", resp.Error)
	}
}

func TestServer_StoreUnavailableIs503(t *testing.T) {
	srv := newTestServer(t, failingEvents{})
	rec := do(t, srv, http.MethodPost, "/v1/events", `{"type":"feature.used","payload":{"schema_version":1,"feature":{"name":"search"}}}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Sessions(t *testing.T) {
	srv := newTestServer(t, nil)

	if rec := do(t, srv, http.MethodGet, "/v1/session", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with no session, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/v1/session/end", ""); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 ending no session, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/v1/session/start", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 starting session, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, srv, http.MethodGet, "/v1/session", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with open session, got %d", rec.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, http.MethodGet, "/v1/snapshot", "")

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ax_snapshots_assembled_total 1") {
		t.Errorf("expected snapshot counter in metrics output, got:\n%s", rec.Body.String())
	}
}
