package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

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

// withEngine wires the package-level services to a fresh data directory and
// restores the previous values when the test ends.
func withEngine(t *testing.T, ws *models.Workspace) {
	t.Helper()
	dir := t.TempDir()

	workspace := storage.NewWorkspaceProvider(dir)
	if ws != nil {
		if err := workspace.SaveWorkspace(ws); err != nil {
			t.Fatalf("saving workspace: %v", err)
		}
	}
	log, err := observability.NewJSONLEventLog(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatalf("opening event log: %v", err)
	}

	origEngine, origLog, origAlerts, origMetrics, origNotifier := Engine, EventLog, AlertEngine, MetricsCalc, Notifier
	t.Cleanup(func() {
		Engine, EventLog, AlertEngine, MetricsCalc, Notifier = origEngine, origLog, origAlerts, origMetrics, origNotifier
		_ = log.Close()
	})

	Engine = core.NewEngine(workspace, log, storage.NewYAMLScratchpadStore(dir), core.EngineOptions{
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
	EventLog = log
	AlertEngine = observability.NewAlertEngine(observability.DefaultAlertThresholds())
	MetricsCalc = observability.NewMetricsCalculator(log)
	Notifier = nil
}

// run invokes cmd.RunE with output captured.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}

// setFlag assigns a package-level flag variable for the duration of a test.
func setFlag[T any](t *testing.T, p *T, v T) {
	t.Helper()
	orig := *p
	*p = v
	t.Cleanup(func() { *p = orig })
}
