package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/valter-silva-au/ax-engine/internal/observability"
)

type notifierMock struct {
	sent [][]observability.Alert
	err  error
}

func (n *notifierMock) Notify(_ context.Context, alerts []observability.Alert) error {
	n.sent = append(n.sent, alerts)
	return n.err
}

func TestAlertsCmd_NilEngine(t *testing.T) {
	orig := AlertEngine
	defer func() { AlertEngine = orig }()
	AlertEngine = nil

	_, err := run(t, alertsCmd)
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected not initialized error, got %v", err)
	}
}

func TestAlertsCmd_Output(t *testing.T) {
	withEngine(t, testWorkspace())

	out, err := run(t, alertsCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "1 active alert(s)") || !strings.Contains(out, "Launch") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestAlertsCmd_NoAlerts(t *testing.T) {
	withEngine(t, nil)

	out, err := run(t, alertsCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No active alerts.") {
		t.Errorf("unexpected output %q", out)
	}

	setFlag(t, &alertsJSON, true)
	out, err = run(t, alertsCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("expected empty JSON array, got %q", out)
	}
}

func TestAlertsCmd_JSON(t *testing.T) {
	withEngine(t, testWorkspace())
	setFlag(t, &alertsJSON, true)

	out, err := run(t, alertsCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var alerts []observability.Alert
	if err := json.Unmarshal([]byte(out), &alerts); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != "critical-project#p1" {
		t.Errorf("unexpected alerts %+v", alerts)
	}
}

func TestAlertsCmd_Notify(t *testing.T) {
	withEngine(t, testWorkspace())
	setFlag(t, &alertsNotify, true)

	if _, err := run(t, alertsCmd); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("expected not configured error, got %v", err)
	}

	mock := &notifierMock{}
	Notifier = mock
	if _, err := run(t, alertsCmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.sent) != 1 || len(mock.sent[0]) != 1 {
		t.Errorf("expected one notification with one alert, got %+v", mock.sent)
	}

	mock.err = fmt.Errorf("webhook returned 500")
	if _, err := run(t, alertsCmd); err == nil || !strings.Contains(err.Error(), "sending notification") {
		t.Errorf("expected notification error, got %v", err)
	}
}
