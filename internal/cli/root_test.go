package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion, origCommit, origDate := appVersion, appCommit, appDate
	defer func() {
		appVersion, appCommit, appDate = origVersion, origCommit, origDate
	}()

	SetVersionInfo("1.2.3", "abc1234", "2026-02-13")

	if appVersion != "1.2.3" {
		t.Errorf("appVersion = %q, want 1.2.3", appVersion)
	}
	if appCommit != "abc1234" {
		t.Errorf("appCommit = %q, want abc1234", appCommit)
	}
	if appDate != "2026-02-13" {
		t.Errorf("appDate = %q, want 2026-02-13", appDate)
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"nonexistent-command"})
	defer rootCmd.SetArgs(nil)

	err := Execute()
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExecute_VersionSubcommand(t *testing.T) {
	origVersion, origCommit, origDate := appVersion, appCommit, appDate
	defer func() {
		appVersion, appCommit, appDate = origVersion, origCommit, origDate
	}()
	SetVersionInfo("test-ver", "test-commit", "test-date")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := stdout.String(); !strings.Contains(got, "ax test-ver") || !strings.Contains(got, "commit: test-commit") {
		t.Errorf("unexpected version output %q", got)
	}
}

func TestCommandRegistration(t *testing.T) {
	want := []string{
		"version", "snapshot", "feedback", "scratchpad", "session", "event", "events",
		"metrics", "alerts", "dashboard", "serve", "mcp",
	}
	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("%s command not registered on root", name)
		}
	}
}
