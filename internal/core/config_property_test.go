package core

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"pgregory.net/rapid"
)

func TestProperty_IncreasingThresholdsValidate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		aging := rapid.IntRange(1, 30).Draw(t, "aging")
		stale := aging + rapid.IntRange(1, 30).Draw(t, "staleGap")
		critical := stale + rapid.IntRange(1, 60).Draw(t, "criticalGap")

		cfg := DefaultGlobalConfig()
		cfg.Staleness.AgingDays = aging
		cfg.Staleness.StaleDays = stale
		cfg.Staleness.CriticalDays = critical
		if err := validateGlobalConfig(cfg); err != nil {
			t.Fatalf("expected %d/%d/%d to validate, got %v", aging, stale, critical, err)
		}

		cfg.Staleness.StaleDays = critical
		if err := validateGlobalConfig(cfg); err == nil {
			t.Fatalf("expected stale == critical (%d) to fail", critical)
		}
	})
}

func TestProperty_ConfigFileRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dir, err := os.MkdirTemp("", "ax-config-*")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer os.RemoveAll(dir)

		critical := rapid.IntRange(6, 365).Draw(t, "critical")
		lookback := rapid.IntRange(1, 365).Draw(t, "lookback")
		threshold := float64(rapid.IntRange(0, 100).Draw(t, "threshold")) / 100

		content := fmt.Sprintf("staleness:\n  critical_days: %d\nevents:\n  lookback_days: %d\nconfidence:\n  surface_threshold: %v\n",
			critical, lookback, threshold)
		if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Staleness.CriticalDays != critical || cfg.Events.LookbackDays != lookback || cfg.Confidence.SurfaceThreshold != threshold {
			t.Fatalf("loaded %+v, want critical=%d lookback=%d threshold=%v", cfg, critical, lookback, threshold)
		}
	})
}
