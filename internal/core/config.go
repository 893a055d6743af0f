// Package core contains the AX engine: staleness scoring, the relationship
// graph, pattern and quiet signal analysis, confidence gating, snapshot
// assembly and the Engine service that ties them to the stores.
package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// ConfigFileName is the engine configuration file inside the data directory.
const ConfigFileName = ".axconfig"

// ConfigurationManager loads and validates the engine configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager reads .axconfig with Viper. A .env file next to it is
// loaded into the process environment first.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager rooted at basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns the configuration used when .axconfig is absent.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Timezone:   "",
		Staleness:  DefaultStalenessConfig(),
		Patterns:   DefaultPatternConfig(),
		Quiet:      DefaultQuietConfig(),
		Confidence: DefaultConfidenceConfig(),
		Events: models.EventsConfig{
			LookbackDays:  90,
			RetentionDays: 180,
			MaxEvents:     10000,
		},
		Scratchpad: models.ScratchpadConfig{Backend: "yaml"},
		Server:     models.ServerConfig{Addr: "127.0.0.1:7420"},
		Log:        models.LogConfig{Level: "info", Format: "console"},
		Alerts:     models.AlertConfig{MaxCritical: 5},
	}
}

func setDefaults(v *viper.Viper, cfg *models.GlobalConfig) {
	v.SetDefault("timezone", cfg.Timezone)
	v.SetDefault("staleness.aging_days", cfg.Staleness.AgingDays)
	v.SetDefault("staleness.stale_days", cfg.Staleness.StaleDays)
	v.SetDefault("staleness.critical_days", cfg.Staleness.CriticalDays)
	v.SetDefault("staleness.blocker_aging_days", cfg.Staleness.BlockerAgingDays)
	v.SetDefault("staleness.blocker_stale_days", cfg.Staleness.BlockerStaleDays)
	v.SetDefault("staleness.blocker_critical_days", cfg.Staleness.BlockerCriticalDays)
	v.SetDefault("patterns.ignore_multiple", cfg.Patterns.IgnoreMultiple)
	v.SetDefault("patterns.min_samples", cfg.Patterns.MinSamples)
	v.SetDefault("patterns.active_window_days", cfg.Patterns.ActiveWindowDays)
	v.SetDefault("quiet.flow_minutes", cfg.Quiet.FlowMinutes)
	v.SetDefault("quiet.burst_window_minutes", cfg.Quiet.BurstWindowMinutes)
	v.SetDefault("quiet.burst_threshold", cfg.Quiet.BurstThreshold)
	v.SetDefault("confidence.surface_threshold", cfg.Confidence.SurfaceThreshold)
	v.SetDefault("events.lookback_days", cfg.Events.LookbackDays)
	v.SetDefault("events.retention_days", cfg.Events.RetentionDays)
	v.SetDefault("events.max_events", cfg.Events.MaxEvents)
	v.SetDefault("scratchpad.backend", cfg.Scratchpad.Backend)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("alerts.max_critical", cfg.Alerts.MaxCritical)
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.slack.webhook_url", "")
}

// LoadGlobalConfig reads .axconfig from the base path. Missing files yield
// defaults; AX_* environment variables override both, with dots in keys
// mapped to underscores (AX_SERVER_ADDR, AX_QUIET_HOURS_START).
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	envPath := filepath.Join(cm.basePath, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envPath, err)
	}

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("AX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultGlobalConfig())
	// Quiet hour keys have no default but must be known for env overrides.
	for _, key := range []string{"quiet_hours.start", "quiet_hours.end", "quiet_hours.timezone", "quiet_hours.weekends_quiet"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg := &models.GlobalConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ConfigFileName, err)
	}

	cfg.QuietHours = nil
	if v.GetString("quiet_hours.start") != "" || v.GetString("quiet_hours.end") != "" || v.GetBool("quiet_hours.weekends_quiet") {
		cfg.QuietHours = &models.QuietHours{
			Start:         v.GetString("quiet_hours.start"),
			End:           v.GetString("quiet_hours.end"),
			Timezone:      v.GetString("quiet_hours.timezone"),
			WeekendsQuiet: v.GetBool("quiet_hours.weekends_quiet"),
		}
	}
	return cfg, nil
}

// ValidateConfig reports every invalid field in one error.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	return validateGlobalConfig(cfg)
}

var (
	validBackends   = map[string]bool{"yaml": true, "sqlite": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

func validateThresholds(prefix string, aging, stale, critical int) []string {
	if aging <= 0 || stale <= 0 || critical <= 0 {
		return []string{fmt.Sprintf("%s thresholds must be positive, got %d/%d/%d", prefix, aging, stale, critical)}
	}
	if !(aging < stale && stale < critical) {
		return []string{fmt.Sprintf("%s thresholds must increase (aging < stale < critical), got %d/%d/%d", prefix, aging, stale, critical)}
	}
	return nil
}

func validateGlobalConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("timezone %q is not a known location", cfg.Timezone))
		}
	}

	if qh := cfg.QuietHours; qh != nil {
		if qh.Start != "" || qh.End != "" {
			if _, err := models.ParseClockTime(qh.Start); err != nil {
				errs = append(errs, fmt.Sprintf("quiet_hours.start: %v", err))
			}
			if _, err := models.ParseClockTime(qh.End); err != nil {
				errs = append(errs, fmt.Sprintf("quiet_hours.end: %v", err))
			}
		}
		if qh.Timezone != "" {
			if _, err := time.LoadLocation(qh.Timezone); err != nil {
				errs = append(errs, fmt.Sprintf("quiet_hours.timezone %q is not a known location", qh.Timezone))
			}
		}
	}

	s := cfg.Staleness
	errs = append(errs, validateThresholds("staleness", s.AgingDays, s.StaleDays, s.CriticalDays)...)
	errs = append(errs, validateThresholds("staleness.blocker", s.BlockerAgingDays, s.BlockerStaleDays, s.BlockerCriticalDays)...)

	if cfg.Patterns.IgnoreMultiple <= 0 {
		errs = append(errs, fmt.Sprintf("patterns.ignore_multiple must be positive, got %v", cfg.Patterns.IgnoreMultiple))
	}
	if cfg.Patterns.MinSamples < 1 {
		errs = append(errs, fmt.Sprintf("patterns.min_samples must be at least 1, got %d", cfg.Patterns.MinSamples))
	}
	if cfg.Patterns.ActiveWindowDays < 1 {
		errs = append(errs, fmt.Sprintf("patterns.active_window_days must be at least 1, got %d", cfg.Patterns.ActiveWindowDays))
	}

	if cfg.Quiet.FlowMinutes < 1 || cfg.Quiet.BurstWindowMinutes < 1 || cfg.Quiet.BurstThreshold < 1 {
		errs = append(errs, "quiet.flow_minutes, quiet.burst_window_minutes and quiet.burst_threshold must be at least 1")
	}

	if t := cfg.Confidence.SurfaceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Sprintf("confidence.surface_threshold must be within [0,1], got %v", t))
	}

	if cfg.Events.LookbackDays < 1 {
		errs = append(errs, fmt.Sprintf("events.lookback_days must be at least 1, got %d", cfg.Events.LookbackDays))
	}
	if cfg.Events.RetentionDays < 0 {
		errs = append(errs, fmt.Sprintf("events.retention_days must be non-negative, got %d", cfg.Events.RetentionDays))
	}
	if cfg.Events.MaxEvents < 0 {
		errs = append(errs, fmt.Sprintf("events.max_events must be non-negative, got %d", cfg.Events.MaxEvents))
	}

	if !validBackends[cfg.Scratchpad.Backend] {
		errs = append(errs, fmt.Sprintf("scratchpad.backend %q is invalid, must be one of: yaml, sqlite", cfg.Scratchpad.Backend))
	}
	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr must not be empty")
	}
	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.Log.Level))
	}
	if !validLogFormats[cfg.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be one of: json, console", cfg.Log.Format))
	}
	if cfg.Alerts.MaxCritical < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_critical must be non-negative, got %d", cfg.Alerts.MaxCritical))
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL == "" {
		errs = append(errs, "notifications.slack.webhook_url is required when notifications are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RetentionFor builds the event log retention policy from cfg.
func RetentionFor(cfg *models.GlobalConfig) models.RetentionPolicy {
	return models.RetentionPolicy{
		MaxAge:    time.Duration(cfg.Events.RetentionDays) * day,
		MaxEvents: cfg.Events.MaxEvents,
	}
}

// ConfigLocation resolves the configured timezone, defaulting to local time.
func ConfigLocation(cfg *models.GlobalConfig) (*time.Location, error) {
	if cfg == nil || cfg.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	return loc, nil
}

// ResolveDataDir returns AX_HOME when set, otherwise the nearest ancestor of
// start holding .axconfig, otherwise start itself.
func ResolveDataDir(start string) string {
	if home := os.Getenv("AX_HOME"); home != "" {
		return home
	}
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}
