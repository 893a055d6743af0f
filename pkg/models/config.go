package models

// StalenessConfig holds day thresholds per entity class.
type StalenessConfig struct {
	AgingDays           int `yaml:"aging_days" mapstructure:"aging_days"`
	StaleDays           int `yaml:"stale_days" mapstructure:"stale_days"`
	CriticalDays        int `yaml:"critical_days" mapstructure:"critical_days"`
	BlockerAgingDays    int `yaml:"blocker_aging_days" mapstructure:"blocker_aging_days"`
	BlockerStaleDays    int `yaml:"blocker_stale_days" mapstructure:"blocker_stale_days"`
	BlockerCriticalDays int `yaml:"blocker_critical_days" mapstructure:"blocker_critical_days"`
}

// PatternConfig tunes the pattern analyzer.
type PatternConfig struct {
	IgnoreMultiple   float64 `yaml:"ignore_multiple" mapstructure:"ignore_multiple"`
	MinSamples       int     `yaml:"min_samples" mapstructure:"min_samples"`
	ActiveWindowDays int     `yaml:"active_window_days" mapstructure:"active_window_days"`
}

// QuietConfig tunes the quiet signal detector.
type QuietConfig struct {
	FlowMinutes        int `yaml:"flow_minutes" mapstructure:"flow_minutes"`
	BurstWindowMinutes int `yaml:"burst_window_minutes" mapstructure:"burst_window_minutes"`
	BurstThreshold     int `yaml:"burst_threshold" mapstructure:"burst_threshold"`
}

// ConfidenceConfig tunes suggestion gating.
type ConfidenceConfig struct {
	SurfaceThreshold float64 `yaml:"surface_threshold" mapstructure:"surface_threshold"`
}

// EventsConfig bounds how much of the event log is read and kept.
type EventsConfig struct {
	LookbackDays  int `yaml:"lookback_days" mapstructure:"lookback_days"`
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days"`
	MaxEvents     int `yaml:"max_events" mapstructure:"max_events"`
}

// ScratchpadConfig selects the scratchpad backend.
type ScratchpadConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // yaml or sqlite
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// AlertConfig holds alert thresholds.
type AlertConfig struct {
	MaxCritical int `yaml:"max_critical" mapstructure:"max_critical"`
}

// SlackConfig holds Slack webhook settings.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// NotificationConfig controls outbound alert delivery.
type NotificationConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack" mapstructure:"slack"`
}

// GlobalConfig holds engine-wide settings read from .axconfig via Viper.
type GlobalConfig struct {
	Timezone      string             `yaml:"timezone" mapstructure:"timezone"`
	QuietHours    *QuietHours        `yaml:"quiet_hours,omitempty" mapstructure:"quiet_hours"`
	Staleness     StalenessConfig    `yaml:"staleness" mapstructure:"staleness"`
	Patterns      PatternConfig      `yaml:"patterns" mapstructure:"patterns"`
	Quiet         QuietConfig        `yaml:"quiet" mapstructure:"quiet"`
	Confidence    ConfidenceConfig   `yaml:"confidence" mapstructure:"confidence"`
	Events        EventsConfig       `yaml:"events" mapstructure:"events"`
	Scratchpad    ScratchpadConfig   `yaml:"scratchpad" mapstructure:"scratchpad"`
	Server        ServerConfig       `yaml:"server" mapstructure:"server"`
	Log           LogConfig          `yaml:"log" mapstructure:"log"`
	Alerts        AlertConfig        `yaml:"alerts" mapstructure:"alerts"`
	Notifications NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
}
