// Package internal provides the App struct that wires all components of the
// AX engine together and initializes the CLI layer.
package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/valter-silva-au/ax-engine/internal/cli"
	"github.com/valter-silva-au/ax-engine/internal/core"
	"github.com/valter-silva-au/ax-engine/internal/observability"
	"github.com/valter-silva-au/ax-engine/internal/storage"
	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// EventLogFileName is the behavior log inside the data directory.
const EventLogFileName = "events.jsonl"

// App holds all service dependencies for the AX engine.
type App struct {
	DataDir string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig
	Logger    *zap.Logger

	// Storage layer
	Workspace  storage.WorkspaceProvider
	EventLog   observability.EventLog
	Scratchpad storage.ScratchpadStore

	// Core services
	Engine core.Engine

	// Observability
	Registry    *prometheus.Registry
	PromMetrics *observability.PromMetrics
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components of the AX engine. dataDir holds
// .axconfig, workspace.yaml, the event log and the scratchpad.
func NewApp(dataDir string) (*App, error) {
	app := &App{DataDir: dataDir}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(dataDir)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	loc, err := core.ConfigLocation(cfg)
	if err != nil {
		return nil, err
	}

	app.Logger, err = observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	// --- Storage layer ---
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	app.Workspace = storage.NewWorkspaceProvider(dataDir)
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(dataDir, EventLogFileName),
		observability.WithRetention(core.RetentionFor(cfg), time.Now),
		observability.WithEventLogLogger(app.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	app.Scratchpad, err = storage.NewScratchpadStore(dataDir, cfg.Scratchpad)
	if err != nil {
		_ = app.EventLog.Close()
		return nil, fmt.Errorf("opening scratchpad: %w", err)
	}

	// --- Observability ---
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.PromMetrics = observability.NewPromMetrics(app.Registry)

	thresholds := observability.DefaultAlertThresholds()
	if cfg.Alerts.MaxCritical > 0 {
		thresholds.MaxCritical = cfg.Alerts.MaxCritical
	}
	app.AlertEngine = observability.NewAlertEngine(thresholds)
	app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	}

	// --- Core services ---
	app.Engine = core.NewEngine(app.Workspace, app.EventLog, app.Scratchpad, core.EngineOptions{
		Config:   cfg,
		Location: loc,
		Logger:   app.Logger,
		Metrics:  app.PromMetrics,
	})

	// --- Wire CLI package-level variables ---
	cli.Engine = app.Engine
	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier
	cli.Logger = app.Logger
	cli.Gatherer = app.Registry
	cli.ServerAddr = cfg.Server.Addr

	app.Logger.Debug("app initialized",
		zap.String("data_dir", dataDir),
		zap.String("scratchpad", cfg.Scratchpad.Backend),
		zap.String("location", loc.String()),
	)
	return app, nil
}

// Close releases the event log and scratchpad handles and flushes the
// logger. It is safe to call on a partially built App.
func (a *App) Close() error {
	var errs []error
	if a.EventLog != nil {
		errs = append(errs, a.EventLog.Close())
	}
	if closer, ok := a.Scratchpad.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if a.Logger != nil {
		// Sync returns EINVAL for stderr on terminals.
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the data directory: AX_HOME, then the nearest
// ancestor of the working directory holding .axconfig, then the working
// directory itself.
func ResolveBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return core.ResolveDataDir(cwd)
}
