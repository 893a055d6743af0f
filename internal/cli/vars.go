package cli

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/valter-silva-au/ax-engine/internal/core"
	"github.com/valter-silva-au/ax-engine/internal/observability"
)

// Service instances, set during app initialization in app.go.
var (
	Engine      core.Engine
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
	Logger      *zap.Logger
	Gatherer    prometheus.Gatherer
	ServerAddr  string
)

var errEngineNotInitialized = errors.New("engine not initialized")

func logger() *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger
}
