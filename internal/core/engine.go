package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// SessionStatus describes the session open at a point in time.
type SessionStatus struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	DurationMin int       `json:"duration_min"`
}

// Engine is the service surface shared by the CLI, HTTP API and MCP server.
type Engine interface {
	Snapshot() (*models.AXStateGraph, error)
	Workspace() (*models.Workspace, error)
	RecordFeedback(suggestionID string, action models.FeedbackAction, triggerType string) (models.TrackableEvent, error)
	RecordEvent(event models.TrackableEvent) (models.TrackableEvent, error)
	Events(filter models.EventFilter) ([]models.TrackableEvent, error)
	StartSession() (*SessionStatus, error)
	EndSession() (*SessionStatus, error)
	CurrentSession() (*SessionStatus, error)
	WriteScratchpad(scope models.ScratchpadScope, kind models.ScratchpadKind, content string) (models.ScratchpadEntry, error)
	ReadScratchpad(query models.ScratchpadQuery) ([]models.ScratchpadEntry, error)
	ConsumeScratchpad(id string) (models.ScratchpadEntry, error)
	PruneEvents() (int, error)
}

// EngineOptions carries the optional collaborators of an Engine.
type EngineOptions struct {
	Config     *models.GlobalConfig
	Location   *time.Location
	Generators []CandidateGenerator
	Logger     *zap.Logger
	Metrics    MetricsRecorder
	// Now is the engine clock; time.Now when nil.
	Now func() time.Time
}

type engine struct {
	entities   EntityProvider
	events     EventStore
	scratchpad ScratchpadStore
	assembler  SnapshotAssembler
	cfg        *models.GlobalConfig
	logger     *zap.Logger
	metrics    MetricsRecorder
	now        func() time.Time
}

// NewEngine wires the providers and stores to a SnapshotAssembler.
func NewEngine(entities EntityProvider, events EventStore, scratchpad ScratchpadStore, opts EngineOptions) Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultGlobalConfig()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var metrics MetricsRecorder = nopRecorder{}
	if opts.Metrics != nil {
		metrics = opts.Metrics
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &engine{
		entities:   entities,
		events:     events,
		scratchpad: scratchpad,
		assembler:  NewSnapshotAssembler(cfg, loc, opts.Generators),
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		now:        now,
	}
}

func (e *engine) lookback() time.Duration {
	days := e.cfg.Events.LookbackDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * day
}

// Workspace returns the entity snapshot without any scoring.
func (e *engine) Workspace() (*models.Workspace, error) {
	ws, err := e.entities.LoadWorkspace()
	if err != nil {
		return nil, fmt.Errorf("loading workspace: %w", err)
	}
	return ws, nil
}

// Snapshot assembles a fresh AXStateGraph and attaches unconsumed
// scratchpad entries.
func (e *engine) Snapshot() (*models.AXStateGraph, error) {
	start := time.Now()
	now := e.now()

	graph, err := e.snapshotAt(now)
	if err != nil {
		e.metrics.SnapshotFailed()
		e.logger.Warn("snapshot assembly failed", zap.Error(err))
		return nil, err
	}

	surfaced := len(graph.Surfaced())
	elapsed := time.Since(start)
	e.metrics.ObserveSnapshot(elapsed, surfaced)
	e.logger.Debug("snapshot assembled",
		zap.Int("entities", len(graph.Staleness.Entries)),
		zap.Int("edges", graph.Relationships.Len()),
		zap.Int("suggestions", len(graph.Suggestions)),
		zap.Int("surfaced", surfaced),
		zap.Duration("elapsed", elapsed),
	)
	return graph, nil
}

func (e *engine) snapshotAt(now time.Time) (*models.AXStateGraph, error) {
	ws, err := e.Workspace()
	if err != nil {
		return nil, err
	}

	since := now.Add(-e.lookback())
	events, err := e.events.Query(models.EventFilter{Since: &since, Until: &now, Limit: e.cfg.Events.MaxEvents})
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}

	graph, err := e.assembler.Assemble(AssembleInput{
		Workspace:  ws,
		Events:     events,
		QuietHours: e.cfg.QuietHours,
		Now:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("assembling snapshot: %w", err)
	}

	entries, err := e.scratchpad.Read(models.ScratchpadQuery{})
	if err != nil {
		return nil, fmt.Errorf("reading scratchpad: %w", err)
	}
	graph.Scratchpad = entries
	return graph, nil
}

// RecordFeedback appends the approve or dismiss event for a suggestion in
// the current session. An empty triggerType is resolved from a fresh
// snapshot. An explicit triggerType must reproduce suggestionID for some
// workspace entity. Unknown ids fail with ErrSuggestionNotFound.
func (e *engine) RecordFeedback(suggestionID string, action models.FeedbackAction, triggerType string) (models.TrackableEvent, error) {
	eventType, ok := action.EventType()
	if !ok {
		return models.TrackableEvent{}, fmt.Errorf("%w: unknown feedback action %q", models.ErrInvalidEvent, action)
	}
	if suggestionID == "" {
		return models.TrackableEvent{}, fmt.Errorf("%w: suggestion id is required", models.ErrInvalidEvent)
	}

	now := e.now()
	if triggerType == "" {
		graph, err := e.snapshotAt(now)
		if err != nil {
			return models.TrackableEvent{}, err
		}
		s, found := graph.FindSuggestion(suggestionID)
		if !found {
			return models.TrackableEvent{}, fmt.Errorf("%w: %s", models.ErrSuggestionNotFound, suggestionID)
		}
		triggerType = s.TriggerType
	} else if err := e.checkSuggestionID(suggestionID, triggerType); err != nil {
		return models.TrackableEvent{}, err
	}

	sessionID := ""
	if status, err := e.sessionAt(now); err == nil && status != nil {
		sessionID = status.ID
	}

	event, err := e.append(models.NewSuggestionEvent(eventType, suggestionID, triggerType, sessionID, now))
	if err != nil {
		return models.TrackableEvent{}, err
	}
	e.metrics.FeedbackRecorded(string(action))
	e.logger.Info("suggestion feedback recorded",
		zap.String("suggestion_id", suggestionID),
		zap.String("trigger_type", triggerType),
		zap.String("action", string(action)),
	)
	return event, nil
}

// checkSuggestionID requires that id is the suggestion id of triggerType for
// some entity in the workspace.
func (e *engine) checkSuggestionID(id, triggerType string) error {
	ws, err := e.Workspace()
	if err != nil {
		return err
	}
	for _, ref := range ws.Refs() {
		if models.SuggestionID(triggerType, ref.Key()) == id {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not a %s suggestion for any entity", models.ErrSuggestionNotFound, id, triggerType)
}

// RecordEvent validates and appends a caller-built event. A missing
// timestamp is set to now and a missing session id is filled from the open
// session.
func (e *engine) RecordEvent(event models.TrackableEvent) (models.TrackableEvent, error) {
	now := e.now()
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	if event.Payload.SchemaVersion == 0 {
		event.Payload.SchemaVersion = models.EventSchemaVersion
	}
	if event.SessionID == "" && !event.Type.IsSession() {
		if status, err := e.sessionAt(now); err == nil && status != nil {
			event.SessionID = status.ID
		}
	}
	return e.append(event)
}

func (e *engine) append(event models.TrackableEvent) (models.TrackableEvent, error) {
	stored, err := e.events.Append(event)
	if err != nil {
		e.logger.Warn("event append failed", zap.String("type", string(event.Type)), zap.Error(err))
		return models.TrackableEvent{}, fmt.Errorf("appending %s event: %w", event.Type, err)
	}
	e.metrics.EventAppended(string(stored.Type))
	return stored, nil
}

// Events queries the log directly.
func (e *engine) Events(filter models.EventFilter) ([]models.TrackableEvent, error) {
	events, err := e.events.Query(filter)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return events, nil
}

// sessionAt finds the latest session.started with no later session.ended.
// It returns nil when no session is open.
func (e *engine) sessionAt(now time.Time) (*SessionStatus, error) {
	events, err := e.events.Query(models.EventFilter{
		Until: &now,
		Types: []models.EventType{models.EventSessionStarted, models.EventSessionEnded},
	})
	if err != nil {
		return nil, fmt.Errorf("querying session events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	last := events[len(events)-1]
	if last.Type != models.EventSessionStarted {
		return nil, nil
	}
	return &SessionStatus{
		ID:          last.SessionID,
		StartedAt:   last.Timestamp,
		DurationMin: int(now.Sub(last.Timestamp) / time.Minute),
	}, nil
}

// CurrentSession returns the open session or ErrNoOpenSession.
func (e *engine) CurrentSession() (*SessionStatus, error) {
	status, err := e.sessionAt(e.now())
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, models.ErrNoOpenSession
	}
	return status, nil
}

// StartSession opens a session. An already open session is returned as is.
func (e *engine) StartSession() (*SessionStatus, error) {
	now := e.now()
	if status, err := e.sessionAt(now); err != nil {
		return nil, err
	} else if status != nil {
		return status, nil
	}

	id := uuid.NewString()
	if _, err := e.append(models.NewSessionEvent(models.EventSessionStarted, id, now)); err != nil {
		return nil, err
	}
	e.logger.Info("session started", zap.String("session_id", id))
	return &SessionStatus{ID: id, StartedAt: now}, nil
}

// EndSession closes the open session and returns its final status.
func (e *engine) EndSession() (*SessionStatus, error) {
	now := e.now()
	status, err := e.sessionAt(now)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, models.ErrNoOpenSession
	}
	if _, err := e.append(models.NewSessionEvent(models.EventSessionEnded, status.ID, now)); err != nil {
		return nil, err
	}
	e.logger.Info("session ended", zap.String("session_id", status.ID), zap.Int("duration_min", status.DurationMin))
	return status, nil
}

func (e *engine) WriteScratchpad(scope models.ScratchpadScope, kind models.ScratchpadKind, content string) (models.ScratchpadEntry, error) {
	if err := models.ValidateScratchpadWrite(scope, kind, content); err != nil {
		return models.ScratchpadEntry{}, err
	}
	entry, err := e.scratchpad.Write(scope, kind, content)
	if err != nil {
		e.logger.Warn("scratchpad write failed", zap.Error(err))
		return models.ScratchpadEntry{}, fmt.Errorf("writing scratchpad: %w", err)
	}
	e.logger.Debug("scratchpad entry written", zap.String("id", entry.ID), zap.String("scope", scope.String()))
	return entry, nil
}

func (e *engine) ReadScratchpad(query models.ScratchpadQuery) ([]models.ScratchpadEntry, error) {
	if query.Scope != nil {
		if err := query.Scope.Validate(); err != nil {
			return nil, err
		}
	}
	if query.Kind != "" && !query.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", models.ErrInvalidScratchpadEntry, query.Kind)
	}
	entries, err := e.scratchpad.Read(query)
	if err != nil {
		return nil, fmt.Errorf("reading scratchpad: %w", err)
	}
	return entries, nil
}

func (e *engine) ConsumeScratchpad(id string) (models.ScratchpadEntry, error) {
	entry, err := e.scratchpad.Consume(id)
	if err != nil {
		return models.ScratchpadEntry{}, fmt.Errorf("consuming scratchpad entry: %w", err)
	}
	return entry, nil
}

// PruneEvents applies events.retention_days and events.max_events.
func (e *engine) PruneEvents() (int, error) {
	removed, err := e.events.Prune(RetentionFor(e.cfg), e.now())
	if err != nil {
		return 0, fmt.Errorf("pruning events: %w", err)
	}
	e.logger.Info("event log pruned", zap.Int("removed", removed))
	return removed, nil
}
