// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the AX snapshot, suggestion feedback and the agent scratchpad as tools.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/valter-silva-au/ax-engine/internal/core"
	"github.com/valter-silva-au/ax-engine/internal/observability"
	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// Server wraps the engine and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	engine      core.Engine
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
	logger      *zap.Logger
}

// NewServer creates a new MCP server. metricsCalc and alertEngine may be nil,
// in which case the corresponding tools report an error result.
func NewServer(engine core.Engine, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, logger *zap.Logger, version string) *Server {
	if version == "" {
		version = "dev"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		engine:      engine,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
		logger:      logger,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "ax", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdio, blocking until the client disconnects or the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", zap.String("transport", "stdio"))
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getSnapshotInput struct {
	SurfacedOnly bool `json:"surfaced_only,omitempty" jsonschema:"only return suggestions that passed gating"`
}

type stalenessOutput struct {
	Entity     string `json:"entity"`
	Title      string `json:"title"`
	AgeInDays  int    `json:"age_in_days"`
	StaleLevel string `json:"stale_level"`
	Reason     string `json:"reason,omitempty"`
}

type suggestionOutput struct {
	ID             string   `json:"id"`
	TriggerType    string   `json:"trigger_type"`
	Title          string   `json:"title"`
	ProposedAction string   `json:"proposed_action"`
	Entity         string   `json:"entity"`
	Confidence     float64  `json:"confidence"`
	Urgency        string   `json:"urgency"`
	StaleLevel     string   `json:"stale_level,omitempty"`
	ShouldSurface  bool     `json:"should_surface"`
	TriggeredAt    string   `json:"triggered_at"`
	Related        []string `json:"related,omitempty"`
}

type quietOutput struct {
	InFlowState         bool `json:"in_flow_state"`
	WithinQuietHours    bool `json:"within_quiet_hours"`
	RecentBurstActivity bool `json:"recent_burst_activity"`
	SessionDurationMin  int  `json:"session_duration_min"`
}

type scratchpadOutput struct {
	ID         string `json:"id"`
	Scope      string `json:"scope"`
	Kind       string `json:"kind"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
	ConsumedAt string `json:"consumed_at,omitempty"`
}

type snapshotOutput struct {
	GeneratedAt  string             `json:"generated_at"`
	Counts       map[string]int     `json:"counts"`
	NeedsReview  []stalenessOutput  `json:"needs_review"`
	Suggestions  []suggestionOutput `json:"suggestions"`
	Quiet        quietOutput        `json:"quiet"`
	IgnoredTypes []string           `json:"ignored_types"`
	Scratchpad   []scratchpadOutput `json:"scratchpad"`
}

type feedbackInput struct {
	SuggestionID string `json:"suggestion_id" jsonschema:"the suggestion id from get_snapshot"`
	Action       string `json:"action" jsonschema:"approve or dismiss"`
	TriggerType  string `json:"trigger_type,omitempty" jsonschema:"trigger type; resolved from the current snapshot when omitted, otherwise checked against the id"`
}

type feedbackOutput struct {
	EventID string `json:"event_id"`
	Message string `json:"message"`
}

type scratchpadWriteInput struct {
	Scope     string `json:"scope" jsonschema:"global or project"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"project id when scope is project"`
	Kind      string `json:"kind" jsonschema:"observation, pendingAction or learnedPreference"`
	Content   string `json:"content" jsonschema:"what to remember"`
}

type scratchpadReadInput struct {
	Scope           string `json:"scope,omitempty" jsonschema:"global or project; all scopes when omitted"`
	ProjectID       string `json:"project_id,omitempty" jsonschema:"project id when scope is project"`
	Kind            string `json:"kind,omitempty" jsonschema:"filter by kind"`
	IncludeConsumed bool   `json:"include_consumed,omitempty" jsonschema:"also return consumed entries"`
}

type scratchpadReadOutput struct {
	Entries []scratchpadOutput `json:"entries"`
	Count   int                `json:"count"`
}

type scratchpadConsumeInput struct {
	ID string `json:"id" jsonschema:"the scratchpad entry id, e.g. SP-00001"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	EventCount           int            `json:"event_count"`
	EventsByType         map[string]int `json:"events_by_type"`
	Sessions             int            `json:"sessions"`
	SuggestionsShown     int            `json:"suggestions_shown"`
	SuggestionsApproved  int            `json:"suggestions_approved"`
	SuggestionsDismissed int            `json:"suggestions_dismissed"`
	OldestEvent          string         `json:"oldest_event,omitempty"`
	NewestEvent          string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_snapshot",
		Description: "Assemble the current AX snapshot: staleness counts, entities needing review, ranked suggestions, quiet signals and unconsumed scratchpad entries.",
	}, s.handleGetSnapshot)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "suggestion_feedback",
		Description: "Record that the user approved or dismissed a suggestion. Feedback shapes future confidence scores.",
	}, s.handleFeedback)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "scratchpad_write",
		Description: "Append an observation, pending action or learned preference to the agent scratchpad.",
	}, s.handleScratchpadWrite)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "scratchpad_read",
		Description: "Read scratchpad entries, newest last, optionally filtered by scope and kind.",
	}, s.handleScratchpadRead)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "scratchpad_consume",
		Description: "Mark a scratchpad entry as consumed. Consuming twice is a no-op.",
	}, s.handleScratchpadConsume)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get activity metrics from the event log: sessions, suggestion approvals and dismissals, events by type.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate alerts against a fresh snapshot (critical entities, critical backlog, ignored suggestion types).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleGetSnapshot(_ context.Context, _ *gomcp.CallToolRequest, input getSnapshotInput) (*gomcp.CallToolResult, snapshotOutput, error) {
	graph, err := s.engine.Snapshot()
	if err != nil {
		return errorResult(fmt.Sprintf("assembling snapshot: %s", err)), emptySnapshotOutput(), nil
	}

	out := emptySnapshotOutput()
	out.GeneratedAt = graph.GeneratedAt.Format(time.RFC3339)
	for level, n := range graph.Staleness.Counts {
		out.Counts[string(level)] = n
	}
	for _, e := range graph.Staleness.Entries {
		if !e.Result.StaleLevel.AtLeast(models.LevelStale) {
			continue
		}
		out.NeedsReview = append(out.NeedsReview, stalenessOutput{
			Entity:     e.Entity.String(),
			Title:      e.Title,
			AgeInDays:  e.Result.AgeInDays,
			StaleLevel: string(e.Result.StaleLevel),
			Reason:     e.Result.Reason(),
		})
	}
	for _, sg := range graph.Suggestions {
		if input.SurfacedOnly && !sg.ShouldSurface {
			continue
		}
		out.Suggestions = append(out.Suggestions, suggestionToOutput(sg))
	}
	out.Quiet = quietOutput{
		InFlowState:         graph.Quiet.InFlowState,
		WithinQuietHours:    graph.Quiet.WithinQuietHours,
		RecentBurstActivity: graph.Quiet.RecentBurstActivity,
		SessionDurationMin:  graph.Quiet.SessionDurationMin,
	}
	out.IgnoredTypes = append(out.IgnoredTypes, graph.Patterns.IgnoredList()...)
	for _, e := range graph.Scratchpad {
		out.Scratchpad = append(out.Scratchpad, scratchpadToOutput(e))
	}

	return nil, out, nil
}

func (s *Server) handleFeedback(_ context.Context, _ *gomcp.CallToolRequest, input feedbackInput) (*gomcp.CallToolResult, feedbackOutput, error) {
	if input.SuggestionID == "" {
		return errorResult("suggestion_id is required"), feedbackOutput{}, nil
	}

	event, err := s.engine.RecordFeedback(input.SuggestionID, models.FeedbackAction(input.Action), input.TriggerType)
	if err != nil {
		return errorResult(fmt.Sprintf("recording feedback for %s: %s", input.SuggestionID, err)), feedbackOutput{}, nil
	}

	out := feedbackOutput{
		EventID: event.ID,
		Message: fmt.Sprintf("recorded %s for %s (%s)", input.Action, input.SuggestionID, event.TriggerType()),
	}
	return nil, out, nil
}

func (s *Server) handleScratchpadWrite(_ context.Context, _ *gomcp.CallToolRequest, input scratchpadWriteInput) (*gomcp.CallToolResult, scratchpadOutput, error) {
	scope, err := models.ParseScratchpadScope(input.Scope, input.ProjectID)
	if err != nil {
		return errorResult(err.Error()), scratchpadOutput{}, nil
	}

	entry, err := s.engine.WriteScratchpad(scope, models.ScratchpadKind(input.Kind), input.Content)
	if err != nil {
		return errorResult(fmt.Sprintf("writing scratchpad: %s", err)), scratchpadOutput{}, nil
	}
	return nil, scratchpadToOutput(entry), nil
}

func (s *Server) handleScratchpadRead(_ context.Context, _ *gomcp.CallToolRequest, input scratchpadReadInput) (*gomcp.CallToolResult, scratchpadReadOutput, error) {
	query := models.ScratchpadQuery{
		Kind:            models.ScratchpadKind(input.Kind),
		IncludeConsumed: input.IncludeConsumed,
	}
	if input.Scope != "" || input.ProjectID != "" {
		scope, err := models.ParseScratchpadScope(input.Scope, input.ProjectID)
		if err != nil {
			return errorResult(err.Error()), scratchpadReadOutput{Entries: []scratchpadOutput{}}, nil
		}
		query.Scope = &scope
	}

	entries, err := s.engine.ReadScratchpad(query)
	if err != nil {
		return errorResult(fmt.Sprintf("reading scratchpad: %s", err)), scratchpadReadOutput{Entries: []scratchpadOutput{}}, nil
	}

	out := scratchpadReadOutput{
		Entries: make([]scratchpadOutput, len(entries)),
		Count:   len(entries),
	}
	for i, e := range entries {
		out.Entries[i] = scratchpadToOutput(e)
	}
	return nil, out, nil
}

func (s *Server) handleScratchpadConsume(_ context.Context, _ *gomcp.CallToolRequest, input scratchpadConsumeInput) (*gomcp.CallToolResult, scratchpadOutput, error) {
	if input.ID == "" {
		return errorResult("id is required"), scratchpadOutput{}, nil
	}

	entry, err := s.engine.ConsumeScratchpad(input.ID)
	if err != nil {
		return errorResult(fmt.Sprintf("consuming %s: %s", input.ID, err)), scratchpadOutput{}, nil
	}
	return nil, scratchpadToOutput(entry), nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := ParseSince(sinceStr, time.Now())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		EventCount:           metrics.EventCount,
		EventsByType:         metrics.EventsByType,
		Sessions:             metrics.Sessions,
		SuggestionsShown:     metrics.SuggestionsShown,
		SuggestionsApproved:  metrics.SuggestionsApproved,
		SuggestionsDismissed: metrics.SuggestionsDismissed,
	}
	if out.EventsByType == nil {
		out.EventsByType = make(map[string]int)
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available"), getAlertsOutput{Alerts: []alertOutput{}}, nil
	}

	graph, err := s.engine.Snapshot()
	if err != nil {
		return errorResult(fmt.Sprintf("assembling snapshot: %s", err)), getAlertsOutput{Alerts: []alertOutput{}}, nil
	}
	alerts := s.alertEngine.Evaluate(graph)

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func suggestionToOutput(sg models.Suggestion) suggestionOutput {
	out := suggestionOutput{
		ID:             sg.ID,
		TriggerType:    sg.TriggerType,
		Title:          sg.Title,
		ProposedAction: sg.ProposedAction,
		Entity:         sg.Entity.String(),
		Confidence:     sg.Confidence,
		Urgency:        string(sg.Urgency),
		StaleLevel:     string(sg.StaleLevel),
		ShouldSurface:  sg.ShouldSurface,
		TriggeredAt:    sg.TriggeredAt.Format(time.RFC3339),
	}
	for _, e := range sg.RelatedEntities {
		out.Related = append(out.Related, fmt.Sprintf("%s %s %s", e.From(), e.Type, e.To()))
	}
	return out
}

func scratchpadToOutput(e models.ScratchpadEntry) scratchpadOutput {
	out := scratchpadOutput{
		ID:        e.ID,
		Scope:     e.Scope.String(),
		Kind:      string(e.Kind),
		Content:   e.Content,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
	if e.ConsumedAt != nil {
		out.ConsumedAt = e.ConsumedAt.Format(time.RFC3339)
	}
	return out
}

func emptySnapshotOutput() snapshotOutput {
	return snapshotOutput{
		Counts:       make(map[string]int),
		NeedsReview:  []stalenessOutput{},
		Suggestions:  []suggestionOutput{},
		IgnoredTypes: []string{},
		Scratchpad:   []scratchpadOutput{},
	}
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{EventsByType: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a human-friendly duration like "7d", "30d" or "24h"
// into the corresponding time before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if num < 0 {
		return time.Time{}, fmt.Errorf("invalid duration %q: must not be negative", s)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
