package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/ax-engine/internal/observability"
	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// Dashboard panel indices.
const (
	panelStaleness = iota
	panelSuggestions
	panelActivity
	panelAlerts
	panelCount
)

// reviewRows caps the entities listed in the staleness panel.
const reviewRows = 8

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	counts      map[models.StaleLevel]int
	review      []reviewRow
	suggestions []suggestionRow
	quiet       []string
	activity    *activitySnapshot
	alerts      []alertRow
	generatedAt time.Time

	// State.
	loading bool
	err     error
}

type reviewRow struct {
	level  models.StaleLevel
	entity string
	title  string
	age    int
}

type suggestionRow struct {
	confidence float64
	urgency    models.Urgency
	title      string
	action     string
}

type activitySnapshot struct {
	events    int
	sessions  int
	shown     int
	approved  int
	dismissed int
}

type alertRow struct {
	severity string
	message  string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	graph    *models.AXStateGraph
	activity *activitySnapshot
	alerts   []alertRow
	err      error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	levelCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	levelStale    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	levelAging    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	levelFresh    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	quietStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Italic(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelStaleness,
		loading:     true,
		counts:      make(map[models.StaleLevel]int),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.applyGraph(msg.graph)
		m.activity = msg.activity
		m.alerts = msg.alerts
		return m, nil
	}

	return m, nil
}

func (m *dashboardModel) applyGraph(graph *models.AXStateGraph) {
	m.counts = make(map[models.StaleLevel]int)
	m.review = nil
	m.suggestions = nil
	m.quiet = nil
	if graph == nil {
		return
	}

	m.generatedAt = graph.GeneratedAt
	for level, n := range graph.Staleness.Counts {
		m.counts[level] = n
	}
	for _, e := range graph.Staleness.AtLeast(models.LevelAging) {
		m.review = append(m.review, reviewRow{
			level:  e.Result.StaleLevel,
			entity: e.Entity.String(),
			title:  e.Title,
			age:    e.Result.AgeInDays,
		})
	}
	sort.SliceStable(m.review, func(i, j int) bool {
		return m.review[i].level.Rank() > m.review[j].level.Rank()
	})

	for _, s := range graph.Surfaced() {
		m.suggestions = append(m.suggestions, suggestionRow{
			confidence: s.Confidence,
			urgency:    s.Urgency,
			title:      s.Title,
			action:     s.ProposedAction,
		})
	}

	if graph.Quiet.WithinQuietHours {
		m.quiet = append(m.quiet, "quiet hours")
	}
	if graph.Quiet.InFlowState {
		m.quiet = append(m.quiet, "in flow")
	}
	if graph.Quiet.RecentBurstActivity {
		m.quiet = append(m.quiet, "burst activity")
	}
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" AX Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	panels := []string{
		m.renderStalenessPanel(),
		m.renderSuggestionsPanel(),
		m.renderActivityPanel(),
		m.renderAlertsPanel(),
	}

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 100 {
		// Two by two grid.
		colWidth := availableWidth / 2
		for i := range panels {
			panels[i] = m.applyPanelStyle(i, panels[i], colWidth-4)
		}
		top := lipgloss.JoinHorizontal(lipgloss.Top, panels[panelStaleness], panels[panelSuggestions])
		bottom := lipgloss.JoinHorizontal(lipgloss.Top, panels[panelActivity], panels[panelAlerts])
		body = lipgloss.JoinVertical(lipgloss.Left, top, bottom)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		for i := range panels {
			panels[i] = m.applyPanelStyle(i, panels[i], panelWidth)
		}
		body = lipgloss.JoinVertical(lipgloss.Left, panels...)
	}

	status := ""
	if len(m.quiet) > 0 {
		status = "\n" + quietStyle.Render("  holding suggestions: "+strings.Join(m.quiet, ", "))
	}

	return fmt.Sprintf("%s  %s%s\n\n%s\n\n%s", title,
		helpStyle.Render(m.generatedAt.Format("2006-01-02 15:04")), status, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderStalenessPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Staleness"))
	b.WriteString("\n")

	total := 0
	for _, level := range models.StaleLevels {
		total += m.counts[level]
	}
	if total == 0 {
		b.WriteString("  No entities found.")
		return b.String()
	}

	for i := len(models.StaleLevels) - 1; i >= 0; i-- {
		level := models.StaleLevels[i]
		label := fmt.Sprintf("  %-10s %d", level, m.counts[level])
		b.WriteString(styleForLevel(level).Render(label))
		b.WriteString("\n")
	}

	if len(m.review) > 0 {
		b.WriteString("\n")
		for i, r := range m.review {
			if i == reviewRows {
				b.WriteString(fmt.Sprintf("  ... %d more\n", len(m.review)-reviewRows))
				break
			}
			b.WriteString(fmt.Sprintf("  %s %s (%dd)\n",
				styleForLevel(r.level).Render(fmt.Sprintf("%-8s", r.level)), r.title, r.age))
		}
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d", total))
	return b.String()
}

func (m dashboardModel) renderSuggestionsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Suggestions"))
	b.WriteString("\n")

	if len(m.suggestions) == 0 {
		b.WriteString("  Nothing to surface.")
		return b.String()
	}

	for _, s := range m.suggestions {
		b.WriteString(fmt.Sprintf("  %.2f %s\n", s.confidence, s.title))
		b.WriteString(helpStyle.Render(fmt.Sprintf("       %s", s.action)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m dashboardModel) renderActivityPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Activity (7d)"))
	b.WriteString("\n")

	if m.activity == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	a := m.activity
	lines := []struct {
		label string
		value int
	}{
		{"Events", a.events},
		{"Sessions", a.sessions},
		{"Shown", a.shown},
		{"Approved", a.approved},
		{"Dismissed", a.dismissed},
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForLevel(level models.StaleLevel) lipgloss.Style {
	switch level {
	case models.LevelCritical:
		return levelCritical
	case models.LevelStale:
		return levelStale
	case models.LevelAging:
		return levelAging
	case models.LevelFresh:
		return levelFresh
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch observability.AlertSeverity(strings.ToLower(severity)) {
	case observability.SeverityHigh:
		return severityHigh
	case observability.SeverityMedium:
		return severityMedium
	case observability.SeverityLow:
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	var result dataLoadedMsg

	if Engine != nil {
		graph, err := Engine.Snapshot()
		if err != nil {
			result.err = fmt.Errorf("assembling snapshot: %w", err)
			return result
		}
		result.graph = graph

		// Alerts come back ordered by severity.
		if AlertEngine != nil {
			for _, a := range AlertEngine.Evaluate(graph) {
				result.alerts = append(result.alerts, alertRow{
					severity: string(a.Severity),
					message:  a.Message,
				})
			}
		}
	}

	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.activity = &activitySnapshot{
			events:    metrics.EventCount,
			sessions:  metrics.Sessions,
			shown:     metrics.SuggestionsShown,
			approved:  metrics.SuggestionsApproved,
			dismissed: metrics.SuggestionsDismissed,
		}
	}

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for staleness, suggestions and alerts",
	Long: `Launch an interactive terminal dashboard showing entity staleness,
surfaced suggestions, recent activity and alerts.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
