// Package tui renders a live view of the session tree from the
// orchestrator event stream.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/navihq/navi/internal/orchestrator"
	"github.com/navihq/navi/pkg/models"
)

// EventMsg delivers one orchestrator event into the model.
type EventMsg orchestrator.Event

// DisconnectedMsg reports that the event stream ended.
type DisconnectedMsg struct {
	Err error
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	roleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	workingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	waitingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	blockedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	reviewStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	deliverStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	eventStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// Model is the bubbletea model for the monitor.
type Model struct {
	spinner   spinner.Model
	sessions  map[string]*models.Session
	order     []string
	lastEvent string
	width     int
	done      bool
	err       error
}

// NewModel creates an empty monitor model.
func NewModel() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = workingStyle
	return Model{
		spinner:  sp,
		sessions: make(map[string]*models.Session),
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key, resize, spinner, and event messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case EventMsg:
		m.apply(orchestrator.Event(msg))
	case DisconnectedMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

// apply folds one event into the session map.
func (m *Model) apply(ev orchestrator.Event) {
	m.lastEvent = fmt.Sprintf("%s %s", ev.Type, shortID(ev.SessionID))

	switch ev.Type {
	case orchestrator.EventSpawned:
		if ev.Session != nil {
			if _, seen := m.sessions[ev.Session.ID]; !seen {
				m.order = append(m.order, ev.Session.ID)
			}
			m.sessions[ev.Session.ID] = ev.Session
		}
	case orchestrator.EventStatusChanged, orchestrator.EventDelivered:
		if s, ok := m.sessions[ev.SessionID]; ok {
			s.AgentStatus = ev.Status
			if ev.Deliverable != nil {
				s.Deliverable = ev.Deliverable
			}
		}
	case orchestrator.EventEscalated:
		if s, ok := m.sessions[ev.SessionID]; ok {
			s.AgentStatus = models.StatusBlocked
			s.Escalation = ev.Escalation
		}
	case orchestrator.EventEscalationResolved:
		if s, ok := m.sessions[ev.SessionID]; ok {
			s.Escalation = nil
		}
	case orchestrator.EventArchived:
		m.remove(ev.SessionID)
	}
}

// remove drops a session and every descendant still on screen.
func (m *Model) remove(id string) {
	doomed := map[string]bool{id: true}
	// Children appear after parents in spawn order, one pass suffices.
	for _, sid := range m.order {
		s := m.sessions[sid]
		if s != nil && doomed[s.ParentID] {
			doomed[sid] = true
		}
	}

	var keep []string
	for _, sid := range m.order {
		if doomed[sid] {
			delete(m.sessions, sid)
			continue
		}
		keep = append(keep, sid)
	}
	m.order = keep
}

// View renders the tree grouped by root, indented by depth.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("navi session monitor"))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(roleStyle.Render("  no active sessions"))
		b.WriteString("\n")
	} else {
		for _, id := range m.treeOrder() {
			s := m.sessions[id]
			indent := strings.Repeat("  ", s.Depth)
			line := fmt.Sprintf("%s%s %s %s",
				indent,
				m.statusGlyph(s.AgentStatus),
				titleStyle.Render(s.Title),
				roleStyle.Render("("+s.Role+")"),
			)
			if s.Escalation != nil {
				line += " " + blockedStyle.Render("! "+s.Escalation.Summary)
			}
			if s.Deliverable != nil {
				line += " " + deliverStyle.Render("✓ "+s.Deliverable.Summary)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.lastEvent != "" {
		b.WriteString(eventStyle.Render("last: " + m.lastEvent))
		b.WriteString("\n")
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf("%d session(s) · q to quit", len(m.order))))
	b.WriteString("\n")
	return b.String()
}

// treeOrder returns session ids grouped by root, parents before
// children within each tree.
func (m Model) treeOrder() []string {
	byRoot := make(map[string][]string)
	var roots []string
	for _, id := range m.order {
		s := m.sessions[id]
		if _, seen := byRoot[s.RootID]; !seen {
			roots = append(roots, s.RootID)
		}
		byRoot[s.RootID] = append(byRoot[s.RootID], id)
	}
	sort.Strings(roots)

	var out []string
	for _, root := range roots {
		out = append(out, byRoot[root]...)
	}
	return out
}

func (m Model) statusGlyph(status models.AgentStatus) string {
	switch status {
	case models.StatusWorking:
		return m.spinner.View()
	case models.StatusWaiting:
		return waitingStyle.Render("…")
	case models.StatusBlocked:
		return blockedStyle.Render("!")
	case models.StatusPendingReview:
		return reviewStyle.Render("?")
	case models.StatusDelivered:
		return deliverStyle.Render("✓")
	default:
		return " "
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
