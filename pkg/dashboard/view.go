package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

// View renders the dashboard
func (m Model) View() string {
	sections := []string{
		titleStyle.Render("AI Marketing Team"),
		m.statusView(),
		m.teamsView(),
		headerStyle.Render("Log"),
		m.logView(),
		headerStyle.Render("Outputs"),
		m.outputsView(),
		m.preview.View(),
		m.input.View(),
	}
	if m.notice != "" {
		style := noticeStyle
		if m.noticeErr {
			style = errorStyle
		}
		sections = append(sections, style.Render(m.notice))
	}
	sections = append(sections, helpStyle.Render(m.help()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) help() string {
	if m.input.Focused() {
		return "enter: start run  esc: leave input  tab: next output  ctrl+c: quit"
	}
	return "enter: start  c: clear  tab/shift+tab: outputs  /: edit request  ↑/↓: scroll  q: quit"
}

func (m Model) statusView() string {
	var b strings.Builder
	if m.running || m.status.Active() {
		agent := m.status.Agent()
		if agent == "" {
			agent = "between agents"
		}
		fmt.Fprintf(&b, "Running: %s\n", activeStyle.Render(agent))
		fmt.Fprintf(&b, "Status:  %s", m.status.CurrentStatus)
		if m.status.StartedAt != nil {
			fmt.Fprintf(&b, "\nElapsed: %s", formatDuration(time.Since(*m.status.StartedAt)))
		}
		if !m.running {
			b.WriteString("\n" + failedStyle.Render("no run in progress; the last run stopped here"))
		}
		return runningBoxStyle.Render(b.String())
	}
	b.WriteString(doneStyle.Render("Idle"))
	if !m.status.LastUpdate.IsZero() {
		fmt.Fprintf(&b, "\nLast update: %s", m.status.LastUpdate.Local().Format("2006-01-02 15:04:05"))
	}
	return boxStyle.Render(b.String())
}

func (m Model) teamsView() string {
	if m.agents == nil {
		return ""
	}
	columns := make([]string, 0)
	for _, team := range m.agents.Names() {
		var b strings.Builder
		b.WriteString(headerStyle.Render(team))
		for _, agent := range m.agents.Agents(team) {
			state := m.agentStateOf(agent.Name)
			b.WriteString("\n" + stateMarker(state) + " " + agent.Name)
		}
		columns = append(columns, boxStyle.Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

func stateMarker(s agentState) string {
	switch s {
	case stateActive:
		return activeStyle.Render("▶")
	case stateDone:
		return doneStyle.Render("✔")
	case stateFailed:
		return failedStyle.Render("✘")
	default:
		return pendingStyle.Render("·")
	}
}

func (m Model) logView() string {
	if len(m.entries) == 0 {
		return pendingStyle.Render("(no log entries)")
	}
	lines := make([]string, 0, len(m.entries))
	width := m.width - 40
	if width < 20 {
		width = 20
	}
	for _, e := range m.entries {
		lines = append(lines, formatEntry(e, width))
	}
	return strings.Join(lines, "\n")
}

func formatEntry(e models.LogEntry, width int) string {
	return fmt.Sprintf("%s %s %s %s",
		timestampStyle.Render(e.Timestamp.Local().Format("15:04:05")),
		levelStyle(e.Level).Render(fmt.Sprintf("%-8s", e.Level)),
		fmt.Sprintf("%-20s", truncate(e.AgentName, 20)),
		truncate(strings.ReplaceAll(e.Message, "\n", " "), width))
}

func (m Model) outputsView() string {
	if len(m.outputs) == 0 {
		return pendingStyle.Render("(no outputs yet)")
	}
	items := make([]string, 0, len(m.outputs))
	for i, name := range m.outputs {
		if i == m.selected {
			items = append(items, selectedStyle.Render(" "+name+" "))
			continue
		}
		items = append(items, " "+name+" ")
	}
	return strings.Join(items, " ")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
