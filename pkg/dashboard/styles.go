package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	runningBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("34"))

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("76"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

var levelStyles = map[models.LogLevel]lipgloss.Style{
	models.LevelInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	models.LevelThinking: lipgloss.NewStyle().Foreground(lipgloss.Color("99")),
	models.LevelAction:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	models.LevelOutput:   lipgloss.NewStyle().Foreground(lipgloss.Color("76")),
	models.LevelError:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

func levelStyle(level models.LogLevel) lipgloss.Style {
	if s, ok := levelStyles[level]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
