package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("76"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

func levelColor(level models.LogLevel) lipgloss.Style {
	switch level {
	case models.LevelThinking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	case models.LevelAction:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	case models.LevelOutput:
		return successStyle
	case models.LevelError:
		return errorStyle
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	}
}
