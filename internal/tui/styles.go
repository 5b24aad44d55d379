package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	colorWhite     = lipgloss.Color("#FFFFFF")
	colorLightGray = lipgloss.Color("#CCCCCC")
	colorGray      = lipgloss.Color("#888888")
	colorDarkGray  = lipgloss.Color("#444444")
	colorGreen     = lipgloss.Color("#00FF00")
	colorYellow    = lipgloss.Color("#FFFF00")
	colorRed       = lipgloss.Color("#FF0000")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sessionItemStyle = lipgloss.NewStyle().
				Foreground(colorLightGray).
				PaddingLeft(2)

	sessionSelectedStyle = lipgloss.NewStyle().
				Foreground(colorWhite).
				Bold(true).
				PaddingLeft(1)

	systemLineStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)

	senderStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true)

	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(colorGray)

	statusOnlineStyle = lipgloss.NewStyle().
				Foreground(colorGreen)

	statusWarnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDarkGray).
			Italic(true)
)
