package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy  = lipgloss.Color("#1A2A4A")
	ColorWhite = lipgloss.Color("#FFFFFF")
	ColorGray  = lipgloss.Color("244")
	ColorYes   = lipgloss.Color("#2E9E44")
	ColorNo    = lipgloss.Color("#C8372D")
	ColorWarn  = lipgloss.Color("#FFAA00")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorNavy).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(ColorGray)
	valueStyle = lipgloss.NewStyle().Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(ColorGray)
	errorStyle = lipgloss.NewStyle().Foreground(ColorNo)
	okStyle    = lipgloss.NewStyle().Foreground(ColorYes)

	yesBarStyle = lipgloss.NewStyle().Foreground(ColorYes).Background(ColorYes)
	noBarStyle  = lipgloss.NewStyle().Foreground(ColorNo).Background(ColorNo)

	modeStyles = map[string]lipgloss.Style{
		"polling": lipgloss.NewStyle().Bold(true).Foreground(ColorWhite).Background(ColorYes).Padding(0, 1),
		"config":  lipgloss.NewStyle().Bold(true).Foreground(ColorNavy).Background(ColorWarn).Padding(0, 1),
	}
)
