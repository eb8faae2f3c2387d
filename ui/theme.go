package ui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha palette.
var (
	ctpBase     = lipgloss.Color("#1e1e2e")
	ctpSurface0 = lipgloss.Color("#313244")
	ctpOverlay0 = lipgloss.Color("#6c7086")
	ctpSubtext0 = lipgloss.Color("#a6adc8")
	ctpText     = lipgloss.Color("#cdd6f4")
	ctpBlue     = lipgloss.Color("#89b4fa")
	ctpGreen    = lipgloss.Color("#a6e3a1")
	ctpRed      = lipgloss.Color("#f38ba8")
	ctpYellow   = lipgloss.Color("#f9e2af")
	ctpTeal     = lipgloss.Color("#94e2d5")
	ctpPeach    = lipgloss.Color("#fab387")
	ctpMauve    = lipgloss.Color("#cba6f7")
	ctpLavender = lipgloss.Color("#b4befe")
)

var (
	badgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(ctpBase)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ctpLavender)

	mutedStyle = lipgloss.NewStyle().Foreground(ctpOverlay0)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ctpSurface0).
			Foreground(ctpText).
			Padding(0, 1)

	errorStyle   = lipgloss.NewStyle().Foreground(ctpRed).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(ctpGreen).Bold(true)
	linkStyle    = lipgloss.NewStyle().Foreground(ctpBlue).Underline(true)
	labelStyle   = lipgloss.NewStyle().Foreground(ctpSubtext0)
)

var platformColors = map[string]lipgloss.Color{
	"telegram": ctpBlue,
	"slack":    ctpMauve,
	"discord":  ctpLavender,
	"whatsapp": ctpGreen,
}
