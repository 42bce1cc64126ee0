package terminal

import "github.com/charmbracelet/lipgloss"

var (
	guestStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E2E8F0")).Bold(true)
	aiStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))
	typingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B")).Italic(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#475569"))
	launcherStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func headerStyle(accent string) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(accent)).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
}
