// Package theme holds the lipgloss styles shared by the terminal surfaces.
package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps the conversation area.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BotLabelStyle and UserLabelStyle prefix each line of the conversation.
var (
	BotLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	UserLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
)

// MessageStyle renders message bodies.
var MessageStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	PaddingLeft(2)

// ButtonStyle renders a numbered inline button.
var ButtonStyle = lipgloss.NewStyle().
	Foreground(ColorMagenta).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorMagenta).
	PaddingLeft(1).
	MarginLeft(2)

// AttachmentStyle renders documents and polls.
var AttachmentStyle = lipgloss.NewStyle().
	Foreground(ColorYellow).
	PaddingLeft(2)

// ErrorStyle renders transport errors in the status bar.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// ChatTypeStyle returns the badge style for a chat kind.
func ChatTypeStyle(chatType string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch chatType {
	case "private":
		return base.Foreground(ColorBlue)
	case "group", "supergroup":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}
