package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// loomViolet is the accent color for the LOOM branding.
const loomViolet = "#8B5CF6"

// LOOM ASCII art (filled block style).
var loomArt = []string{
	"    ██╗      ██████╗  ██████╗ ███╗   ███╗",
	"    ██║     ██╔═══██╗██╔═══██╗████╗ ████║",
	"    ██║     ██║   ██║██║   ██║██╔████╔██║",
	"    ██║     ██║   ██║██║   ██║██║╚██╔╝██║",
	"    ███████╗╚██████╔╝╚██████╔╝██║ ╚═╝ ██║",
	"    ╚══════╝ ╚═════╝  ╚═════╝ ╚═╝     ╚═╝",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Media     lipgloss.Style // generated image/video notes
	Tips      lipgloss.Style
	Error     lipgloss.Style
	Prompt    lipgloss.Style
	Separator lipgloss.Style
	StatusBar lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(loomViolet)),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Media:     lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
		Tips:      lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

// RenderBanner returns the LOOM ASCII art banner as a styled string.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range loomArt {
		_, _ = b.WriteString(s.Banner.Render(line))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}

// welcomeTips are shown under the banner.
var welcomeTips = []string{
	"Tips for getting started:",
	"  • Ask for images or videos — generated media lands in your library",
	"  • /mode research|shopping|study|image switches assistant behavior",
	"  • /search, /maps, /think toggle retrieval and extended reasoning",
	"  • Use /help for all commands, Ctrl+D to exit",
}

// RenderWelcomeTips returns the styled welcome tips.
func (s Styles) RenderWelcomeTips() string {
	var b strings.Builder
	for _, tip := range welcomeTips {
		_, _ = b.WriteString(s.Tips.Render(tip))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}
