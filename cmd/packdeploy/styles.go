// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Palette tuned for dark terminal backgrounds.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6")
	ColorVerbose   = lipgloss.Color("#9CA3AF")
)

var (
	// TitleStyle heads a command's output, e.g. "Pack Validation".
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	SubtitleStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	SuccessStyle  = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	WarningStyle  = lipgloss.NewStyle().Foreground(ColorWarning)
	CmdStyle      = lipgloss.NewStyle().Foreground(ColorHighlight)
	// VerboseStyle dims supplementary detail such as regenerated UUIDs.
	VerboseStyle = lipgloss.NewStyle().Foreground(ColorVerbose)

	pathStyle  = lipgloss.NewStyle().Foreground(ColorHighlight)
	stageStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginTop(1)
)

// Verdict icons prefixed to line-oriented output.
var (
	successIcon = SuccessStyle.Render("✓")
	errorIcon   = ErrorStyle.Render("✗")
	warningIcon = WarningStyle.Render("⚠")
	infoIcon    = SubtitleStyle.Render("•")
)
