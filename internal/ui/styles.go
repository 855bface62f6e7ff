package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarn      = lipgloss.Color("214") // Orange
	colorDanger    = lipgloss.Color("203") // Red
)

// ActiveTab style for the focused timeline tab.
var ActiveTab = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// InactiveTab style for unfocused timeline tabs.
var InactiveTab = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(0, 1)

// SelectedEntry style for the highlighted entry.
var SelectedEntry = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// NormalEntry style for unselected entries.
var NormalEntry = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 1)

// AuthorName style for the entry author line.
var AuthorName = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)

// BoostMarker style for the "boosted by" prefix line.
var BoostMarker = lipgloss.NewStyle().
	Foreground(colorSuccess)

// EntryMeta style for counts and timestamps.
var EntryMeta = lipgloss.NewStyle().
	Foreground(colorMuted)

// SpoilerText style for content warnings.
var SpoilerText = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorWarn)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in the status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StreamLive style for a connected stream badge.
var StreamLive = lipgloss.NewStyle().
	Foreground(colorSuccess)

// StreamDegraded style for a reconnecting stream badge.
var StreamDegraded = lipgloss.NewStyle().
	Foreground(colorWarn)

// StreamDead style for a disabled stream badge.
var StreamDead = lipgloss.NewStyle().
	Foreground(colorDanger)

// NoticeInfoStyle style for transient informational messages.
var NoticeInfoStyle = lipgloss.NewStyle().
	Foreground(colorSuccess)

// NoticeWarnStyle style for warnings.
var NoticeWarnStyle = lipgloss.NewStyle().
	Foreground(colorWarn)

// NoticeErrorStyle style for errors.
var NoticeErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorDanger)

// PromptLabel style for input prompts.
var PromptLabel = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorPrimary)
