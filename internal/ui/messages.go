// Package ui provides the Bubble Tea TUI for murmur. The model never
// mutates timeline state directly: keystrokes become engine commands, and
// a periodic tick drives the synchronization loop and re-renders from its
// diff.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// syncInterval paces the synchronization loop. Each tick drains queued
// commands, fetch results, and stream events.
const syncInterval = 100 * time.Millisecond

// noticeTTL is how long a transient notice stays on the status bar.
const noticeTTL = 4 * time.Second

// SyncTick drives one engine tick.
type SyncTick struct{}

// NoticeExpired clears aged notices from the status bar.
type NoticeExpired struct{}

func scheduleSync() tea.Cmd {
	return tea.Tick(syncInterval, func(time.Time) tea.Msg {
		return SyncTick{}
	})
}

func scheduleNoticeExpiry() tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return NoticeExpired{}
	})
}
