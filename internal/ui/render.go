package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mkordell/murmur/internal/engine"
	"github.com/mkordell/murmur/internal/htmltext"
	"github.com/mkordell/murmur/internal/timeline"
)

// View renders the whole screen: tab row, the focused timeline, and the
// status bar. Entry content is re-read from the engine every frame.
func (a App) View() string {
	if !a.ready {
		return "loading..."
	}

	switch a.mode {
	case modeCompose:
		return a.viewCompose()
	case modePrompt:
		return a.viewWithPrompt()
	}
	return a.viewTimeline()
}

func (a App) viewTimeline() string {
	var b strings.Builder
	b.WriteString(a.renderTabs())
	b.WriteString("\n")
	b.WriteString(a.renderEntries())
	b.WriteString("\n")
	b.WriteString(a.renderStatusBar())
	return b.String()
}

func (a App) viewCompose() string {
	label := "Compose"
	if a.replyToID != "" {
		label = "Reply"
	}
	var b strings.Builder
	b.WriteString(PromptLabel.Render(label) + "  " +
		EntryMeta.Render("(ctrl+d to post, esc to cancel)"))
	b.WriteString("\n\n")
	b.WriteString(a.composer.View())
	return b.String()
}

func (a App) viewWithPrompt() string {
	label := "Search"
	if a.prompt == promptHashtag {
		label = "Hashtag"
	}
	var b strings.Builder
	b.WriteString(a.renderTabs())
	b.WriteString("\n")
	b.WriteString(a.renderEntries())
	b.WriteString("\n")
	b.WriteString(PromptLabel.Render(label+":") + " " + a.input.View())
	return b.String()
}

func (a App) renderTabs() string {
	kinds := a.eng.OpenKinds()
	parts := make([]string, 0, len(kinds))
	for i, kind := range kinds {
		label := kind.DisplayName()
		if t, ok := a.eng.Timeline(kind); ok {
			label += streamBadge(t)
		}
		if i == a.focus {
			parts = append(parts, ActiveTab.Render(label))
		} else {
			parts = append(parts, InactiveTab.Render(label))
		}
	}
	account := a.eng.ActiveAccount()
	row := strings.Join(parts, " ")
	if account.Acct != "" {
		row += "  " + EntryMeta.Render(account.Acct)
	}
	return row
}

// streamBadge marks the live/degraded/dead state of a timeline's stream.
func streamBadge(t *timeline.Timeline) string {
	switch t.Stream.State {
	case timeline.StreamConnected:
		return StreamLive.Render(" ●")
	case timeline.StreamBackoff, timeline.StreamConnecting:
		return StreamDegraded.Render(" ◌")
	case timeline.StreamDisabled:
		return StreamDead.Render(" ✕")
	}
	return ""
}

func (a App) renderEntries() string {
	kind, ok := a.focusedKind()
	if !ok {
		return EntryMeta.Render("no timelines open")
	}
	t, ok := a.eng.Timeline(kind)
	if !ok {
		return ""
	}

	entries := t.Entries()
	if a.shouldReverse(kind) {
		reverse(entries)
	}
	if len(entries) == 0 {
		if t.Loading {
			return a.spin.View() + " fetching..."
		}
		return EntryMeta.Render("nothing here yet")
	}

	cursor := a.cursors[kind]
	if cursor >= len(entries) {
		cursor = len(entries) - 1
	}

	// Window the list around the cursor.
	rows := a.height - 4
	if rows < 3 {
		rows = 3
	}
	perEntry := 3
	visible := rows / perEntry
	if visible < 1 {
		visible = 1
	}
	start := cursor - visible/2
	if start < 0 {
		start = 0
	}
	end := start + visible
	if end > len(entries) {
		end = len(entries)
	}

	var b strings.Builder
	if t.Stale {
		b.WriteString(EntryMeta.Render("(cached)") + "\n")
	}
	for i := start; i < end; i++ {
		b.WriteString(a.renderEntry(entries[i], i == cursor))
		b.WriteString("\n")
	}
	if t.Loading {
		b.WriteString(a.spin.View() + " loading\n")
	} else if t.EndReached && kind.Paged() {
		b.WriteString(EntryMeta.Render("— end —") + "\n")
	}
	return b.String()
}

func (a App) renderEntry(entry timeline.Entry, selected bool) string {
	var lines []string

	header := AuthorName.Render(entry.Author.Name) + " " +
		EntryMeta.Render("@"+entry.Author.Handle+" · "+entry.CreatedAt.Format("Jan 2 15:04"))
	if entry.BoostedBy != nil {
		lines = append(lines, BoostMarker.Render("↻ "+entry.BoostedBy.Name+" boosted"))
	}
	if entry.NotifType != "" {
		header = EntryMeta.Render("["+entry.NotifType+"] ") + header
	}
	lines = append(lines, header)

	if entry.SpoilerText != "" {
		lines = append(lines, SpoilerText.Render("CW: "+entry.SpoilerText))
	}

	content := htmltext.Strip(entry.Content)
	content = firstLines(content, 2)
	if content != "" {
		lines = append(lines, content)
	}

	for _, m := range entry.Media {
		lines = append(lines, EntryMeta.Render("[media] "+m))
	}
	if entry.Poll != nil {
		lines = append(lines, a.renderPoll(entry.Poll))
	}

	meta := fmt.Sprintf("↩ %d  ↻ %d  ★ %d", entry.Replies, entry.Boosts, entry.Favorites)
	var marks []string
	if entry.Favorited {
		marks = append(marks, "★")
	}
	if entry.Boosted {
		marks = append(marks, "↻")
	}
	if entry.Bookmarked {
		marks = append(marks, "⚑")
	}
	if len(marks) > 0 {
		meta += "  " + StreamLive.Render(strings.Join(marks, " "))
	}
	lines = append(lines, EntryMeta.Render(meta))

	block := strings.Join(lines, "\n")
	if selected {
		return SelectedEntry.Render(block)
	}
	return NormalEntry.Render(block)
}

func (a App) renderPoll(poll *timeline.PollSummary) string {
	var parts []string
	for _, opt := range poll.Options {
		parts = append(parts, fmt.Sprintf("%s (%d)", opt.Title, opt.Votes))
	}
	state := "open"
	if poll.Expired {
		state = "closed"
	}
	if poll.Voted {
		state += ", voted"
	}
	return EntryMeta.Render(fmt.Sprintf("poll [%s]: %s", state, strings.Join(parts, " | ")))
}

func (a App) renderStatusBar() string {
	hints := []string{
		StatusBarKey.Render("j/k") + " move",
		StatusBarKey.Render("tab") + " timeline",
		StatusBarKey.Render("f") + " fav",
		StatusBarKey.Render("b") + " boost",
		StatusBarKey.Render("c") + " compose",
		StatusBarKey.Render("enter") + " thread",
		StatusBarKey.Render("/") + " search",
		StatusBarKey.Render("q") + " quit",
	}
	bar := strings.Join(hints, "  ")

	if len(a.notices) > 0 {
		last := a.notices[len(a.notices)-1]
		var styled string
		switch last.Level {
		case engine.NoticeError:
			styled = NoticeErrorStyle.Render(last.Text)
		case engine.NoticeWarn:
			styled = NoticeWarnStyle.Render(last.Text)
		default:
			styled = NoticeInfoStyle.Render(last.Text)
		}
		bar = styled + "  " + bar
	}
	return StatusBar.Width(max(a.width, lipgloss.Width(bar))).Render(bar)
}

// shouldReverse flips display order for threads (conversation order) and
// when the user prefers oldest first.
func (a App) shouldReverse(kind timeline.Kind) bool {
	if kind.Category == timeline.Thread {
		return true
	}
	return a.eng.OldestFirst()
}

func reverse(entries []timeline.Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, n)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == n {
			break
		}
	}
	out := strings.Join(kept, " ")
	if len(lines) > n && len(kept) == n {
		out += " …"
	}
	return out
}
