package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mkordell/murmur/internal/engine"
	"github.com/mkordell/murmur/internal/mastodon"
	"github.com/mkordell/murmur/internal/timeline"
)

type mode int

const (
	modeTimeline mode = iota
	modeCompose
	modePrompt
)

// promptKind says what a one-line prompt is collecting.
type promptKind int

const (
	promptSearch promptKind = iota
	promptHashtag
)

// App is the root Bubble Tea model. It owns presentation state only; all
// timeline state lives in the engine and is read fresh on every render.
type App struct {
	eng *engine.Engine

	focus        int                   // index into open timelines
	pendingFocus *timeline.Kind        // focus target still queued in the engine
	cursors      map[timeline.Kind]int // per-timeline selection
	notices      []engine.Notice

	mode       mode
	prompt     promptKind
	input      textinput.Model
	composer   textarea.Model
	replyToID  string
	spin       spinner.Model

	width  int
	height int
	ready  bool
}

// NewApp builds the model around a started engine.
func NewApp(eng *engine.Engine) App {
	input := textinput.New()
	input.CharLimit = 200

	composer := textarea.New()
	composer.CharLimit = 500
	composer.Placeholder = "What's on your mind?"

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return App{
		eng:      eng,
		cursors:  make(map[timeline.Kind]int),
		input:    input,
		composer: composer,
		spin:     spin,
	}
}

// Init starts the sync tick.
func (a App) Init() tea.Cmd {
	return tea.Batch(scheduleSync(), a.spin.Tick)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.composer.SetWidth(msg.Width - 4)
		a.ready = true
		return a, nil

	case SyncTick:
		diff := a.eng.Tick()
		var cmds []tea.Cmd
		cmds = append(cmds, scheduleSync())
		if len(diff.Notices) > 0 {
			a.notices = append(a.notices, diff.Notices...)
			cmds = append(cmds, scheduleNoticeExpiry())
		}
		a.clampCursors()
		a.applyPendingFocus()
		return a, tea.Batch(cmds...)

	case NoticeExpired:
		a.notices = nil
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.mode {
	case modeCompose:
		return a.handleComposeKey(msg)
	case modePrompt:
		return a.handlePromptKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		a.eng.Shutdown()
		return a, tea.Quit

	case "tab", "right":
		if n := len(a.eng.OpenKinds()); n > 0 {
			a.focus = (a.focus + 1) % n
		}
	case "shift+tab", "left":
		if n := len(a.eng.OpenKinds()); n > 0 {
			a.focus = (a.focus - 1 + n) % n
		}

	case "j", "down":
		a.moveCursor(1)
	case "k", "up":
		a.moveCursor(-1)
	case "g":
		if kind, ok := a.focusedKind(); ok {
			a.cursors[kind] = 0
		}
	case "G":
		if kind, ok := a.focusedKind(); ok {
			if t, found := a.eng.Timeline(kind); found && t.Len() > 0 {
				a.cursors[kind] = t.Len() - 1
			}
		}

	case "r":
		if kind, ok := a.focusedKind(); ok {
			a.submit(engine.Refresh{Kind: kind})
		}
	case "n":
		if kind, ok := a.focusedKind(); ok {
			a.submit(engine.LoadMore{Kind: kind})
		}
	case "x":
		if kind, ok := a.focusedKind(); ok {
			a.submit(engine.CloseTimeline{Kind: kind})
			if a.focus > 0 {
				a.focus--
			}
		}

	case "f":
		if entry, ok := a.selectedEntry(); ok {
			a.submit(engine.ToggleFavorite{EntryID: entry.ID})
		}
	case "b":
		if entry, ok := a.selectedEntry(); ok {
			a.submit(engine.ToggleBoost{EntryID: entry.ID})
		}
	case "w":
		if entry, ok := a.selectedEntry(); ok {
			a.submit(engine.ToggleBookmark{EntryID: entry.ID})
		}
	case "D":
		if entry, ok := a.selectedEntry(); ok {
			a.submit(engine.DeleteEntry{EntryID: entry.ID})
		}

	case "enter":
		if entry, ok := a.selectedEntry(); ok {
			target := entry.ID
			if entry.BoostOfID != "" {
				target = entry.BoostOfID
			}
			a.submit(engine.OpenTimeline{Kind: timeline.Kind{Category: timeline.Thread, Param: target}})
			a.focusKind(timeline.Kind{Category: timeline.Thread, Param: target})
		}

	case "c":
		a.mode = modeCompose
		a.replyToID = ""
		a.composer.CharLimit = a.eng.MaxPostChars()
		a.composer.Reset()
		return a, a.composer.Focus()
	case "R":
		if entry, ok := a.selectedEntry(); ok {
			a.mode = modeCompose
			a.replyToID = entry.ID
			if entry.BoostOfID != "" {
				a.replyToID = entry.BoostOfID
			}
			a.composer.CharLimit = a.eng.MaxPostChars()
			a.composer.Reset()
			a.composer.SetValue("@" + entry.Author.Handle + " ")
			return a, a.composer.Focus()
		}

	case "/":
		a.mode = modePrompt
		a.prompt = promptSearch
		a.input.Reset()
		a.input.Placeholder = "search"
		return a, a.input.Focus()
	case "#":
		a.mode = modePrompt
		a.prompt = promptHashtag
		a.input.Reset()
		a.input.Placeholder = "hashtag"
		return a, a.input.Focus()

	case "a":
		a.cycleAccount()
	}
	return a, nil
}

func (a App) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeTimeline
		a.composer.Blur()
		return a, nil
	case "ctrl+d":
		text := strings.TrimSpace(a.composer.Value())
		if text != "" {
			a.submit(engine.Post{Draft: mastodon.StatusDraft{
				Content:     text,
				InReplyToID: a.replyToID,
			}})
		}
		a.mode = modeTimeline
		a.composer.Blur()
		return a, nil
	}
	var cmd tea.Cmd
	a.composer, cmd = a.composer.Update(msg)
	return a, cmd
}

func (a App) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeTimeline
		a.input.Blur()
		return a, nil
	case "enter":
		value := strings.TrimSpace(strings.TrimPrefix(a.input.Value(), "#"))
		a.mode = modeTimeline
		a.input.Blur()
		if value == "" {
			return a, nil
		}
		var kind timeline.Kind
		if a.prompt == promptSearch {
			kind = timeline.Kind{Category: timeline.Search, Param: value}
		} else {
			kind = timeline.Kind{Category: timeline.Hashtag, Param: value}
		}
		a.submit(engine.OpenTimeline{Kind: kind})
		a.focusKind(kind)
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit forwards a command, surfacing rejections as notices.
func (a *App) submit(cmd engine.Command) {
	if err := a.eng.Submit(cmd); err != nil {
		a.notices = append(a.notices, engine.Notice{
			Level: engine.NoticeWarn,
			Text:  err.Error(),
		})
	}
}

// cycleAccount switches to the next configured account.
func (a *App) cycleAccount() {
	active := a.eng.ActiveAccount()
	idx := -1
	for i, acc := range a.eng.Accounts() {
		if acc.Instance == active.Instance && acc.Acct == active.Acct {
			idx = i
			break
		}
	}
	n := len(a.eng.Accounts())
	if n < 2 || idx < 0 {
		return
	}
	a.submit(engine.SwitchAccount{Index: (idx + 1) % n})
	a.focus = 0
}

func (a *App) focusedKind() (timeline.Kind, bool) {
	kinds := a.eng.OpenKinds()
	if len(kinds) == 0 {
		return timeline.Kind{}, false
	}
	if a.focus >= len(kinds) {
		a.focus = len(kinds) - 1
	}
	return kinds[a.focus], true
}

func (a *App) selectedEntry() (timeline.Entry, bool) {
	kind, ok := a.focusedKind()
	if !ok {
		return timeline.Entry{}, false
	}
	t, ok := a.eng.Timeline(kind)
	if !ok || t.Len() == 0 {
		return timeline.Entry{}, false
	}
	cursor := a.cursors[kind]
	if cursor >= t.Len() {
		cursor = t.Len() - 1
	}
	// The cursor indexes display order, which may be reversed from
	// storage order.
	entries := t.Entries()
	if a.shouldReverse(kind) {
		reverse(entries)
	}
	return entries[cursor], true
}

func (a *App) moveCursor(delta int) {
	kind, ok := a.focusedKind()
	if !ok {
		return
	}
	t, ok := a.eng.Timeline(kind)
	if !ok {
		return
	}
	cursor := a.cursors[kind] + delta
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= t.Len() {
		cursor = t.Len() - 1
		if cursor < 0 {
			cursor = 0
		}
	}
	a.cursors[kind] = cursor
}

// clampCursors keeps selections valid after entries were removed.
func (a *App) clampCursors() {
	for kind, cursor := range a.cursors {
		t, ok := a.eng.Timeline(kind)
		if !ok {
			delete(a.cursors, kind)
			continue
		}
		if cursor >= t.Len() && t.Len() > 0 {
			a.cursors[kind] = t.Len() - 1
		}
	}
}

func (a *App) focusKind(kind timeline.Kind) {
	for i, k := range a.eng.OpenKinds() {
		if k == kind {
			a.focus = i
			a.pendingFocus = nil
			return
		}
	}
	// Not open yet; the OpenTimeline command is still queued. The focus
	// moves once a sync tick shows the timeline in the layout.
	a.pendingFocus = &kind
}

// applyPendingFocus resolves a deferred focus change once its timeline
// appears in the open set.
func (a *App) applyPendingFocus() {
	if a.pendingFocus == nil {
		return
	}
	for i, k := range a.eng.OpenKinds() {
		if k == *a.pendingFocus {
			a.focus = i
			a.pendingFocus = nil
			return
		}
	}
}
