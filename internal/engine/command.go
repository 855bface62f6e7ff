package engine

import (
	"errors"

	"github.com/mkordell/murmur/internal/config"
	"github.com/mkordell/murmur/internal/mastodon"
	"github.com/mkordell/murmur/internal/timeline"
)

var (
	// ErrQueueFull means the command queue is saturated; the caller should
	// surface it and let the user retry.
	ErrQueueFull = errors.New("command queue full")

	// ErrDuplicatePending rejects a second operation against the same
	// entry and action while the first is still in flight.
	ErrDuplicatePending = errors.New("operation already pending for this entry")

	// ErrShutdown rejects commands after the engine stopped.
	ErrShutdown = errors.New("engine is shut down")
)

// Command is a user intention submitted to the synchronization loop. All
// state changes flow through commands; the UI never mutates timelines.
type Command interface{ isCommand() }

// OpenTimeline opens (or focuses) a timeline of the given kind for the
// active account, loading cached entries and scheduling a fresh fetch.
type OpenTimeline struct {
	Kind timeline.Kind
}

// CloseTimeline closes an open timeline, stopping its stream if no other
// open timeline shares it. Home and Notifications cannot be closed.
type CloseTimeline struct {
	Kind timeline.Kind
}

// LoadMore fetches the next older page for a timeline.
type LoadMore struct {
	Kind timeline.Kind
}

// Refresh re-fetches the newest page of a timeline.
type Refresh struct {
	Kind timeline.Kind
}

// Post publishes a new status or reply.
type Post struct {
	Draft mastodon.StatusDraft
}

// ToggleFavorite favorites or unfavorites an entry based on its current
// local state.
type ToggleFavorite struct {
	EntryID string
}

// ToggleBoost boosts or unboosts an entry.
type ToggleBoost struct {
	EntryID string
}

// ToggleBookmark bookmarks or unbookmarks an entry.
type ToggleBookmark struct {
	EntryID string
}

// VotePoll submits poll choices for an entry.
type VotePoll struct {
	EntryID string
	PollID  string
	Choices []int
}

// DeleteEntry deletes the user's own status.
type DeleteEntry struct {
	EntryID string
}

// SwitchAccount makes another configured account active. The previous
// account's session stays alive in the background.
type SwitchAccount struct {
	Index int
}

// AddAccount registers a new account and switches to it.
type AddAccount struct {
	Account config.Account
}

// RemoveAccount drops an account, its session, and its cached entries.
type RemoveAccount struct {
	Index int
}

func (OpenTimeline) isCommand()   {}
func (CloseTimeline) isCommand()  {}
func (LoadMore) isCommand()       {}
func (Refresh) isCommand()        {}
func (Post) isCommand()           {}
func (ToggleFavorite) isCommand() {}
func (ToggleBoost) isCommand()    {}
func (ToggleBookmark) isCommand() {}
func (VotePoll) isCommand()       {}
func (DeleteEntry) isCommand()    {}
func (SwitchAccount) isCommand()  {}
func (AddAccount) isCommand()     {}
func (RemoveAccount) isCommand()  {}

// pendingKey identifies one in-flight entry operation for deduplication.
type pendingKey struct {
	session string
	entryID string
	action  string
}

// pendingFor maps a command to its dedup key, if it is an entry operation.
func pendingFor(session string, cmd Command) (pendingKey, bool) {
	switch c := cmd.(type) {
	case ToggleFavorite:
		return pendingKey{session, c.EntryID, "favorite"}, true
	case ToggleBoost:
		return pendingKey{session, c.EntryID, "boost"}, true
	case ToggleBookmark:
		return pendingKey{session, c.EntryID, "bookmark"}, true
	case VotePoll:
		return pendingKey{session, c.EntryID, "vote"}, true
	case DeleteEntry:
		return pendingKey{session, c.EntryID, "delete"}, true
	default:
		return pendingKey{}, false
	}
}
