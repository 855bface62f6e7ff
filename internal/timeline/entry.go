package timeline

import "time"

// Identity is a display-ready author reference.
type Identity struct {
	ID     string
	Handle string // "user@example.social"
	Name   string // display name, falls back to handle
}

// Entry is one post or boost-of-post in a timeline, uniquely identified by
// its remote id. Identity and creation time are immutable after first
// sight; counts and per-user flags follow last-writer-wins.
type Entry struct {
	ID          string
	Author      Identity
	BoostedBy   *Identity // set when this entry is a boost wrapper
	BoostOfID   string    // underlying status id when this is a boost
	Content     string    // raw HTML; normalized by the presentation layer
	CreatedAt   time.Time
	Visibility  string
	SpoilerText string
	InReplyToID string
	NotifType   string // set for notification-timeline entries

	Replies   int64
	Boosts    int64
	Favorites int64

	Favorited  bool
	Boosted    bool
	Bookmarked bool

	Media []string // human-readable attachment summaries
	Poll  *PollSummary
}

// PollSummary is the poll state a timeline needs to render and vote.
type PollSummary struct {
	ID       string
	Expired  bool
	Multiple bool
	Votes    int64
	Voted    bool
	Options  []PollChoice
}

// PollChoice is one poll option with its tally.
type PollChoice struct {
	Title string
	Votes int64
}

// merge folds an update for the same id into e. Identity and creation
// time keep their first-seen values; everything mutable is overwritten.
// Reports whether any visible field changed.
func (e *Entry) merge(update Entry) bool {
	changed := e.Content != update.Content ||
		e.SpoilerText != update.SpoilerText ||
		e.Replies != update.Replies ||
		e.Boosts != update.Boosts ||
		e.Favorites != update.Favorites ||
		e.Favorited != update.Favorited ||
		e.Boosted != update.Boosted ||
		e.Bookmarked != update.Bookmarked ||
		!pollEqual(e.Poll, update.Poll)

	e.Content = update.Content
	e.SpoilerText = update.SpoilerText
	e.Replies = update.Replies
	e.Boosts = update.Boosts
	e.Favorites = update.Favorites
	e.Favorited = update.Favorited
	e.Boosted = update.Boosted
	e.Bookmarked = update.Bookmarked
	e.Media = update.Media
	e.Poll = update.Poll
	return changed
}

func pollEqual(a, b *PollSummary) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || a.Votes != b.Votes || a.Voted != b.Voted || a.Expired != b.Expired {
		return false
	}
	return true
}

// less orders entries in canonical storage order: newest first, id as the
// tiebreak so ordering is total.
func less(a, b *Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return compareIDs(a.ID, b.ID) > 0
}

// compareIDs compares Mastodon ids, which are decimal strings that grow
// over time. Longer means larger; equal lengths compare lexically.
func compareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
