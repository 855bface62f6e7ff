package timeline

import (
	"sort"
	"time"
)

// StreamState is the lifecycle state of a timeline's streaming
// subscription.
type StreamState int

const (
	StreamDisabled StreamState = iota
	StreamConnecting
	StreamConnected
	StreamBackoff
)

func (s StreamState) String() string {
	switch s {
	case StreamDisabled:
		return "disabled"
	case StreamConnecting:
		return "connecting"
	case StreamConnected:
		return "connected"
	case StreamBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// StreamStatus is the passive staleness indicator rendered with a
// timeline. Backoff carries the attempt count and next retry time.
type StreamStatus struct {
	State     StreamState
	Attempt   int
	NextRetry time.Time
	LastError string
}

// Timeline is one open, independently paginated view of entries. Owned
// exclusively by the synchronization loop; background workers never hold a
// reference.
type Timeline struct {
	Kind Kind

	// Canonical storage order: newest first, total order by
	// (created_at, id) descending.
	entries []*Entry
	byID    map[string]*Entry

	// NextMaxID cursors the next older page; empty until the first fetch
	// and after the server reports the end.
	NextMaxID  string
	EndReached bool

	Stream StreamStatus

	// Stale marks entries served from the local cache before the first
	// successful fetch of this run.
	Stale   bool
	Loading bool
}

// New creates an empty timeline handle for the given kind.
func New(kind Kind) *Timeline {
	return &Timeline{
		Kind: kind,
		byID: make(map[string]*Entry),
	}
}

// Len returns the number of entries.
func (t *Timeline) Len() int { return len(t.entries) }

// Get returns a copy of the entry with the given id.
func (t *Timeline) Get(id string) (Entry, bool) {
	e, ok := t.byID[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns a copy of all entries in canonical order.
func (t *Timeline) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}

// IDs returns entry ids in canonical order. Mostly useful in tests.
func (t *Timeline) IDs() []string {
	ids := make([]string, len(t.entries))
	for i, e := range t.entries {
		ids[i] = e.ID
	}
	return ids
}

// Merge folds one entry into the timeline. A new id is inserted at its
// canonical position; an existing id is updated per the entry merge rule.
// Merging the same payload twice is a no-op.
func (t *Timeline) Merge(entry Entry) (added, updated bool) {
	if existing, ok := t.byID[entry.ID]; ok {
		return false, existing.merge(entry)
	}

	e := entry
	idx := sort.Search(len(t.entries), func(i int) bool {
		return less(&e, t.entries[i])
	})
	t.entries = append(t.entries, nil)
	copy(t.entries[idx+1:], t.entries[idx:])
	t.entries[idx] = &e
	t.byID[e.ID] = &e
	return true, false
}

// MergeAll merges a batch, returning ids that were added or visibly
// changed, for the render diff.
func (t *Timeline) MergeAll(entries []Entry) (added, updated []string) {
	for _, entry := range entries {
		a, u := t.Merge(entry)
		if a {
			added = append(added, entry.ID)
		} else if u {
			updated = append(updated, entry.ID)
		}
	}
	return added, updated
}

// Remove deletes the entry with the given id.
func (t *Timeline) Remove(id string) bool {
	e, ok := t.byID[id]
	if !ok {
		return false
	}
	idx := sort.Search(len(t.entries), func(i int) bool {
		return !less(t.entries[i], e)
	})
	for idx < len(t.entries) && t.entries[idx].ID != id {
		idx++
	}
	if idx == len(t.entries) {
		return false
	}
	t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
	delete(t.byID, id)
	return true
}

// Clear drops all entries, keeping stream and cursor state untouched.
func (t *Timeline) Clear() {
	t.entries = nil
	t.byID = make(map[string]*Entry)
}

// OldestID returns the id of the oldest stored entry, or "".
func (t *Timeline) OldestID() string {
	if len(t.entries) == 0 {
		return ""
	}
	return t.entries[len(t.entries)-1].ID
}

// PageCursor re-derives the correct cursor for loading the next older
// page. The server-provided cursor wins; with none recorded yet the
// oldest stored id bounds the fetch, so a page is never skipped or
// fetched twice even when new entries arrived since the command was
// issued.
func (t *Timeline) PageCursor(issued string) string {
	if t.NextMaxID != "" {
		return t.NextMaxID
	}
	if oldest := t.OldestID(); oldest != "" {
		if issued == "" || compareIDs(oldest, issued) < 0 {
			return oldest
		}
	}
	return issued
}
