package timeline

import (
	"reflect"
	"strconv"
	"testing"
	"time"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// entry builds a test entry whose creation time tracks its numeric id.
func entry(id string, minuteOffset int) Entry {
	return Entry{
		ID:        id,
		Author:    Identity{ID: "a1", Handle: "ada@example.social", Name: "Ada"},
		Content:   "<p>post " + id + "</p>",
		CreatedAt: base.Add(time.Duration(minuteOffset) * time.Minute),
	}
}

func TestMergeKeepsCanonicalOrder(t *testing.T) {
	tl := New(Kind{Category: Home})

	// Arrive out of order.
	for _, e := range []Entry{entry("5", 5), entry("7", 7), entry("6", 6)} {
		tl.Merge(e)
	}

	want := []string{"7", "6", "5"}
	if got := tl.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v (newest first)", got, want)
	}
}

func TestMergeDeduplicatesByID(t *testing.T) {
	tl := New(Kind{Category: Home})

	e := entry("42", 1)
	added, updated := tl.Merge(e)
	if !added || updated {
		t.Fatalf("first merge: added=%v updated=%v, want added only", added, updated)
	}

	// Identical payload again: neither added nor updated.
	added, updated = tl.Merge(e)
	if added || updated {
		t.Errorf("idempotent merge: added=%v updated=%v, want neither", added, updated)
	}
	if tl.Len() != 1 {
		t.Errorf("Len = %d, want 1", tl.Len())
	}
}

func TestMergeLastWriterWinsOnMutableFields(t *testing.T) {
	tl := New(Kind{Category: Home})

	first := entry("9", 1)
	first.Favorites = 3
	tl.Merge(first)

	update := entry("9", 1)
	update.Favorites = 4
	update.Favorited = true
	added, updated := tl.Merge(update)
	if added || !updated {
		t.Fatalf("count update: added=%v updated=%v, want updated only", added, updated)
	}

	got, _ := tl.Get("9")
	if got.Favorites != 4 || !got.Favorited {
		t.Errorf("mutable fields not updated: %+v", got)
	}
}

func TestMergeImmutableFieldsKeepFirstSeenValues(t *testing.T) {
	tl := New(Kind{Category: Home})

	first := entry("9", 1)
	tl.Merge(first)

	// A racing payload claims a different creation time and author.
	hostile := entry("9", 30)
	hostile.Author = Identity{ID: "x", Handle: "mallory@example.social"}
	tl.Merge(hostile)

	got, _ := tl.Get("9")
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed: %v, want first-seen %v", got.CreatedAt, first.CreatedAt)
	}
	if got.Author.ID != "a1" {
		t.Errorf("Author changed: %+v", got.Author)
	}
	// Position must not shift either.
	if want := []string{"9"}; !reflect.DeepEqual(tl.IDs(), want) {
		t.Errorf("IDs = %v", tl.IDs())
	}
}

// The interleaved stream/fetch scenario: stream delivers [5,6,7],
// disconnects, delivers [8] after reconnect, and a late REST fetch returns
// [6,7,8]. The final state is [8,7,6,5], each exactly once.
func TestStreamAndFetchInterleave(t *testing.T) {
	tl := New(Kind{Category: Home})

	for _, n := range []int{5, 6, 7} {
		tl.Merge(entry(strconv.Itoa(n), n))
	}
	tl.Merge(entry("8", 8))

	added, updated := tl.MergeAll([]Entry{entry("6", 6), entry("7", 7), entry("8", 8)})
	if len(added) != 0 {
		t.Errorf("late fetch added %v, want none", added)
	}
	if len(updated) != 0 {
		t.Errorf("late fetch updated %v, want none for identical payloads", updated)
	}

	want := []string{"8", "7", "6", "5"}
	if got := tl.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestPaginationConcatenation(t *testing.T) {
	tl := New(Kind{Category: Home})

	// Page 1: newest ten. Page 2: next ten, no overlap.
	var p1, p2 []Entry
	for i := 20; i > 10; i-- {
		p1 = append(p1, entry(strconv.Itoa(i), i))
	}
	for i := 10; i > 0; i-- {
		p2 = append(p2, entry(strconv.Itoa(i), i))
	}

	tl.MergeAll(p1)
	tl.NextMaxID = "11"
	tl.MergeAll(p2)

	if tl.Len() != 20 {
		t.Fatalf("Len = %d, want 20", tl.Len())
	}
	ids := tl.IDs()
	for i := 0; i < len(ids)-1; i++ {
		a, _ := tl.Get(ids[i])
		b, _ := tl.Get(ids[i+1])
		if a.CreatedAt.Before(b.CreatedAt) {
			t.Fatalf("order violated at %d: %s before %s", i, ids[i], ids[i+1])
		}
	}
}

func TestPaginationWithInterveningStreamInsert(t *testing.T) {
	tl := New(Kind{Category: Home})
	tl.MergeAll([]Entry{entry("30", 30), entry("29", 29)})
	tl.NextMaxID = "29"

	issued := tl.PageCursor("")
	if issued != "29" {
		t.Fatalf("cursor = %q, want 29", issued)
	}

	// A stream insert lands before the page result returns.
	tl.Merge(entry("31", 31))

	// Page arrives, overlapping nothing; merge must not lose or duplicate.
	tl.MergeAll([]Entry{entry("28", 28), entry("27", 27)})

	want := []string{"31", "30", "29", "28", "27"}
	if got := tl.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestPageCursorRederivation(t *testing.T) {
	tl := New(Kind{Category: Home})
	tl.MergeAll([]Entry{entry("20", 20), entry("15", 15)})

	// No server cursor yet: the oldest stored id bounds the fetch, even if
	// the issued cursor is stale (points at an entry no longer the oldest).
	if got := tl.PageCursor("20"); got != "15" {
		t.Errorf("PageCursor(stale) = %q, want 15", got)
	}

	// Server-provided cursor wins once recorded.
	tl.NextMaxID = "12"
	if got := tl.PageCursor("15"); got != "12" {
		t.Errorf("PageCursor = %q, want server cursor 12", got)
	}
}

func TestRemove(t *testing.T) {
	tl := New(Kind{Category: Home})
	tl.MergeAll([]Entry{entry("3", 3), entry("2", 2), entry("1", 1)})

	if !tl.Remove("2") {
		t.Fatal("Remove returned false for present id")
	}
	if tl.Remove("2") {
		t.Error("Remove returned true for absent id")
	}
	if want := []string{"3", "1"}; !reflect.DeepEqual(tl.IDs(), want) {
		t.Errorf("IDs = %v, want %v", tl.IDs(), want)
	}
	if _, ok := tl.Get("2"); ok {
		t.Error("removed entry still retrievable")
	}
}

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"9", "10", -1},
		{"10", "9", 1},
		{"10", "10", 0},
		{"110234", "110233", 1},
	}
	for _, tt := range tests {
		if got := compareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("compareIDs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTieBreakOnEqualTimestamps(t *testing.T) {
	tl := New(Kind{Category: Home})
	a := entry("100", 5)
	b := entry("99", 5) // same minute
	tl.Merge(b)
	tl.Merge(a)

	if want := []string{"100", "99"}; !reflect.DeepEqual(tl.IDs(), want) {
		t.Errorf("IDs = %v, want %v (higher id first on tie)", tl.IDs(), want)
	}
}
