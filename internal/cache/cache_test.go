package cache

import (
	"strconv"
	"testing"
	"time"

	"github.com/mkordell/murmur/internal/timeline"
)

var home = timeline.Kind{Category: timeline.Home}

func openTest(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func cachedEntry(id string, minute int) timeline.Entry {
	return timeline.Entry{
		ID:        id,
		Author:    timeline.Identity{ID: "a1", Handle: "ada@example.social"},
		Content:   "post " + id,
		CreatedAt: time.Date(2025, 6, 1, 12, minute, 0, 0, time.UTC),
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	c := openTest(t)

	saved := []timeline.Entry{cachedEntry("1", 1), cachedEntry("3", 3), cachedEntry("2", 2)}
	if err := c.SaveEntries("s1", home, saved); err != nil {
		t.Fatalf("SaveEntries: %v", err)
	}

	got, err := c.LoadEntries("s1", home, 40)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded %d entries, want 3", len(got))
	}
	// Newest first.
	if got[0].ID != "3" || got[2].ID != "1" {
		t.Errorf("order = [%s %s %s], want [3 2 1]", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[0].Content != "post 3" {
		t.Errorf("Content = %q", got[0].Content)
	}
}

func TestSaveReplacesExistingRows(t *testing.T) {
	c := openTest(t)

	first := cachedEntry("7", 1)
	first.Favorites = 1
	c.SaveEntries("s1", home, []timeline.Entry{first})

	updated := cachedEntry("7", 1)
	updated.Favorites = 9
	if err := c.SaveEntries("s1", home, []timeline.Entry{updated}); err != nil {
		t.Fatalf("SaveEntries: %v", err)
	}

	got, _ := c.LoadEntries("s1", home, 10)
	if len(got) != 1 || got[0].Favorites != 9 {
		t.Errorf("got %+v, want single row with Favorites=9", got)
	}
}

func TestTimelinesAreIsolated(t *testing.T) {
	c := openTest(t)

	tag := timeline.Kind{Category: timeline.Hashtag, Param: "golang"}
	c.SaveEntries("s1", home, []timeline.Entry{cachedEntry("1", 1)})
	c.SaveEntries("s1", tag, []timeline.Entry{cachedEntry("2", 2)})
	c.SaveEntries("s2", home, []timeline.Entry{cachedEntry("3", 3)})

	got, _ := c.LoadEntries("s1", home, 10)
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("s1 home = %v, want just entry 1", got)
	}
	got, _ = c.LoadEntries("s1", tag, 10)
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("s1 #golang = %v, want just entry 2", got)
	}
}

func TestDeleteEntryRemovesAcrossTimelines(t *testing.T) {
	c := openTest(t)

	local := timeline.Kind{Category: timeline.Local}
	c.SaveEntries("s1", home, []timeline.Entry{cachedEntry("5", 5)})
	c.SaveEntries("s1", local, []timeline.Entry{cachedEntry("5", 5)})
	c.SaveEntries("s2", home, []timeline.Entry{cachedEntry("5", 5)})

	if err := c.DeleteEntry("s1", "5"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}

	for _, kind := range []timeline.Kind{home, local} {
		if got, _ := c.LoadEntries("s1", kind, 10); len(got) != 0 {
			t.Errorf("s1 %v still has %d entries", kind, len(got))
		}
	}
	// Other sessions untouched.
	if got, _ := c.LoadEntries("s2", home, 10); len(got) != 1 {
		t.Errorf("s2 home lost its entry")
	}
}

func TestClearSession(t *testing.T) {
	c := openTest(t)

	c.SaveEntries("s1", home, []timeline.Entry{cachedEntry("1", 1)})
	c.SaveEntries("s2", home, []timeline.Entry{cachedEntry("2", 2)})

	if err := c.ClearSession("s1"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if n, _ := c.Count("s1", home); n != 0 {
		t.Errorf("s1 count = %d, want 0", n)
	}
	if n, _ := c.Count("s2", home); n != 1 {
		t.Errorf("s2 count = %d, want 1", n)
	}
}

func TestTrimKeepsNewest(t *testing.T) {
	c := openTest(t)

	var entries []timeline.Entry
	for i := 1; i <= 10; i++ {
		entries = append(entries, cachedEntry(strconv.Itoa(i), i))
	}
	c.SaveEntries("s1", home, entries)

	if err := c.Trim("s1", home, 3); err != nil {
		t.Fatalf("Trim: %v", err)
	}
	got, _ := c.LoadEntries("s1", home, 10)
	if len(got) != 3 {
		t.Fatalf("after trim: %d rows, want 3", len(got))
	}
	if !got[0].CreatedAt.After(got[2].CreatedAt) {
		t.Errorf("trim kept the wrong rows: %v", got)
	}
}
