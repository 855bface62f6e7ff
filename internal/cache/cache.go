// Package cache provides SQLite persistence for timeline entries, so a
// restart can show the last known state immediately (marked stale) while
// fresh fetches are in flight.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mkordell/murmur/internal/timeline"
)

// Cache handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: all methods are safe for concurrent use via internal
// mutex, though in practice only the synchronization loop calls them.
type Cache struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a Cache at the given database path, creating tables as
// needed. Uses WAL mode for file-based databases.
func Open(dbPath string) (*Cache, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	c := &Cache{db: db}
	if err := c.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return c, nil
}

func (c *Cache) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		session    TEXT NOT NULL,
		category   TEXT NOT NULL,
		param      TEXT NOT NULL DEFAULT '',
		id         TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		payload    BLOB NOT NULL,
		fetched_at DATETIME NOT NULL,
		PRIMARY KEY (session, category, param, id)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_timeline
		ON entries(session, category, param, created_at DESC);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// SaveEntries upserts a batch for one timeline. Existing rows are
// replaced so edits and count changes survive restarts.
func (c *Cache) SaveEntries(session string, kind timeline.Kind, entries []timeline.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	stmt, err := c.db.Prepare(`
		INSERT OR REPLACE INTO entries (
			session, category, param, id, created_at, payload, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", entry.ID, err)
		}
		_, err = stmt.Exec(
			session,
			string(kind.Category),
			kind.Param,
			entry.ID,
			entry.CreatedAt.UTC(),
			payload,
			now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadEntries returns the newest cached entries for one timeline, in
// canonical (newest first) order.
func (c *Cache) LoadEntries(session string, kind timeline.Kind, limit int) ([]timeline.Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.Query(`
		SELECT payload FROM entries
		WHERE session = ? AND category = ? AND param = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, session, string(kind.Category), kind.Param, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []timeline.Entry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry timeline.Entry
		if err := json.Unmarshal(payload, &entry); err != nil {
			// A corrupt row is not worth failing the whole load.
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteEntry removes an entry from every timeline of the session, the
// mirror of a server-side delete event.
func (c *Cache) DeleteEntry(session, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec("DELETE FROM entries WHERE session = ? AND id = ?", session, id)
	return err
}

// ClearTimeline drops all cached rows for one timeline.
func (c *Cache) ClearTimeline(session string, kind timeline.Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`
		DELETE FROM entries
		WHERE session = ? AND category = ? AND param = ?
	`, session, string(kind.Category), kind.Param)
	return err
}

// ClearSession drops everything cached for one account, used when the
// account is removed.
func (c *Cache) ClearSession(session string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec("DELETE FROM entries WHERE session = ?", session)
	return err
}

// Trim keeps only the newest keep rows per timeline so the database does
// not grow without bound.
func (c *Cache) Trim(session string, kind timeline.Kind, keep int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`
		DELETE FROM entries
		WHERE session = ? AND category = ? AND param = ?
		AND id NOT IN (
			SELECT id FROM entries
			WHERE session = ? AND category = ? AND param = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
	`, session, string(kind.Category), kind.Param,
		session, string(kind.Category), kind.Param, keep)
	return err
}

// Count returns the number of cached rows for one timeline.
func (c *Cache) Count(session string, kind timeline.Kind) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int
	err := c.db.QueryRow(`
		SELECT COUNT(*) FROM entries
		WHERE session = ? AND category = ? AND param = ?
	`, session, string(kind.Category), kind.Param).Scan(&n)
	return n, err
}
