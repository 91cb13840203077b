package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists the reaper's durable state: the two activity maps, the
// closed-tab archive, counters and the scheduler's wake time.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path, switches it
// to WAL mode and brings the schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStore wraps an already-opened and migrated database. Used by tests
// with :memory: databases.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- activity ---------------------------------------------------------------

// LoadActivity reads both persisted activity maps.
func (s *Store) LoadActivity(ctx context.Context) (map[int]time.Time, map[string]time.Time, error) {
	tabTimes := make(map[int]time.Time)
	rows, err := s.db.QueryContext(ctx, "SELECT tab_id, last_active_ms FROM tab_times")
	if err != nil {
		return nil, nil, fmt.Errorf("load tab times: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var ms int64
		if err := rows.Scan(&id, &ms); err != nil {
			return nil, nil, err
		}
		tabTimes[id] = time.UnixMilli(ms)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	urlTimes := make(map[string]time.Time)
	urows, err := s.db.QueryContext(ctx, "SELECT url, last_active_ms FROM url_times")
	if err != nil {
		return nil, nil, fmt.Errorf("load url times: %w", err)
	}
	defer urows.Close()
	for urows.Next() {
		var url string
		var ms int64
		if err := urows.Scan(&url, &ms); err != nil {
			return nil, nil, err
		}
		urlTimes[url] = time.UnixMilli(ms)
	}
	return tabTimes, urlTimes, urows.Err()
}

// SaveActivity replaces both activity maps in a single transaction, so a
// crash can never leave the id map and the url map from different cycles.
func (s *Store) SaveActivity(ctx context.Context, tabTimes map[int]time.Time, urlTimes map[string]time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM tab_times"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM url_times"); err != nil {
		return err
	}

	for id, t := range tabTimes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tab_times (tab_id, last_active_ms) VALUES (?, ?)",
			id, t.UnixMilli(),
		); err != nil {
			return fmt.Errorf("save tab time %d: %w", id, err)
		}
	}
	for url, t := range urlTimes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO url_times (url, last_active_ms) VALUES (?, ?)",
			url, t.UnixMilli(),
		); err != nil {
			return fmt.Errorf("save url time %q: %w", url, err)
		}
	}

	return tx.Commit()
}

// --- archive ----------------------------------------------------------------

// LoadArchive returns the archived tabs, newest first.
func (s *Store) LoadArchive(ctx context.Context) ([]ArchiveEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tab_id, url, title, pinned, window_id, closed_at_ms
		FROM archive ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load archive: %w", err)
	}
	defer rows.Close()

	var entries []ArchiveEntry
	for rows.Next() {
		var e ArchiveEntry
		var pinned int
		var closedMs int64
		if err := rows.Scan(&e.ID, &e.TabID, &e.URL, &e.Title, &pinned, &e.WindowID, &closedMs); err != nil {
			return nil, err
		}
		e.Pinned = pinned != 0
		e.ClosedAt = time.UnixMilli(closedMs)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveArchive replaces the archive with entries (newest first) in one
// transaction. The wrangler owns ordering and the cap; the store persists
// the list as given.
func (s *Store) SaveArchive(ctx context.Context, entries []ArchiveEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM archive"); err != nil {
		return err
	}
	for i, e := range entries {
		pinned := 0
		if e.Pinned {
			pinned = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO archive (id, tab_id, url, title, pinned, window_id, closed_at_ms, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.TabID, e.URL, e.Title, pinned, e.WindowID, e.ClosedAt.UnixMilli(), i); err != nil {
			return fmt.Errorf("save archive entry %q: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// --- counters ---------------------------------------------------------------

// AddCounter increments the named counter by delta and returns the new value.
func (s *Store) AddCounter(ctx context.Context, name string, delta int64) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = value + excluded.value
	`, name, delta)
	if err != nil {
		return 0, fmt.Errorf("add counter %q: %w", name, err)
	}
	return s.Counter(ctx, name)
}

// Counter returns the named counter's value, zero if never written.
func (s *Store) Counter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM counters WHERE name = ?", name,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %q: %w", name, err)
	}
	return value, nil
}

// --- schedule ---------------------------------------------------------------

// NextWake returns the persisted wake time for the named schedule, or the
// zero time if none is recorded.
func (s *Store) NextWake(ctx context.Context, name string) (time.Time, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		"SELECT wake_at_ms FROM schedule WHERE name = ?", name,
	).Scan(&ms)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read schedule %q: %w", name, err)
	}
	return time.UnixMilli(ms), nil
}

// SetNextWake persists the wake time for the named schedule, replacing any
// previous value. A fixed name means rescheduling naturally supersedes the
// pending alarm.
func (s *Store) SetNextWake(ctx context.Context, name string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule (name, wake_at_ms) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET wake_at_ms = excluded.wake_at_ms
	`, name, t.UnixMilli())
	if err != nil {
		return fmt.Errorf("set schedule %q: %w", name, err)
	}
	return nil
}
