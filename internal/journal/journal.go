// Package journal persists deck navigation history.
//
// Every state change of a presenter session becomes an Entry. Entries are
// written to SQLite (modernc.org/sqlite) or PostgreSQL (lib/pq) and can be
// read back as a timeline or as per-slide visit counts.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Entry is one recorded navigation state.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session"`
	Deck      string    `json:"deck"`
	Slide     int       `json:"slide"` // 0-based
	Step      int       `json:"step"`  // -1 when no step is revealed
	Fragment  string    `json:"fragment"`
	Entered   bool      `json:"entered"` // the slide became current here
	Presenter string    `json:"presenter,omitempty"`
	At        time.Time `json:"at"`
}

// Visit counts how often a slide became current.
type Visit struct {
	Slide int `json:"slide"`
	Count int `json:"count"`
}

// Store reads and writes journal entries.
type Store interface {
	Record(ctx context.Context, e Entry) error
	// Recent returns the newest entries first. An empty deck means all decks.
	Recent(ctx context.Context, deck string, limit int) ([]Entry, error)
	// Visits returns per-slide visit counts ordered by slide.
	Visits(ctx context.Context, deck string) ([]Visit, error)
	Close() error
}

// SQLStore is a Store backed by database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
}

var schemas = map[string]string{
	DriverSQLite: `CREATE TABLE IF NOT EXISTS deck_journal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	deck TEXT NOT NULL,
	slide INTEGER NOT NULL,
	step INTEGER NOT NULL,
	fragment TEXT NOT NULL,
	entered INTEGER NOT NULL DEFAULT 0,
	presenter TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
)`,
	DriverPostgres: `CREATE TABLE IF NOT EXISTS deck_journal (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	deck TEXT NOT NULL,
	slide INTEGER NOT NULL,
	step INTEGER NOT NULL,
	fragment TEXT NOT NULL,
	entered INTEGER NOT NULL DEFAULT 0,
	presenter TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL
)`,
}

const indexDDL = `CREATE INDEX IF NOT EXISTS deck_journal_deck ON deck_journal (deck, id)`

// Open connects to the journal database and creates the schema if needed.
func Open(driver, dsn string) (*SQLStore, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("journal: dsn is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer avoids SQLITE_BUSY from concurrent sessions.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: failed to connect: %w", err)
	}
	for _, ddl := range []string{schema, indexDDL} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: failed to create schema: %w", err)
		}
	}

	return &SQLStore{db: db, driver: driver}, nil
}

// Driver returns the database driver name.
func (s *SQLStore) Driver() string { return s.driver }

// Record inserts an entry. A zero At is set to the current time.
func (s *SQLStore) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO deck_journal (session_id, deck, slide, step, fragment, entered, presenter, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.SessionID, e.Deck, e.Slide, e.Step, e.Fragment, boolInt(e.Entered), e.Presenter, e.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("journal: insert failed: %w", err)
	}
	return nil
}

// Recent implements Store.
func (s *SQLStore) Recent(ctx context.Context, deck string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, session_id, deck, slide, step, fragment, entered, presenter, created_at FROM deck_journal`
	var args []interface{}
	if deck != "" {
		query += ` WHERE deck = ?`
		args = append(args, deck)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at, entered int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Deck, &e.Slide, &e.Step, &e.Fragment, &entered, &e.Presenter, &at); err != nil {
			return nil, fmt.Errorf("journal: scan failed: %w", err)
		}
		e.Entered = entered != 0
		e.At = time.UnixMilli(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Visits implements Store. Only entries that made a slide current are
// counted; stepping back to the bare slide is not a visit.
func (s *SQLStore) Visits(ctx context.Context, deck string) ([]Visit, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT slide, COUNT(*) FROM deck_journal WHERE deck = ? AND entered = 1 GROUP BY slide ORDER BY slide`), deck)
	if err != nil {
		return nil, fmt.Errorf("journal: query failed: %w", err)
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.Slide, &v.Count); err != nil {
			return nil, fmt.Errorf("journal: scan failed: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
