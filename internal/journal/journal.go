// Package journal stores verse transitions in sqlite for later analysis.
package journal

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"

	"github.com/tilawah/versesync/internal/monitoring"
	"github.com/tilawah/versesync/internal/session"
	"github.com/tilawah/versesync/internal/timing"
	"github.com/tilawah/versesync/internal/tracker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

type DB struct {
	*sql.DB
	path string
}

// Open opens (or creates) the journal at path and migrates it to the
// latest schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection: pragmas apply to it and ":memory:" stays one database
	sqlDB.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the journal was opened from.
func (db *DB) Path() string { return db.path }

// MigrateUp applies all pending migrations. It is a no-op when the schema
// is current.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// Not closing m: that would close the shared connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version, 0 before any
// migration ran.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// Insert stores one transition.
func (db *DB) Insert(tr session.Transition) error {
	_, err := db.Exec(
		`INSERT INTO transitions (
			session_id, generation, surah, reciter, kind, verse,
			media_time, display_ms, recorded_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.SessionID, int64(tr.Generation), tr.Key.Surah, tr.Key.Reciter, string(tr.Kind), tr.Verse,
		tr.MediaTime, tr.Display.Milliseconds(), tr.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// Transitions returns the journaled transitions of a session in the order
// they were recorded.
func (db *DB) Transitions(sessionID string) ([]session.Transition, error) {
	rows, err := db.Query(`SELECT session_id, generation, surah, reciter, kind, verse,
			media_time, display_ms, recorded_unix_ms
		FROM transitions WHERE session_id = ? ORDER BY transition_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Transition
	for rows.Next() {
		var (
			tr        session.Transition
			gen       int64
			kind      string
			displayMs int64
			atMs      int64
		)
		if err := rows.Scan(&tr.SessionID, &gen, &tr.Key.Surah, &tr.Key.Reciter, &kind, &tr.Verse,
			&tr.MediaTime, &displayMs, &atMs); err != nil {
			return nil, err
		}
		tr.Generation = uint64(gen)
		tr.Kind = tracker.EventKind(kind)
		tr.Display = time.Duration(displayMs) * time.Millisecond
		tr.At = time.UnixMilli(atMs).UTC()
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SessionSummary is one row of the session_summary view.
type SessionSummary struct {
	SessionID   string     `json:"session_id"`
	Key         timing.Key `json:"key"`
	Transitions int        `json:"transitions"`
	Enters      int        `json:"enters"`
	First       time.Time  `json:"first"`
	Last        time.Time  `json:"last"`
}

// Sessions lists journaled sessions, most recent first.
func (db *DB) Sessions(limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT session_id, surah, reciter, transitions, enters, first_unix_ms, last_unix_ms
		FROM session_summary ORDER BY last_unix_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var first, last int64
		if err := rows.Scan(&s.SessionID, &s.Key.Surah, &s.Key.Reciter, &s.Transitions, &s.Enters, &first, &last); err != nil {
			return nil, err
		}
		s.First = time.UnixMilli(first).UTC()
		s.Last = time.UnixMilli(last).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Dwell is how long playback stayed on a verse, measured in media time
// from each enter to the transition that followed it.
type Dwell struct {
	Verse  int     `json:"verse"`
	Visits int     `json:"visits"`
	Mean   float64 `json:"mean"`
	Total  float64 `json:"total"`
}

// VerseDwell aggregates dwell per verse for a session, ordered by verse.
// An enter with no later transition in the same generation is not counted.
// Visits ended by a backward seek can be negative and are skipped.
func (db *DB) VerseDwell(sessionID string) ([]Dwell, error) {
	trs, err := db.Transitions(sessionID)
	if err != nil {
		return nil, err
	}

	spans := make(map[int][]float64)
	for i, tr := range trs {
		if tr.Kind != tracker.EventEnter || i+1 >= len(trs) {
			continue
		}
		next := trs[i+1]
		if next.Generation != tr.Generation {
			continue
		}
		if d := next.MediaTime - tr.MediaTime; d >= 0 {
			spans[tr.Verse] = append(spans[tr.Verse], d)
		}
	}

	out := make([]Dwell, 0, len(spans))
	for verse, ds := range spans {
		total := 0.0
		for _, d := range ds {
			total += d
		}
		out = append(out, Dwell{Verse: verse, Visits: len(ds), Mean: stat.Mean(ds, nil), Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verse < out[j].Verse })
	return out, nil
}
