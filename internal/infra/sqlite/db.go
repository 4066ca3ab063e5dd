// Package sqlite provides the SQLite-backed ledger store for ReLoop.
// Uses WAL mode for concurrent reads and crash-safe writes. The snapshot
// compare-and-set, the idempotency record, and mission completion all commit
// in one transaction, which is what makes event application all-or-nothing.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/ledger.db.
// Enables WAL mode, foreign keys, and a 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "ledger.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Per-user reward snapshots. version is the optimistic-concurrency
		// counter: it moves by exactly one per applied event.
		`CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			points           INTEGER NOT NULL DEFAULT 0,
			total_weight_kg  REAL NOT NULL DEFAULT 0,
			co2_saved_kg     REAL NOT NULL DEFAULT 0,
			per_category_kg  TEXT NOT NULL DEFAULT '{}',
			submission_count INTEGER NOT NULL DEFAULT 0,
			version          INTEGER NOT NULL DEFAULT 0,
			created_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_points ON users(points)`,

		// Mission catalog mirror with the shared participant counter.
		`CREATE TABLE IF NOT EXISTS missions (
			id               TEXT PRIMARY KEY,
			type             TEXT NOT NULL,
			title            TEXT NOT NULL DEFAULT '',
			target_value     REAL NOT NULL,
			points_reward    INTEGER NOT NULL DEFAULT 0,
			start_date       INTEGER,
			end_date         INTEGER,
			max_participants INTEGER NOT NULL DEFAULT 0,
			participants     INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_missions_end ON missions(end_date)`,

		// Per-user mission participation (the ACTIVE/COMPLETED/EXPIRED
		// state machine).
		`CREATE TABLE IF NOT EXISTS user_missions (
			user_id      TEXT NOT NULL,
			mission_id   TEXT NOT NULL,
			status       TEXT NOT NULL,
			progress     REAL NOT NULL DEFAULT 0,
			joined_at    INTEGER NOT NULL,
			completed_at INTEGER,
			PRIMARY KEY (user_id, mission_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_missions_status ON user_missions(status)`,

		// Applied events: idempotency records and points history in one.
		`CREATE TABLE IF NOT EXISTS applied_events (
			user_id            TEXT NOT NULL,
			submission_id      TEXT NOT NULL,
			kind               TEXT NOT NULL,
			points             INTEGER NOT NULL DEFAULT 0,
			co2_kg             REAL NOT NULL DEFAULT 0,
			weight_kg          REAL NOT NULL DEFAULT 0,
			category           TEXT NOT NULL DEFAULT '',
			completed_missions TEXT NOT NULL DEFAULT '[]',
			applied_at         INTEGER NOT NULL,
			PRIMARY KEY (user_id, submission_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_applied_at ON applied_events(applied_at)`,
		`CREATE INDEX IF NOT EXISTS idx_applied_category ON applied_events(category)`,

		// Badge awards (append-only)
		`CREATE TABLE IF NOT EXISTS badges (
			user_id    TEXT NOT NULL,
			badge_id   TEXT NOT NULL,
			awarded_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, badge_id)
		)`,

		// Notification log
		`CREATE TABLE IF NOT EXISTS notifications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			kind       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			shown      BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user ON notifications(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(ts int64) sql.NullInt64 {
	if ts == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ts, Valid: true}
}
