package sqlite

import "fmt"

// ─── Schema Migrations ──────────────────────────────────────────────────────
// Explicit, versioned, idempotent by construction: each migration runs in
// its own transaction and is recorded in schema_migrations. Never edit a
// shipped migration — append a new version instead.

type migration struct {
	version    int
	statements []string
}

func migrations() []migration {
	return []migration{
		{
			version: 1,
			statements: []string{
				`CREATE TABLE IF NOT EXISTS users (
					user_id        INTEGER PRIMARY KEY,
					username       TEXT NOT NULL DEFAULT '',
					first_name     TEXT NOT NULL DEFAULT '',
					last_name      TEXT NOT NULL DEFAULT '',
					referrer_id    INTEGER NOT NULL DEFAULT 0,
					created_at     TEXT NOT NULL,
					last_active_at TEXT NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS referrals (
					id          INTEGER PRIMARY KEY AUTOINCREMENT,
					referrer_id INTEGER NOT NULL,
					referred_id INTEGER NOT NULL,
					level       INTEGER NOT NULL CHECK(level IN (1, 2)),
					created_at  TEXT NOT NULL,
					UNIQUE(referred_id, level)
				)`,

				`CREATE TABLE IF NOT EXISTS manual_points (
					id         INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id    INTEGER NOT NULL,
					points     TEXT NOT NULL,
					reason     TEXT NOT NULL DEFAULT '',
					admin_id   INTEGER NOT NULL,
					created_at TEXT NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS service_requests (
					id          INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id     INTEGER NOT NULL,
					service_key TEXT NOT NULL,
					cost        TEXT NOT NULL,
					status      TEXT NOT NULL DEFAULT 'pending',
					created_at  TEXT NOT NULL,
					approved_at TEXT,
					admin_id    INTEGER NOT NULL DEFAULT 0
				)`,
			},
		},
		{
			version: 2,
			statements: []string{
				`CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id, level)`,
				`CREATE INDEX IF NOT EXISTS idx_manual_points_user ON manual_points(user_id)`,
				`CREATE INDEX IF NOT EXISTS idx_requests_user ON service_requests(user_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_requests_status ON service_requests(status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username COLLATE NOCASE)`,
			},
		},
	}
}

// Migrate brings the schema to the latest version. Safe to run on every
// startup; already-applied versions are skipped.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	err = s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations() {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		_, err = tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			m.version, formatTime(now()))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}
	return nil
}

// SchemaVersion returns the latest applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, err
}
