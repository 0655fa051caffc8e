package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/selloriy/selloriy/internal/domain"
)

// ─── User Operations ────────────────────────────────────────────────────────

// UpsertUser creates the user on first contact or refreshes the display
// fields and activity timestamp on a revisit. It reports whether this was a
// first-time creation — the one-shot signal that gates referral
// registration. The referrer reference is written only on creation and
// never changed afterwards.
func (s *Store) UpsertUser(id int64, username, firstName, lastName string, referrerID int64) (created bool, err error) {
	ts := formatTime(now())

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRow(`SELECT user_id FROM users WHERE user_id = ?`, id).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.Exec(`
			INSERT INTO users (user_id, username, first_name, last_name, referrer_id, created_at, last_active_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, username, firstName, lastName, referrerID, ts, ts)
		if err != nil {
			return false, fmt.Errorf("inserting user %d: %w", id, err)
		}
		created = true
	case err != nil:
		return false, err
	default:
		_, err = tx.Exec(`
			UPDATE users SET username = ?, first_name = ?, last_name = ?, last_active_at = ?
			WHERE user_id = ?
		`, username, firstName, lastName, ts, id)
		if err != nil {
			return false, fmt.Errorf("updating user %d: %w", id, err)
		}
	}

	return created, tx.Commit()
}

// TouchActivity bumps the user's last-activity timestamp.
func (s *Store) TouchActivity(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET last_active_at = ? WHERE user_id = ?`,
		formatTime(now()), id)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var createdAt, lastActiveAt string
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.ReferrerID, &createdAt, &lastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	u.LastActiveAt = parseTime(lastActiveAt)
	return &u, nil
}

const userColumns = `user_id, username, first_name, last_name, referrer_id, created_at, last_active_at`

// UserByID returns the user or domain.ErrUserNotFound.
func (s *Store) UserByID(id int64) (*domain.User, error) {
	return scanUser(s.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE user_id = ?`, id))
}

// UserByUsername looks a user up case-insensitively, without the leading @.
func (s *Store) UserByUsername(username string) (*domain.User, error) {
	return scanUser(s.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE username = ? COLLATE NOCASE LIMIT 1`, username))
}

// AllUsers returns every user, oldest first. Used by the leaderboard scan,
// broadcast, and export — point-in-time best effort, not a consistent
// snapshot across the whole table.
func (s *Store) AllUsers() ([]domain.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		var createdAt, lastActiveAt string
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.ReferrerID, &createdAt, &lastActiveAt); err != nil {
			return nil, err
		}
		u.CreatedAt = parseTime(createdAt)
		u.LastActiveAt = parseTime(lastActiveAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the total user count.
func (s *Store) CountUsers() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
