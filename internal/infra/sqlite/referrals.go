package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/selloriy/selloriy/internal/domain"
)

// ─── Referral Edge Operations ───────────────────────────────────────────────

// CreateReferralChain records the level-1 edge referrer→newUser and, when
// the referrer was themselves referred, the level-2 edge grandparent→newUser.
// The grandparent lookup and both inserts run in one transaction: the chain
// is resolved exactly once, at the new user's creation, and later changes to
// the referrer's own referrer never touch it.
//
// Returns the grandparent id, or 0 when no level-2 edge was created.
// Callers must invoke this at most once per new user, gated by the
// first-creation signal from UpsertUser; the unique index on
// (referred_id, level) backstops that contract.
func (s *Store) CreateReferralChain(referrerID, newUserID int64) (grandparentID int64, err error) {
	ts := formatTime(now())

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO referrals (referrer_id, referred_id, level, created_at)
		VALUES (?, ?, 1, ?)
	`, referrerID, newUserID, ts)
	if err != nil {
		return 0, fmt.Errorf("inserting level-1 edge %d→%d: %w", referrerID, newUserID, err)
	}

	err = tx.QueryRow(`SELECT referrer_id FROM users WHERE user_id = ?`, referrerID).
		Scan(&grandparentID)
	if errors.Is(err, sql.ErrNoRows) {
		// Referrer unknown to us: record the direct edge only.
		grandparentID = 0
	} else if err != nil {
		return 0, err
	}

	if grandparentID != 0 {
		_, err = tx.Exec(`
			INSERT INTO referrals (referrer_id, referred_id, level, created_at)
			VALUES (?, ?, 2, ?)
		`, grandparentID, newUserID, ts)
		if err != nil {
			return 0, fmt.Errorf("inserting level-2 edge %d→%d: %w", grandparentID, newUserID, err)
		}
	}

	return grandparentID, tx.Commit()
}

// ReferralCounts returns the number of level-1 and level-2 edges where the
// user is the referrer.
func (s *Store) ReferralCounts(userID int64) (level1, level2 int64, err error) {
	err = s.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN level = 1 THEN 1 END),
			COUNT(CASE WHEN level = 2 THEN 1 END)
		FROM referrals WHERE referrer_id = ?
	`, userID).Scan(&level1, &level2)
	return level1, level2, err
}

// ActiveReferralCounts is the windowed variant: only edges whose referred
// user has been active since the cutoff are counted.
func (s *Store) ActiveReferralCounts(userID int64, since time.Time) (level1, level2 int64, err error) {
	cutoff := formatTime(since)
	err = s.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN r.level = 1 THEN 1 END),
			COUNT(CASE WHEN r.level = 2 THEN 1 END)
		FROM referrals r
		JOIN users u ON u.user_id = r.referred_id
		WHERE r.referrer_id = ? AND u.last_active_at >= ?
	`, userID, cutoff).Scan(&level1, &level2)
	return level1, level2, err
}

// Level1Children lists the user's direct invitees together with each one's
// own direct-invite count, for the network view.
func (s *Store) Level1Children(userID int64) ([]domain.NetworkChild, error) {
	rows, err := s.db.Query(`
		SELECT u.user_id, u.username, COUNT(r2.id)
		FROM referrals r
		JOIN users u ON u.user_id = r.referred_id
		LEFT JOIN referrals r2 ON r2.referrer_id = u.user_id AND r2.level = 1
		WHERE r.referrer_id = ? AND r.level = 1
		GROUP BY u.user_id, u.username
		ORDER BY r.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var children []domain.NetworkChild
	for rows.Next() {
		var c domain.NetworkChild
		if err := rows.Scan(&c.UserID, &c.Username, &c.Level1Count); err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, rows.Err()
}
