package sqlite

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/selloriy/selloriy/internal/domain"
)

// ─── Manual Grant Operations ────────────────────────────────────────────────
// Grants are an append-only log. Amounts are stored as decimal text so
// fractional grants survive round-trips exactly; truncation toward zero
// happens only at aggregation, in the balance calculator.

// InsertManualGrant appends a grant and returns its id.
func (s *Store) InsertManualGrant(userID int64, amount decimal.Decimal, reason string, adminID int64) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO manual_points (user_id, points, reason, admin_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, amount.String(), reason, adminID, formatTime(now()))
	if err != nil {
		return 0, fmt.Errorf("inserting grant for user %d: %w", userID, err)
	}
	return res.LastInsertId()
}

// ManualGrantSum returns the exact (untruncated) sum of the user's grants.
func (s *Store) ManualGrantSum(userID int64) (decimal.Decimal, error) {
	rows, err := s.db.Query(`SELECT points FROM manual_points WHERE user_id = ?`, userID)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt grant amount %q for user %d: %w", raw, userID, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

// GrantsForUser lists the user's grants, newest first.
func (s *Store) GrantsForUser(userID int64) ([]domain.ManualGrant, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, points, reason, admin_id, created_at
		FROM manual_points
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []domain.ManualGrant
	for rows.Next() {
		var g domain.ManualGrant
		var raw, createdAt string
		if err := rows.Scan(&g.ID, &g.UserID, &raw, &g.Reason, &g.AdminID, &createdAt); err != nil {
			return nil, err
		}
		g.Amount, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt grant amount %q: %w", raw, err)
		}
		g.CreatedAt = parseTime(createdAt)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
