package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/selloriy/selloriy/internal/domain"
)

// ─── Service Request Operations ─────────────────────────────────────────────

// InsertServiceRequest appends a pending request with the cost snapshotted
// at call time and returns the new request id. Affordability is the
// caller's concern (see the redeem service).
func (s *Store) InsertServiceRequest(userID int64, serviceKey string, cost decimal.Decimal) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO service_requests (user_id, service_key, cost, status, created_at)
		VALUES (?, ?, ?, 'pending', ?)
	`, userID, serviceKey, cost.String(), formatTime(now()))
	if err != nil {
		return 0, fmt.Errorf("inserting request for user %d: %w", userID, err)
	}
	return res.LastInsertId()
}

// ReservedSum returns the exact sum of costs over the user's pending and
// approved requests. Approved requests stay reserved forever — the balance
// is always re-derived, never spent down.
func (s *Store) ReservedSum(userID int64) (decimal.Decimal, error) {
	rows, err := s.db.Query(`
		SELECT cost FROM service_requests
		WHERE user_id = ? AND status IN ('pending', 'approved')
	`, userID)
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
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt request cost %q for user %d: %w", raw, userID, err)
		}
		total = total.Add(cost)
	}
	return total, rows.Err()
}

// ApproveLatestPending settles the user's single most-recently-created
// pending request: newest by creation time, not by id. Returns the settled
// record, or domain.ErrNoPendingRequest when nothing is pending — a no-op
// the caller reports back, not a failure.
func (s *Store) ApproveLatestPending(userID, adminID int64) (*domain.ServiceRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	req, err := scanRequest(tx.QueryRow(`
		SELECT `+requestColumns+` FROM service_requests
		WHERE user_id = ? AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoPendingRequest
	}
	if err != nil {
		return nil, err
	}

	approvedAt := now()
	_, err = tx.Exec(`
		UPDATE service_requests
		SET status = 'approved', approved_at = ?, admin_id = ?
		WHERE id = ?
	`, formatTime(approvedAt), adminID, req.ID)
	if err != nil {
		return nil, fmt.Errorf("approving request %d: %w", req.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	req.Status = domain.StatusApproved
	ts := approvedAt.UTC()
	req.ApprovedAt = &ts
	req.AdminID = adminID
	return req, nil
}

const requestColumns = `id, user_id, service_key, cost, status, created_at, approved_at, admin_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.ServiceRequest, error) {
	var r domain.ServiceRequest
	var rawCost, createdAt string
	var approvedAt sql.NullString
	err := row.Scan(&r.ID, &r.UserID, &r.ServiceKey, &rawCost, &r.Status, &createdAt, &approvedAt, &r.AdminID)
	if err != nil {
		return nil, err
	}
	r.Cost, err = decimal.NewFromString(rawCost)
	if err != nil {
		return nil, fmt.Errorf("corrupt request cost %q: %w", rawCost, err)
	}
	r.CreatedAt = parseTime(createdAt)
	if approvedAt.Valid {
		t := parseTime(approvedAt.String)
		r.ApprovedAt = &t
	}
	return &r, nil
}

func (s *Store) queryRequests(query string, args ...any) ([]domain.ServiceRequest, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// PendingRequests lists all pending requests, newest first.
func (s *Store) PendingRequests() ([]domain.ServiceRequest, error) {
	return s.queryRequests(`
		SELECT ` + requestColumns + ` FROM service_requests
		WHERE status = 'pending'
		ORDER BY created_at DESC
	`)
}

// RequestsForUser lists one user's requests of any status, newest first.
func (s *Store) RequestsForUser(userID int64) ([]domain.ServiceRequest, error) {
	return s.queryRequests(`
		SELECT `+requestColumns+` FROM service_requests
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
}

// CountStats returns the admin dashboard aggregate.
func (s *Store) CountStats() (domain.Stats, error) {
	var st domain.Stats
	users, err := s.CountUsers()
	if err != nil {
		return st, err
	}
	st.Users = users
	err = s.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN status = 'pending' THEN 1 END),
			COUNT(CASE WHEN status = 'approved' THEN 1 END)
		FROM service_requests
	`).Scan(&st.Pending, &st.Approved)
	return st, err
}
