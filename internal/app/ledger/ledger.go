// Package ledger is the points core: balance re-derivation, referral graph
// maintenance, manual grants, and the admin aggregates built on top of them.
//
// There is no stored balance anywhere. Every read recomputes the user's
// standing from the raw event tables, which trades O(referral-graph-size)
// work per read for immunity to balance-drift bugs. Per-user graphs are
// small, so the trade holds.
package ledger

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/selloriy/selloriy/internal/domain"
	"github.com/selloriy/selloriy/internal/infra/observability"
	"github.com/selloriy/selloriy/pkg/logger"
)

// Store is the slice of the event store the ledger needs.
type Store interface {
	UpsertUser(id int64, username, firstName, lastName string, referrerID int64) (bool, error)
	TouchActivity(id int64) error
	UserByID(id int64) (*domain.User, error)
	UserByUsername(username string) (*domain.User, error)
	AllUsers() ([]domain.User, error)

	CreateReferralChain(referrerID, newUserID int64) (int64, error)
	ReferralCounts(userID int64) (level1, level2 int64, err error)
	ActiveReferralCounts(userID int64, since time.Time) (level1, level2 int64, err error)
	Level1Children(userID int64) ([]domain.NetworkChild, error)

	InsertManualGrant(userID int64, amount decimal.Decimal, reason string, adminID int64) (int64, error)
	ManualGrantSum(userID int64) (decimal.Decimal, error)
	GrantsForUser(userID int64) ([]domain.ManualGrant, error)

	ReservedSum(userID int64) (decimal.Decimal, error)
	CountStats() (domain.Stats, error)
}

// Service computes balances and maintains the referral graph.
type Service struct {
	store     Store
	bonusRate decimal.Decimal
	retention time.Duration
}

// New creates the ledger service. bonusRate is the level-2 bonus fraction
// (e.g. 0.25); retentionDays is the activity window of the retention view.
func New(store Store, bonusRate float64, retentionDays int) *Service {
	return &Service{
		store:     store,
		bonusRate: decimal.NewFromFloat(bonusRate),
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// ─── Contact Registration ───────────────────────────────────────────────────

// RegisterContact is the single entry point for an inbound user: it creates
// or touches the user record and, exactly once — on first-time creation with
// a known referrer — resolves the referral chain. Revisits never re-resolve.
// A self-referral token is treated as no referrer at all.
//
// Returns whether this contact created the user.
func (s *Service) RegisterContact(id int64, username, firstName, lastName string, referrerID int64) (bool, error) {
	if referrerID == id {
		referrerID = 0
	}

	created, err := s.store.UpsertUser(id, username, firstName, lastName, referrerID)
	if err != nil {
		observability.StoreErrors.Inc()
		return false, err
	}
	if !created || referrerID == 0 {
		return created, nil
	}

	grandparent, err := s.store.CreateReferralChain(referrerID, id)
	if err != nil {
		// The user exists; only the edges failed. Fatal to this action,
		// not to the process.
		observability.StoreErrors.Inc()
		return created, err
	}

	observability.ReferralRegistrations.WithLabelValues("1").Inc()
	if grandparent != 0 {
		observability.ReferralRegistrations.WithLabelValues("2").Inc()
	}
	logger.Log.Info("referral registered",
		logger.Int64("referrer", referrerID),
		logger.Int64("referred", id),
		logger.Int64("grandparent", grandparent))
	return created, nil
}

// Touch bumps the user's activity timestamp.
func (s *Service) Touch(id int64) error {
	return s.store.TouchActivity(id)
}

// ─── Balance Calculation ────────────────────────────────────────────────────

// Compute re-derives the user's full balance from stored events:
//
//	total     = level1 + floor(level2 × bonusRate) + trunc(Σ grants)
//	reserved  = Σ cost over pending and approved requests
//	available = max(total − reserved, 0)
//
// All truncation is toward zero. Approved requests stay reserved forever;
// nothing is ever spent down from a running balance.
func (s *Service) Compute(userID int64) (domain.Balance, error) {
	observability.BalanceComputations.Inc()

	l1, l2, err := s.store.ReferralCounts(userID)
	if err != nil {
		return domain.Balance{}, err
	}
	manual, err := s.store.ManualGrantSum(userID)
	if err != nil {
		return domain.Balance{}, err
	}
	reserved, err := s.store.ReservedSum(userID)
	if err != nil {
		return domain.Balance{}, err
	}

	return assemble(l1, l2, s.bonusRate, manual, reserved), nil
}

// assemble is the pure arithmetic of the balance contract.
func assemble(l1, l2 int64, bonusRate, manual, reserved decimal.Decimal) domain.Balance {
	bonus := decimal.NewFromInt(l2).Mul(bonusRate).IntPart()
	total := l1 + bonus + manual.IntPart()

	// Subtract the exact reserved sum before truncating, so fractional
	// costs cannot leak availability.
	available := decimal.NewFromInt(total).Sub(reserved)
	if available.IsNegative() {
		available = decimal.Zero
	}

	return domain.Balance{
		Level1Count:     l1,
		Level2Raw:       l2,
		Level2Bonus:     bonus,
		ManualTotal:     manual.IntPart(),
		TotalPoints:     total,
		Reserved:        reserved.IntPart(),
		AvailablePoints: available.IntPart(),
	}
}

// ComputeActive is the retention view: referral counts restricted to
// invitees active within the configured window. Manual grants and
// reservations are deliberately left out — this is insight, not an
// authoritative balance.
func (s *Service) ComputeActive(userID int64) (domain.ActiveBalance, error) {
	since := time.Now().Add(-s.retention)
	l1, l2, err := s.store.ActiveReferralCounts(userID, since)
	if err != nil {
		return domain.ActiveBalance{}, err
	}
	bonus := decimal.NewFromInt(l2).Mul(s.bonusRate).IntPart()
	return domain.ActiveBalance{
		Level1Count: l1,
		Level2Raw:   l2,
		Level2Bonus: bonus,
		TotalPoints: l1 + bonus,
	}, nil
}

// Network lists the user's direct invitees with their own invite counts.
func (s *Service) Network(userID int64) ([]domain.NetworkChild, error) {
	return s.store.Level1Children(userID)
}

// ─── Admin Operations ───────────────────────────────────────────────────────

// DefaultGrantReason is used when an admin leaves the reason blank.
const DefaultGrantReason = "admin bonus"

// Grant appends a manual point adjustment. Amount may be negative and
// fractional; truncation happens only when balances aggregate.
func (s *Service) Grant(userID int64, amount decimal.Decimal, reason string, adminID int64) error {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultGrantReason
	}
	if _, err := s.store.InsertManualGrant(userID, amount, reason, adminID); err != nil {
		observability.StoreErrors.Inc()
		return err
	}
	observability.ManualGrants.Inc()
	logger.Log.Info("manual grant",
		logger.Int64("user", userID),
		logger.String("amount", amount.String()),
		logger.Int64("admin", adminID))
	return nil
}

// Grants lists the user's manual adjustments, newest first.
func (s *Service) Grants(userID int64) ([]domain.ManualGrant, error) {
	return s.store.GrantsForUser(userID)
}

// Leaderboard recomputes every user's total and returns the top entries.
// This is a deliberate full scan: results are a point-in-time best-effort
// snapshot, tolerant of concurrent writes underneath it.
func (s *Service) Leaderboard(limit int) ([]domain.LeaderboardEntry, error) {
	users, err := s.store.AllUsers()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		bal, err := s.Compute(u.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      u.ID,
			Username:    u.Username,
			TotalPoints: bal.TotalPoints,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalPoints > entries[j].TotalPoints
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Stats returns the admin dashboard counters.
func (s *Service) Stats() (domain.Stats, error) {
	return s.store.CountStats()
}

// FindUser resolves an admin query — a numeric id or a username with or
// without the leading @ — to a user, or domain.ErrUserNotFound.
func (s *Service) FindUser(query string) (*domain.User, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimPrefix(q, "@")
	if q == "" {
		return nil, domain.ErrUserNotFound
	}
	if id, err := strconv.ParseInt(q, 10, 64); err == nil {
		return s.store.UserByID(id)
	}
	return s.store.UserByUsername(q)
}

// User returns a user by id.
func (s *Service) User(id int64) (*domain.User, error) {
	return s.store.UserByID(id)
}

// AllUsers exposes the full user scan for broadcast and export.
func (s *Service) AllUsers() ([]domain.User, error) {
	return s.store.AllUsers()
}
