// Package domain defines the persisted entities and the value types the
// ledger works with. Everything here is plain data — no infrastructure,
// no rendering.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a bot participant. Created on first contact, never deleted.
// ReferrerID is set once at creation and never changed afterwards.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	ReferrerID   int64 // 0 when the user joined organically
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// DisplayName returns the best human-readable handle for the user:
// @username when present, otherwise the first/last name pair.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return name
}

// ReferralLevel distinguishes direct invites from one-hop-removed ones.
type ReferralLevel int

const (
	LevelDirect ReferralLevel = 1 // invited by the referrer personally
	LevelChain  ReferralLevel = 2 // invited by one of the referrer's invitees
)

// ReferralEdge links a referrer to a referred user at a fixed level.
// The chain is resolved exactly once, when the referred user is created;
// later changes to the intermediate user's referrer never touch it.
type ReferralEdge struct {
	ID         int64
	ReferrerID int64
	ReferredID int64
	Level      ReferralLevel
	CreatedAt  time.Time
}

// ManualGrant is an out-of-band point adjustment issued by an admin.
// Append-only: grants are never edited or deleted, and the amount may be
// negative. Amounts are stored with fractional precision and truncated
// toward zero only at aggregation time.
type ManualGrant struct {
	ID        int64
	UserID    int64
	Amount    decimal.Decimal
	Reason    string
	AdminID   int64
	CreatedAt time.Time
}

// RequestStatus is the redemption request state. The machine is
// pending → approved, terminal. There is no rejected or cancelled state:
// a request persists as pending until approved or forever.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
)

// ServiceRequest is a redemption of points for a catalog service.
// Cost is snapshotted at creation; catalog price changes never affect
// outstanding or settled requests.
type ServiceRequest struct {
	ID         int64
	UserID     int64
	ServiceKey string
	Cost       decimal.Decimal
	Status     RequestStatus
	CreatedAt  time.Time
	ApprovedAt *time.Time
	AdminID    int64 // approving admin, 0 while pending
}

// Balance is the re-derived point standing of one user. It is a pure
// function of the stored events — no field of it is ever persisted.
type Balance struct {
	Level1Count     int64 `json:"level1_count"`
	Level2Raw       int64 `json:"level2_raw"`
	Level2Bonus     int64 `json:"level2_bonus"`
	ManualTotal     int64 `json:"manual_total"`
	TotalPoints     int64 `json:"total_points"`
	Reserved        int64 `json:"reserved"`
	AvailablePoints int64 `json:"available_points"`
}

// ActiveBalance is the time-windowed retention view: referral counts
// restricted to recently active invitees. Manual grants and reservations
// are deliberately excluded — this is an insight view, not an
// authoritative balance.
type ActiveBalance struct {
	Level1Count int64 `json:"level1_count"`
	Level2Raw   int64 `json:"level2_raw"`
	Level2Bonus int64 `json:"level2_bonus"`
	TotalPoints int64 `json:"total_points"`
}

// NetworkChild is one direct invitee together with their own direct
// invite count, for the network visualization.
type NetworkChild struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Level1Count int64  `json:"level1_count"`
}

// LeaderboardEntry is one row of the recompute-all leaderboard.
type LeaderboardEntry struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	TotalPoints int64  `json:"total_points"`
}

// Stats is the admin dashboard aggregate.
type Stats struct {
	Users    int64 `json:"users"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
}

// CatalogEntry is one redeemable service. Static config, read-only at
// runtime; the cost here is only a template for the per-request snapshot.
type CatalogEntry struct {
	Key  string `toml:"key" json:"key"`
	Name string `toml:"name" json:"name"`
	Icon string `toml:"icon" json:"icon"`
	Cost int64  `toml:"cost" json:"cost"`
}
