package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/selloriy/selloriy/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// setClock makes store timestamps deterministic and strictly increasing by
// step per call.
func setClock(t *testing.T, start time.Time, step time.Duration) {
	t.Helper()
	orig := now
	current := start
	now = func() time.Time {
		ts := current
		current = current.Add(step)
		return ts
	}
	t.Cleanup(func() { now = orig })
}

// ─── Migrations ─────────────────────────────────────────────────────────────

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)

	// Open already migrated; run twice more.
	if err := s.Migrate(); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("third Migrate() error: %v", err)
	}

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if want := migrations()[len(migrations())-1].version; v != want {
		t.Errorf("SchemaVersion() = %d, want %d", v, want)
	}
}

// ─── Users ──────────────────────────────────────────────────────────────────

func TestUpsertUser_CreateThenRevisit(t *testing.T) {
	s := newTestStore(t)

	created, err := s.UpsertUser(1, "alice", "Alice", "", 0)
	if err != nil {
		t.Fatalf("UpsertUser() error: %v", err)
	}
	if !created {
		t.Error("first upsert: created = false, want true")
	}

	created, err = s.UpsertUser(1, "alice_new", "Alice", "A", 999)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second upsert: created = true, want false")
	}

	u, err := s.UserByID(1)
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "alice_new" {
		t.Errorf("Username = %q, want %q", u.Username, "alice_new")
	}
	// The referrer reference is set once at creation and never changed.
	if u.ReferrerID != 0 {
		t.Errorf("ReferrerID = %d, want 0 (revisits must not rewrite it)", u.ReferrerID)
	}
}

func TestUserByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UserByID(42)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestUserByUsername_CaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(7, "SomeBody", "S", "", 0)

	u, err := s.UserByUsername("somebody")
	if err != nil {
		t.Fatalf("UserByUsername() error: %v", err)
	}
	if u.ID != 7 {
		t.Errorf("ID = %d, want 7", u.ID)
	}
}

func TestTouchActivity(t *testing.T) {
	s := newTestStore(t)
	setClock(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour)

	s.UpsertUser(1, "a", "", "", 0)
	before, _ := s.UserByID(1)
	s.TouchActivity(1)
	after, _ := s.UserByID(1)

	if !after.LastActiveAt.After(before.LastActiveAt) {
		t.Errorf("LastActiveAt not advanced: %v → %v", before.LastActiveAt, after.LastActiveAt)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Error("CreatedAt changed by TouchActivity")
	}
}

// ─── Referral Edges ─────────────────────────────────────────────────────────

func TestCreateReferralChain_DirectOnly(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(1, "a", "", "", 0) // organic
	s.UpsertUser(2, "b", "", "", 1)

	grandparent, err := s.CreateReferralChain(1, 2)
	if err != nil {
		t.Fatalf("CreateReferralChain() error: %v", err)
	}
	if grandparent != 0 {
		t.Errorf("grandparent = %d, want 0", grandparent)
	}

	l1, l2, err := s.ReferralCounts(1)
	if err != nil {
		t.Fatal(err)
	}
	if l1 != 1 || l2 != 0 {
		t.Errorf("counts = (%d, %d), want (1, 0)", l1, l2)
	}
}

func TestCreateReferralChain_WithGrandparent(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(1, "c", "", "", 0) // C, organic
	s.UpsertUser(2, "a", "", "", 1) // A, referred by C
	s.CreateReferralChain(1, 2)
	s.UpsertUser(3, "b", "", "", 2) // B, referred by A

	grandparent, err := s.CreateReferralChain(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if grandparent != 1 {
		t.Errorf("grandparent = %d, want 1", grandparent)
	}

	// A gets the level-1 edge, C gets the level-2 edge.
	l1, l2, _ := s.ReferralCounts(2)
	if l1 != 1 || l2 != 0 {
		t.Errorf("A counts = (%d, %d), want (1, 0)", l1, l2)
	}
	l1, l2, _ = s.ReferralCounts(1)
	if l1 != 1 || l2 != 1 {
		t.Errorf("C counts = (%d, %d), want (1, 1)", l1, l2)
	}
}

func TestCreateReferralChain_DuplicateRejected(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(1, "a", "", "", 0)
	s.UpsertUser(2, "b", "", "", 1)

	if _, err := s.CreateReferralChain(1, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateReferralChain(1, 2); err == nil {
		t.Error("duplicate chain accepted, want unique-constraint error")
	}

	// The failed duplicate must not have left a partial write.
	l1, l2, _ := s.ReferralCounts(1)
	if l1 != 1 || l2 != 0 {
		t.Errorf("counts after duplicate = (%d, %d), want (1, 0)", l1, l2)
	}
}

func TestActiveReferralCounts(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	setClock(t, base, 0)

	s.UpsertUser(1, "ref", "", "", 0)
	s.UpsertUser(2, "fresh", "", "", 1)
	s.CreateReferralChain(1, 2)
	s.UpsertUser(3, "stale", "", "", 1)
	s.CreateReferralChain(1, 3)

	// User 3 stays last-active at base; user 2 gets touched two days later.
	now = func() time.Time { return base.Add(48 * time.Hour) }
	s.TouchActivity(2)

	l1, l2, err := s.ActiveReferralCounts(1, base.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if l1 != 1 {
		t.Errorf("active level1 = %d, want 1 (only the recently active invitee)", l1)
	}
	if l2 != 0 {
		t.Errorf("active level2 = %d, want 0", l2)
	}
}

func TestLevel1Children(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(1, "root", "", "", 0)
	s.UpsertUser(2, "kid1", "", "", 1)
	s.CreateReferralChain(1, 2)
	s.UpsertUser(3, "kid2", "", "", 1)
	s.CreateReferralChain(1, 3)
	s.UpsertUser(4, "grandkid", "", "", 2)
	s.CreateReferralChain(2, 4)

	children, err := s.Level1Children(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}

	byID := make(map[int64]domain.NetworkChild)
	for _, c := range children {
		byID[c.UserID] = c
	}
	if byID[2].Level1Count != 1 {
		t.Errorf("kid1 own level1 = %d, want 1", byID[2].Level1Count)
	}
	if byID[3].Level1Count != 0 {
		t.Errorf("kid2 own level1 = %d, want 0", byID[3].Level1Count)
	}
}

// ─── Manual Grants ──────────────────────────────────────────────────────────

func TestManualGrantSum_Fractional(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(1, "a", "", "", 0)

	for _, amount := range []string{"2.5", "-0.75", "10"} {
		d, _ := decimal.NewFromString(amount)
		if _, err := s.InsertManualGrant(1, d, "test", 100); err != nil {
			t.Fatalf("InsertManualGrant(%s) error: %v", amount, err)
		}
	}

	total, err := s.ManualGrantSum(1)
	if err != nil {
		t.Fatal(err)
	}
	if want := decimal.RequireFromString("11.75"); !total.Equal(want) {
		t.Errorf("ManualGrantSum() = %s, want %s", total, want)
	}
}

func TestGrantsForUser_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	setClock(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	s.UpsertUser(1, "a", "", "", 0)

	s.InsertManualGrant(1, decimal.NewFromInt(1), "first", 100)
	s.InsertManualGrant(1, decimal.NewFromInt(2), "second", 100)

	grants, err := s.GrantsForUser(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 2 {
		t.Fatalf("len(grants) = %d, want 2", len(grants))
	}
	if grants[0].Reason != "second" {
		t.Errorf("grants[0].Reason = %q, want %q", grants[0].Reason, "second")
	}
}

// ─── Service Requests ───────────────────────────────────────────────────────

func TestReservedSum_PendingAndApproved(t *testing.T) {
	s := newTestStore(t)
	setClock(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	s.UpsertUser(1, "a", "", "", 0)

	s.InsertServiceRequest(1, "gift", decimal.NewFromInt(7))
	s.InsertServiceRequest(1, "canva", decimal.NewFromInt(10))
	if _, err := s.ApproveLatestPending(1, 500); err != nil {
		t.Fatal(err)
	}

	// Approved requests remain reserved.
	total, err := s.ReservedSum(1)
	if err != nil {
		t.Fatal(err)
	}
	if !total.Equal(decimal.NewFromInt(17)) {
		t.Errorf("ReservedSum() = %s, want 17", total)
	}
}

func TestApproveLatestPending_NewestWins(t *testing.T) {
	s := newTestStore(t)
	setClock(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	s.UpsertUser(1, "a", "", "", 0)

	first, _ := s.InsertServiceRequest(1, "gift", decimal.NewFromInt(7))
	second, _ := s.InsertServiceRequest(1, "canva", decimal.NewFromInt(10))

	settled, err := s.ApproveLatestPending(1, 500)
	if err != nil {
		t.Fatalf("ApproveLatestPending() error: %v", err)
	}
	if settled.ID != second {
		t.Errorf("settled.ID = %d, want %d (the newer request)", settled.ID, second)
	}
	if settled.Status != domain.StatusApproved {
		t.Errorf("Status = %q, want approved", settled.Status)
	}
	if settled.AdminID != 500 {
		t.Errorf("AdminID = %d, want 500", settled.AdminID)
	}
	if settled.ApprovedAt == nil {
		t.Error("ApprovedAt = nil, want set")
	}

	// The older request stays pending indefinitely.
	requests, _ := s.RequestsForUser(1)
	for _, r := range requests {
		if r.ID == first && r.Status != domain.StatusPending {
			t.Errorf("older request status = %q, want pending", r.Status)
		}
	}
}

func TestApproveLatestPending_NoPending(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(1, "a", "", "", 0)

	_, err := s.ApproveLatestPending(1, 500)
	if !errors.Is(err, domain.ErrNoPendingRequest) {
		t.Errorf("err = %v, want ErrNoPendingRequest", err)
	}
}

func TestPendingRequests_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	setClock(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	s.UpsertUser(1, "a", "", "", 0)
	s.UpsertUser(2, "b", "", "", 0)

	s.InsertServiceRequest(1, "gift", decimal.NewFromInt(7))
	s.InsertServiceRequest(2, "canva", decimal.NewFromInt(10))

	pending, err := s.PendingRequests()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if pending[0].UserID != 2 {
		t.Errorf("pending[0].UserID = %d, want 2 (newest first)", pending[0].UserID)
	}
}

func TestCountStats(t *testing.T) {
	s := newTestStore(t)
	setClock(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	s.UpsertUser(1, "a", "", "", 0)
	s.UpsertUser(2, "b", "", "", 0)
	s.InsertServiceRequest(1, "gift", decimal.NewFromInt(7))
	s.InsertServiceRequest(1, "canva", decimal.NewFromInt(10))
	s.ApproveLatestPending(1, 500)

	st, err := s.CountStats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Users != 2 {
		t.Errorf("Users = %d, want 2", st.Users)
	}
	if st.Pending != 1 {
		t.Errorf("Pending = %d, want 1", st.Pending)
	}
	if st.Approved != 1 {
		t.Errorf("Approved = %d, want 1", st.Approved)
	}
}
