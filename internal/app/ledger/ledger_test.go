package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/selloriy/selloriy/internal/domain"
	"github.com/selloriy/selloriy/internal/infra/sqlite"
)

func newTestLedger(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, 0.25, 30), store
}

// ─── Bonus Truncation ───────────────────────────────────────────────────────

func TestLevel2BonusTruncation(t *testing.T) {
	// floor(n × 0.25) truncates toward zero: 0..3 raw edges earn nothing,
	// the fourth earns the first bonus point.
	tests := []struct {
		l2Raw int64
		bonus int64
	}{
		{0, 0},
		{1, 0},
		{2, 0},
		{3, 0},
		{4, 1},
		{7, 1},
		{8, 2},
	}

	rate := decimal.NewFromFloat(0.25)
	for _, tt := range tests {
		bal := assemble(0, tt.l2Raw, rate, decimal.Zero, decimal.Zero)
		if bal.Level2Bonus != tt.bonus {
			t.Errorf("level2_raw=%d: bonus = %d, want %d", tt.l2Raw, bal.Level2Bonus, tt.bonus)
		}
	}
}

func TestManualTotalTruncation(t *testing.T) {
	tests := []struct {
		manual string
		want   int64
	}{
		{"7", 7},
		{"7.9", 7},
		{"-3.5", -3}, // toward zero, not floor
		{"0.99", 0},
	}

	rate := decimal.NewFromFloat(0.25)
	for _, tt := range tests {
		manual := decimal.RequireFromString(tt.manual)
		bal := assemble(0, 0, rate, manual, decimal.Zero)
		if bal.ManualTotal != tt.want {
			t.Errorf("manual=%s: ManualTotal = %d, want %d", tt.manual, bal.ManualTotal, tt.want)
		}
	}
}

func TestAvailableNeverNegative(t *testing.T) {
	rate := decimal.NewFromFloat(0.25)
	bal := assemble(2, 0, rate, decimal.Zero, decimal.NewFromInt(10))

	if bal.TotalPoints != 2 {
		t.Errorf("TotalPoints = %d, want 2", bal.TotalPoints)
	}
	if bal.AvailablePoints != 0 {
		t.Errorf("AvailablePoints = %d, want 0 (clamped)", bal.AvailablePoints)
	}
}

// ─── Referral Registration ──────────────────────────────────────────────────

func TestRegisterContact_OneShotChain(t *testing.T) {
	svc, _ := newTestLedger(t)

	// C organic, A referred by C, B referred by A.
	if _, err := svc.RegisterContact(1, "c", "C", "", 0); err != nil {
		t.Fatal(err)
	}
	created, err := svc.RegisterContact(2, "a", "A", "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("A should be newly created")
	}
	if _, err := svc.RegisterContact(3, "b", "B", "", 2); err != nil {
		t.Fatal(err)
	}

	balA, _ := svc.Compute(2)
	if balA.Level1Count != 1 || balA.Level2Raw != 0 {
		t.Errorf("A: (l1, l2) = (%d, %d), want (1, 0)", balA.Level1Count, balA.Level2Raw)
	}
	balC, _ := svc.Compute(1)
	if balC.Level1Count != 1 || balC.Level2Raw != 1 {
		t.Errorf("C: (l1, l2) = (%d, %d), want (1, 1)", balC.Level1Count, balC.Level2Raw)
	}

	// Revisits never re-resolve the chain, even with a fresh token.
	created, err = svc.RegisterContact(3, "b", "B", "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("revisit reported as creation")
	}
	balC, _ = svc.Compute(1)
	if balC.Level1Count != 1 {
		t.Errorf("C level1 after revisit = %d, want 1", balC.Level1Count)
	}
}

func TestRegisterContact_SelfReferralIgnored(t *testing.T) {
	svc, _ := newTestLedger(t)

	if _, err := svc.RegisterContact(5, "u", "U", "", 5); err != nil {
		t.Fatal(err)
	}
	bal, _ := svc.Compute(5)
	if bal.Level1Count != 0 {
		t.Errorf("self-referral produced %d level-1 edges, want 0", bal.Level1Count)
	}
}

// ─── Idempotent Read ────────────────────────────────────────────────────────

func TestCompute_Idempotent(t *testing.T) {
	svc, store := newTestLedger(t)
	svc.RegisterContact(1, "u1", "", "", 0)
	svc.RegisterContact(2, "u2", "", "", 1)
	svc.Grant(1, decimal.RequireFromString("2.5"), "bonus", 100)
	store.InsertServiceRequest(1, "gift", decimal.NewFromInt(1))

	first, err := svc.Compute(1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Compute(1)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("repeated Compute disagrees: %+v vs %+v", first, second)
	}
}

// ─── End-to-End Scenarios ───────────────────────────────────────────────────

func TestScenario_PendingOnly(t *testing.T) {
	// No referrals, no grants, one pending request of cost 7:
	// total=0, reserved=7, available clamps to 0.
	svc, store := newTestLedger(t)
	svc.RegisterContact(1, "u1", "", "", 0)
	store.InsertServiceRequest(1, "gift", decimal.NewFromInt(7))

	bal, err := svc.Compute(1)
	if err != nil {
		t.Fatal(err)
	}
	if bal.TotalPoints != 0 {
		t.Errorf("TotalPoints = %d, want 0", bal.TotalPoints)
	}
	if bal.Reserved != 7 {
		t.Errorf("Reserved = %d, want 7", bal.Reserved)
	}
	if bal.AvailablePoints != 0 {
		t.Errorf("AvailablePoints = %d, want 0", bal.AvailablePoints)
	}
}

func TestScenario_TwoLevelNetworkWithGrants(t *testing.T) {
	// U1 refers U2 and U3; U2 refers U4 (level-2 under U1):
	// l1=2, l2_raw=1, bonus=0, total=2. With grants +10 and -3: total=9.
	svc, _ := newTestLedger(t)
	svc.RegisterContact(1, "u1", "", "", 0)
	svc.RegisterContact(2, "u2", "", "", 1)
	svc.RegisterContact(3, "u3", "", "", 1)
	svc.RegisterContact(4, "u4", "", "", 2)

	bal, err := svc.Compute(1)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Level1Count != 2 || bal.Level2Raw != 1 || bal.Level2Bonus != 0 {
		t.Errorf("(l1, l2, bonus) = (%d, %d, %d), want (2, 1, 0)",
			bal.Level1Count, bal.Level2Raw, bal.Level2Bonus)
	}
	if bal.TotalPoints != 2 {
		t.Errorf("TotalPoints = %d, want 2", bal.TotalPoints)
	}

	svc.Grant(1, decimal.NewFromInt(10), "prize", 100)
	svc.Grant(1, decimal.NewFromInt(-3), "correction", 100)

	bal, _ = svc.Compute(1)
	if bal.ManualTotal != 7 {
		t.Errorf("ManualTotal = %d, want 7", bal.ManualTotal)
	}
	if bal.TotalPoints != 9 {
		t.Errorf("TotalPoints = %d, want 9", bal.TotalPoints)
	}
}

// ─── Admin Operations ───────────────────────────────────────────────────────

func TestGrant_DefaultReason(t *testing.T) {
	svc, store := newTestLedger(t)
	svc.RegisterContact(1, "u1", "", "", 0)

	if err := svc.Grant(1, decimal.NewFromInt(3), "  ", 100); err != nil {
		t.Fatal(err)
	}
	grants, err := store.GrantsForUser(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 {
		t.Fatalf("len(grants) = %d, want 1", len(grants))
	}
	if grants[0].Reason != DefaultGrantReason {
		t.Errorf("Reason = %q, want %q", grants[0].Reason, DefaultGrantReason)
	}
}

func TestLeaderboard(t *testing.T) {
	svc, _ := newTestLedger(t)
	svc.RegisterContact(1, "top", "", "", 0)
	svc.RegisterContact(2, "mid", "", "", 1)
	svc.RegisterContact(3, "low", "", "", 1)
	svc.Grant(2, decimal.NewFromInt(5), "boost", 100)

	board, err := svc.Leaderboard(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(board) != 2 {
		t.Fatalf("len(board) = %d, want 2 (truncated)", len(board))
	}
	if board[0].UserID != 2 || board[0].TotalPoints != 5 {
		t.Errorf("board[0] = %+v, want user 2 with 5 points", board[0])
	}
	if board[1].UserID != 1 || board[1].TotalPoints != 2 {
		t.Errorf("board[1] = %+v, want user 1 with 2 points", board[1])
	}
}

func TestFindUser(t *testing.T) {
	svc, _ := newTestLedger(t)
	svc.RegisterContact(42, "answer", "A", "", 0)

	tests := []struct {
		query  string
		wantID int64
		found  bool
	}{
		{"42", 42, true},
		{"@answer", 42, true},
		{"Answer", 42, true},
		{"43", 0, false},
		{"@missing", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		u, err := svc.FindUser(tt.query)
		if tt.found {
			if err != nil {
				t.Errorf("FindUser(%q) error: %v", tt.query, err)
				continue
			}
			if u.ID != tt.wantID {
				t.Errorf("FindUser(%q).ID = %d, want %d", tt.query, u.ID, tt.wantID)
			}
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			t.Errorf("FindUser(%q) err = %v, want ErrUserNotFound", tt.query, err)
		}
	}
}
