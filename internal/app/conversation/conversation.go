// Package conversation models multi-step admin input — the grant flow's
// search-then-amount-then-reason sequence, the broadcast text prompt, the
// user-search prompt — as explicit per-admin state machines with a
// cancellation action and a timeout that discards stale flows.
package conversation

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/selloriy/selloriy/internal/domain"
)

// Kind names a conversation flow.
type Kind string

const (
	KindGrant     Kind = "grant"
	KindBroadcast Kind = "broadcast"
	KindSearch    Kind = "search"
	KindApprove   Kind = "approve_comment"
)

// Step is a position inside a flow.
type Step string

const (
	// Grant flow: find the user, then the amount, then the reason.
	StepUser   Step = "user"
	StepAmount Step = "amount"
	StepReason Step = "reason"

	// Single-prompt flows.
	StepText Step = "text"
)

// State is the partially collected input of one admin's flow.
type State struct {
	AdminID   int64
	Kind      Kind
	Step      Step
	StartedAt time.Time
	UpdatedAt time.Time

	// Collected so far, meaningful per kind.
	TargetID int64
	Amount   decimal.Decimal
}

// Manager tracks at most one conversation per admin.
type Manager struct {
	mu    sync.Mutex
	ttl   time.Duration
	flows map[int64]*State

	now func() time.Time // swappable for tests
}

// NewManager creates a manager whose conversations expire after ttl of
// inactivity.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:   ttl,
		flows: make(map[int64]*State),
		now:   time.Now,
	}
}

// Begin starts a flow for the admin, replacing any flow already in
// progress, and returns its state.
func (m *Manager) Begin(adminID int64, kind Kind, step Step) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now()
	st := &State{
		AdminID:   adminID,
		Kind:      kind,
		Step:      step,
		StartedAt: ts,
		UpdatedAt: ts,
	}
	m.flows[adminID] = st
	return st
}

// Current returns a copy of the admin's in-progress state.
// An expired flow is discarded and reported as domain.ErrConversationExpired;
// no flow at all is domain.ErrConversationNotFound.
func (m *Manager) Current(adminID int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.flows[adminID]
	if !ok {
		return State{}, domain.ErrConversationNotFound
	}
	if m.now().Sub(st.UpdatedAt) > m.ttl {
		delete(m.flows, adminID)
		return State{}, domain.ErrConversationExpired
	}
	return *st, nil
}

// Advance moves the admin's flow to the next step, merging the collected
// fields via apply, and refreshes the inactivity clock.
func (m *Manager) Advance(adminID int64, step Step, apply func(*State)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.flows[adminID]
	if !ok {
		return domain.ErrConversationNotFound
	}
	if m.now().Sub(st.UpdatedAt) > m.ttl {
		delete(m.flows, adminID)
		return domain.ErrConversationExpired
	}
	if apply != nil {
		apply(st)
	}
	st.Step = step
	st.UpdatedAt = m.now()
	return nil
}

// End discards the admin's flow, if any. Used both for completion and for
// the explicit /cancel action.
func (m *Manager) End(adminID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flows, adminID)
}

// Sweep drops every expired flow. Called periodically so abandoned
// conversations don't accumulate.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dropped int
	cutoff := m.now().Add(-m.ttl)
	for id, st := range m.flows {
		if st.UpdatedAt.Before(cutoff) {
			delete(m.flows, id)
			dropped++
		}
	}
	return dropped
}
