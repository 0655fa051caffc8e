package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. The NotFound family
// is rendered as a negative result at the transport boundary, never as a
// process-level failure.

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrServiceNotFound = errors.New("service not found in catalog")

	// ErrNoPendingRequest is the "nothing to approve" signal: approving a
	// user with zero pending requests is a no-op reported to the caller.
	ErrNoPendingRequest = errors.New("no pending request for user")

	// ErrInsufficientBalance means the requested cost exceeds the available
	// points at check time. No request is created.
	ErrInsufficientBalance = errors.New("insufficient available points")

	ErrConversationNotFound = errors.New("no conversation in progress")
	ErrConversationExpired  = errors.New("conversation expired")
)
