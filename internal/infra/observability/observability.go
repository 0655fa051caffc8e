// Package observability exposes the Prometheus metrics of the ledger.
// Metrics are registered on the default registry and served by the admin
// API's /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

var (
	// BalanceComputations counts full balance re-derivations. The balance
	// is recomputed from raw events on every read, so this tracks read
	// pressure on the store.
	BalanceComputations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "selloriy",
		Subsystem: "ledger",
		Name:      "balance_computations_total",
		Help:      "Full balance re-derivations from the event store.",
	})

	// ReferralRegistrations counts created referral edges by level.
	ReferralRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "selloriy",
		Subsystem: "ledger",
		Name:      "referral_registrations_total",
		Help:      "Referral edges created, labelled by level.",
	}, []string{"level"})

	// ManualGrants counts admin point grants.
	ManualGrants = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "selloriy",
		Subsystem: "ledger",
		Name:      "manual_grants_total",
		Help:      "Manual point grants appended by admins.",
	})

	// RequestsCreated counts redemption requests by service key.
	RequestsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "selloriy",
		Subsystem: "redeem",
		Name:      "requests_created_total",
		Help:      "Service redemption requests created, labelled by service.",
	}, []string{"service"})

	// RequestsRejected counts affordability rejections.
	RequestsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "selloriy",
		Subsystem: "redeem",
		Name:      "requests_rejected_total",
		Help:      "Redemption attempts rejected for insufficient balance.",
	})

	// RequestsApproved counts settled requests.
	RequestsApproved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "selloriy",
		Subsystem: "redeem",
		Name:      "requests_approved_total",
		Help:      "Service redemption requests approved by admins.",
	})

	// BroadcastMessages counts bulk delivery outcomes.
	BroadcastMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "selloriy",
		Subsystem: "bot",
		Name:      "broadcast_messages_total",
		Help:      "Broadcast deliveries, labelled by result (sent/failed).",
	}, []string{"result"})

	// StoreErrors counts storage failures surfaced to action handlers.
	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "selloriy",
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Storage failures. Each is fatal to one action, never to the process.",
	})
)
