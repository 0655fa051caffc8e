// Package redeem manages the service-request lifecycle: creation gated on
// the freshly computed balance, and the pending → approved transition.
// A request has no other states — never rejected, never cancelled.
package redeem

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/selloriy/selloriy/internal/domain"
	"github.com/selloriy/selloriy/internal/infra/observability"
	"github.com/selloriy/selloriy/pkg/logger"
)

// Store is the slice of the event store the lifecycle needs.
type Store interface {
	InsertServiceRequest(userID int64, serviceKey string, cost decimal.Decimal) (int64, error)
	ApproveLatestPending(userID, adminID int64) (*domain.ServiceRequest, error)
	PendingRequests() ([]domain.ServiceRequest, error)
	RequestsForUser(userID int64) ([]domain.ServiceRequest, error)
}

// Balances re-derives a user's balance. Implemented by the ledger service.
type Balances interface {
	Compute(userID int64) (domain.Balance, error)
}

// Service runs the request lifecycle.
type Service struct {
	store    Store
	balances Balances
	catalog  map[string]domain.CatalogEntry

	// userLocks serializes the check-then-insert sequence per user.
	// Without it, two concurrent requests could both pass the
	// affordability check and reserve the same points twice.
	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

// New creates the lifecycle service over the given catalog.
func New(store Store, balances Balances, catalog []domain.CatalogEntry) *Service {
	byKey := make(map[string]domain.CatalogEntry, len(catalog))
	for _, entry := range catalog {
		byKey[entry.Key] = entry
	}
	return &Service{
		store:     store,
		balances:  balances,
		catalog:   byKey,
		userLocks: make(map[int64]*sync.Mutex),
	}
}

func (s *Service) lockFor(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// Service looks up a catalog entry.
func (s *Service) Service(key string) (domain.CatalogEntry, bool) {
	entry, ok := s.catalog[key]
	return entry, ok
}

// Create opens a pending request for the given service, snapshotting its
// catalog cost. The affordability check and the insert run under a per-user
// lock, so of N concurrent over-budget requests at most the affordable
// prefix is admitted. Returns domain.ErrServiceNotFound for an unknown key
// and domain.ErrInsufficientBalance when available points don't cover the
// cost — in which case nothing is written.
func (s *Service) Create(userID int64, serviceKey string) (*domain.ServiceRequest, error) {
	entry, ok := s.catalog[serviceKey]
	if !ok {
		return nil, domain.ErrServiceNotFound
	}
	cost := decimal.NewFromInt(entry.Cost)

	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	bal, err := s.balances.Compute(userID)
	if err != nil {
		observability.StoreErrors.Inc()
		return nil, err
	}
	if bal.AvailablePoints < entry.Cost {
		observability.RequestsRejected.Inc()
		return nil, domain.ErrInsufficientBalance
	}

	id, err := s.store.InsertServiceRequest(userID, serviceKey, cost)
	if err != nil {
		observability.StoreErrors.Inc()
		return nil, err
	}

	observability.RequestsCreated.WithLabelValues(serviceKey).Inc()
	logger.Log.Info("service request created",
		logger.Int64("request", id),
		logger.Int64("user", userID),
		logger.String("service", serviceKey),
		logger.Int64("cost", entry.Cost))

	return &domain.ServiceRequest{
		ID:         id,
		UserID:     userID,
		ServiceKey: serviceKey,
		Cost:       cost,
		Status:     domain.StatusPending,
	}, nil
}

// ApproveLatest settles the user's most recently created pending request.
// With several pending requests only the newest is touched; the rest stay
// pending until approved in separate calls. domain.ErrNoPendingRequest is
// the "nothing to approve" answer, not a failure.
func (s *Service) ApproveLatest(userID, adminID int64) (*domain.ServiceRequest, error) {
	req, err := s.store.ApproveLatestPending(userID, adminID)
	if err != nil {
		return nil, err
	}
	observability.RequestsApproved.Inc()
	logger.Log.Info("service request approved",
		logger.Int64("request", req.ID),
		logger.Int64("user", userID),
		logger.Int64("admin", adminID),
		logger.String("service", req.ServiceKey))
	return req, nil
}

// Pending lists all pending requests, newest first.
func (s *Service) Pending() ([]domain.ServiceRequest, error) {
	return s.store.PendingRequests()
}

// ForUser lists one user's requests of any status, newest first.
func (s *Service) ForUser(userID int64) ([]domain.ServiceRequest, error) {
	return s.store.RequestsForUser(userID)
}
