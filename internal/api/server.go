// Package api provides the admin HTTP server: read access to the ledger,
// the approval and grant operations, and the users export — the same core
// operations the bot exposes, for dashboards and scripting.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/selloriy/selloriy/internal/app/ledger"
	"github.com/selloriy/selloriy/internal/app/redeem"
	"github.com/selloriy/selloriy/internal/domain"
	"github.com/selloriy/selloriy/internal/export"
	"github.com/selloriy/selloriy/pkg/logger"
)

// Server is the admin API server.
type Server struct {
	ledger *ledger.Service
	redeem *redeem.Service

	token          string
	metricsEnabled bool
}

// NewServer creates the API server. token guards every /api route; an empty
// token disables them entirely, leaving only /health and /metrics.
func NewServer(led *ledger.Service, red *redeem.Service, token string) *Server {
	return &Server{ledger: led, redeem: red, token: token}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	if s.token != "" {
		r.Route("/api", func(r chi.Router) {
			r.Use(s.withAuth)

			r.Get("/stats", s.handleStats)
			r.Get("/leaderboard", s.handleLeaderboard)
			r.Get("/requests/pending", s.handlePending)
			r.Get("/users/{id}/balance", s.handleBalance)
			r.Get("/users/{id}/requests", s.handleUserRequests)
			r.Post("/users/{id}/approve", s.handleApprove)
			r.Post("/users/{id}/grants", s.handleGrant)
			r.Get("/export", s.handleExport)
		})
	}

	return r
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		want := "Bearer " + s.token
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Handlers ───────────────────────────────────────────────────────────────

// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /api/leaderboard?limit=N
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	board, err := s.ledger.Leaderboard(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": board})
}

// GET /api/requests/pending
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.redeem.Pending()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": requestsPayload(pending)})
}

// GET /api/users/{id}/balance
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if _, err := s.ledger.User(id); err != nil {
		writeNotFoundOr500(w, err)
		return
	}
	bal, err := s.ledger.Compute(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

// GET /api/users/{id}/requests
func (s *Server) handleUserRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	requests, err := s.redeem.ForUser(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requestsPayload(requests)})
}

// POST /api/users/{id}/approve
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var body struct {
		AdminID int64 `json:"admin_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AdminID == 0 {
		writeError(w, http.StatusBadRequest, "admin_id is required")
		return
	}

	settled, err := s.redeem.ApproveLatest(id, body.AdminID)
	if errors.Is(err, domain.ErrNoPendingRequest) {
		// Nothing to approve is an answer, not a failure.
		writeJSON(w, http.StatusOK, map[string]any{"approved": nil})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approved": requestPayload(*settled)})
}

// POST /api/users/{id}/grants
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var body struct {
		Amount  json.Number `json:"amount"`
		Reason  string      `json:"reason"`
		AdminID int64       `json:"admin_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AdminID == 0 {
		writeError(w, http.StatusBadRequest, "amount and admin_id are required")
		return
	}
	amount, err := decimal.NewFromString(body.Amount.String())
	if err != nil || amount.IsZero() {
		writeError(w, http.StatusBadRequest, "amount must be a non-zero number")
		return
	}
	if _, err := s.ledger.User(id); err != nil {
		writeNotFoundOr500(w, err)
		return
	}

	if err := s.ledger.Grant(id, amount, body.Reason, body.AdminID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	bal, err := s.ledger.Compute(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

// GET /api/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	users, err := s.ledger.AllUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.SnapshotName()+`"`)
	if err := export.WriteUsers(w, users); err != nil {
		logger.Log.Error("export stream failed", logger.Error(err))
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func writeNotFoundOr500(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// requestPayload flattens a ServiceRequest for JSON.
func requestPayload(r domain.ServiceRequest) map[string]any {
	p := map[string]any{
		"id":          r.ID,
		"user_id":     r.UserID,
		"service_key": r.ServiceKey,
		"cost":        r.Cost.IntPart(),
		"status":      r.Status,
		"created_at":  r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.ApprovedAt != nil {
		p["approved_at"] = r.ApprovedAt.UTC().Format(time.RFC3339)
		p["admin_id"] = r.AdminID
	}
	return p
}

func requestsPayload(requests []domain.ServiceRequest) []map[string]any {
	out := make([]map[string]any, 0, len(requests))
	for _, r := range requests {
		out = append(out, requestPayload(r))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("encoding response", logger.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
