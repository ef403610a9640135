package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

// mountAdmin wires the optional, non-spec /v1/admin/stats diagnostics
// endpoint described in SPEC_FULL.md §13. It only mounts when
// RELAY_ADMIN_JWT_SECRET is configured; it never touches offer/job
// state, so none of the envelope/idempotency/rate-limit requirements
// of the spec's mutation surface apply to it.
func (s *Server) mountAdmin(r chi.Router) {
	if s.cfg.AdminJWTSecret == "" {
		return
	}
	r.Route("/v1/admin", func(admin chi.Router) {
		admin.Use(s.requireAdminBearer)
		admin.Get("/stats", s.handleAdminStats)
	})
}

func (s *Server) requireAdminBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		tokenStr := strings.TrimPrefix(authz, "Bearer ")
		if tokenStr == authz || tokenStr == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			return []byte(s.cfg.AdminJWTSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type adminStatsResponse struct {
	JobsByStatus          map[store.JobStatus]int64 `json:"jobs_by_status"`
	ActiveHeartbeatWaiters int                       `json:"active_heartbeat_waiters"`
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	statuses := []store.JobStatus{
		store.StatusRequested, store.StatusQuoted, store.StatusAccepted, store.StatusRunning,
		store.StatusDelivered, store.StatusFailed, store.StatusCanceled, store.StatusExpired,
	}
	resp := adminStatsResponse{
		JobsByStatus:           make(map[store.JobStatus]int64, len(statuses)),
		ActiveHeartbeatWaiters: s.notifier.ActiveWaiterCount(),
	}
	for _, st := range statuses {
		count, err := s.jobs.CountByStatus(r.Context(), st)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp.JobsByStatus[st] = count
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
