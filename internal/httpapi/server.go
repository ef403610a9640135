// Package httpapi assembles the relay's chi router and per-endpoint
// handlers, wiring the Rate Limiter -> Auth Guard -> Rate Limiter ->
// Idempotency Store -> Validation -> domain handler -> Notifier ->
// Idempotency Store control flow of spec §2 around every mutation.
// The router shape follows gateway/routes/router.go and
// services/otc-gateway/server/server.go's buildRouter.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/madsb/nanopay-relay-sub000/internal/audit"
	"github.com/madsb/nanopay-relay-sub000/internal/authguard"
	"github.com/madsb/nanopay-relay-sub000/internal/catalog"
	"github.com/madsb/nanopay-relay-sub000/internal/config"
	"github.com/madsb/nanopay-relay-sub000/internal/idempotency"
	"github.com/madsb/nanopay-relay-sub000/internal/jobs"
	"github.com/madsb/nanopay-relay-sub000/internal/notifier"
	"github.com/madsb/nanopay-relay-sub000/internal/observability"
	"github.com/madsb/nanopay-relay-sub000/internal/ratelimit"
)

// Server bundles every component the HTTP surface dispatches into.
type Server struct {
	cfg      *config.Config
	guard    *authguard.Guard
	idem     *idempotency.Store
	limiter  *ratelimit.Limiter
	catalog  *catalog.Catalog
	jobs     *jobs.Engine
	notifier *notifier.Notifier
	metrics  *observability.Metrics
	tracing  *observability.Tracing
	audit    *audit.Recorder
	now      func() time.Time
}

// NewServer builds a Server from its already-constructed components.
func NewServer(cfg *config.Config, guard *authguard.Guard, idem *idempotency.Store, limiter *ratelimit.Limiter, cat *catalog.Catalog, engine *jobs.Engine, notif *notifier.Notifier, metrics *observability.Metrics, tracing *observability.Tracing, auditRecorder *audit.Recorder) *Server {
	return &Server{
		cfg:      cfg,
		guard:    guard,
		idem:     idem,
		limiter:  limiter,
		catalog:  cat,
		jobs:     engine,
		notifier: notif,
		metrics:  metrics,
		tracing:  tracing,
		audit:    auditRecorder,
		now:      time.Now,
	}
}

// Router builds the chi router for the whole relay surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	r.Route("/v1", func(v1 chi.Router) {
		// offers.create and jobs.create are the strict-scope routes of spec
		// §4.5: they get their own group so the strict IP-bucket limiter
		// replaces (rather than stacks with) the blanket IP middleware the
		// rest of /v1 uses.
		v1.Group(func(strict chi.Router) {
			strict.Use(s.rateLimitIPStrictMiddleware)

			strict.With(s.tracing.Middleware("offers.create"), s.metrics.Middleware("offers.create")).
				Post("/offers", s.mutatingHandler(true, s.handleCreateOffer))
			strict.With(s.tracing.Middleware("jobs.create"), s.metrics.Middleware("jobs.create")).
				Post("/jobs", s.mutatingHandler(true, s.handleCreateJob))
		})

		v1.Group(func(v1 chi.Router) {
			v1.Use(s.rateLimitIPMiddleware)

			v1.With(s.tracing.Middleware("offers.list"), s.metrics.Middleware("offers.list")).
				Get("/offers", s.handleListOffers)

			v1.With(s.tracing.Middleware("jobs.list"), s.metrics.Middleware("jobs.list")).
				Get("/jobs", s.mutatingHandler(false, s.handleListJobs))
			v1.With(s.tracing.Middleware("jobs.get"), s.metrics.Middleware("jobs.get")).
				Get("/jobs/{jobID}", s.mutatingHandler(false, s.handleGetJob))

			v1.With(s.tracing.Middleware("jobs.quote"), s.metrics.Middleware("jobs.quote")).
				Post("/jobs/{jobID}/quote", s.mutatingHandler(false, s.handleQuote))
			v1.With(s.tracing.Middleware("jobs.accept"), s.metrics.Middleware("jobs.accept")).
				Post("/jobs/{jobID}/accept", s.mutatingHandler(false, s.handleAccept))
			v1.With(s.tracing.Middleware("jobs.payment"), s.metrics.Middleware("jobs.payment")).
				Post("/jobs/{jobID}/payment", s.mutatingHandler(false, s.handlePayment))
			v1.With(s.tracing.Middleware("jobs.lock"), s.metrics.Middleware("jobs.lock")).
				Post("/jobs/{jobID}/lock", s.mutatingHandler(false, s.handleLock))
			v1.With(s.tracing.Middleware("jobs.deliver"), s.metrics.Middleware("jobs.deliver")).
				Post("/jobs/{jobID}/deliver", s.mutatingHandler(false, s.handleDeliver))
			v1.With(s.tracing.Middleware("jobs.cancel"), s.metrics.Middleware("jobs.cancel")).
				Post("/jobs/{jobID}/cancel", s.mutatingHandler(false, s.handleCancel))

			v1.With(s.tracing.Middleware("seller.heartbeat"), s.metrics.Middleware("seller.heartbeat")).
				Get("/seller/heartbeat", s.mutatingHandler(false, s.handleHeartbeat))
		})
	})

	s.mountAdmin(r)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
