package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/madsb/nanopay-relay-sub000/internal/audit"
	"github.com/madsb/nanopay-relay-sub000/internal/authguard"
	"github.com/madsb/nanopay-relay-sub000/internal/catalog"
	"github.com/madsb/nanopay-relay-sub000/internal/config"
	"github.com/madsb/nanopay-relay-sub000/internal/httpapi"
	"github.com/madsb/nanopay-relay-sub000/internal/idempotency"
	"github.com/madsb/nanopay-relay-sub000/internal/jobs"
	"github.com/madsb/nanopay-relay-sub000/internal/nonce"
	"github.com/madsb/nanopay-relay-sub000/internal/notifier"
	"github.com/madsb/nanopay-relay-sub000/internal/observability"
	"github.com/madsb/nanopay-relay-sub000/internal/ratelimit"
	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "optional TOML config file overlay, read before RELAY_* env vars")
	flag.Parse()

	cfg, err := config.LoadWithOverlay(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := observability.SetupLogging("nanopay-relay", cfg.Environment, cfg.LogFile)
	tracing := observability.NewTracing("nanopay-relay")
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	nonces := nonce.New(db, cfg.NonceTTL)
	idem := idempotency.New(db, cfg.IdempotencyTTL)
	limiter := ratelimit.New(cfg.RateLimitWindow, map[ratelimit.Scope]int{
		ratelimit.ScopeIP:     cfg.RateLimitIP,
		ratelimit.ScopePubkey: cfg.RateLimitPubkey,
		ratelimit.ScopeStrict: cfg.RateLimitStrict,
	})
	guard := authguard.New(nonces, cfg.AuthSkew)
	cat := catalog.New(db)
	notif := notifier.New()
	notifyWithDrops := &observability.NotifierDropRecorder{Notifier: notif, Metrics: metrics, Tracing: tracing}
	engine := jobs.New(db, cat, notifyWithDrops, jobs.Config{
		QuoteDefaultTTL:    cfg.QuoteDefaultTTL,
		QuoteMaxTTL:        cfg.QuoteMaxTTL,
		AcceptToPaymentTTL: cfg.AcceptToPaymentTTL,
		LockTTL:            cfg.LockTTL,
	})

	auditor := audit.New(db)

	server := httpapi.NewServer(cfg, guard, idem, limiter, cat, engine, notif, metrics, tracing, auditor)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: otelhttp.NewHandler(server.Router(), "nanopay-relay"),
	}

	go func() {
		logger.Info("relay listening", "addr", cfg.ListenAddr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down relay")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "graceful shutdown failed: %v\n", err)
	}
}
