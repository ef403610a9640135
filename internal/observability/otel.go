package observability

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracing holds the relay's in-process OTel tracer and meter, following
// gateway/middleware.Observability's tracer := otel.Tracer(cfg.ServiceName)
// pattern. No OTLP exporter is wired (see SPEC_FULL.md §11's dropped-dep
// table): spans go to the global tracer provider and the meter provider
// has no reader attached, so nothing is shipped to a collector.
type Tracing struct {
	tracer          trace.Tracer
	meterProvider   *sdkmetric.MeterProvider
	meter           metric.Meter
	notifierCounter metric.Int64Counter
}

// NewTracing builds an in-process tracer/meter pair for serviceName.
func NewTracing(serviceName string) *Tracing {
	mp := sdkmetric.NewMeterProvider()
	meter := mp.Meter(serviceName)
	counter, _ := meter.Int64Counter(
		"nanopay_relay.notifier.dropped",
		metric.WithDescription("job-transition notifications with no registered heartbeat waiter"),
	)
	return &Tracing{
		tracer:          otel.Tracer(serviceName),
		meterProvider:   mp,
		meter:           meter,
		notifierCounter: counter,
	}
}

// Middleware starts a span named route around the wrapped handler.
func (tr *Tracing) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tr.tracer.Start(r.Context(), route)
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RecordNotifierDropped increments the OTel counter mirroring
// services/escrow-gateway/webhook_queue.go's dropped-webhook metric,
// adapted from a queue-drop signal to a heartbeat-waiter-absent signal.
func (tr *Tracing) RecordNotifierDropped(ctx context.Context) {
	tr.notifierCounter.Add(ctx, 1)
}

// WaiterCounter is the subset of *notifier.Notifier that
// NotifierDropRecorder needs, kept as an interface so this package does
// not have to import internal/notifier.
type WaiterCounter interface {
	Notify(pubkey string)
	WaiterCount(pubkey string) int
}

// NotifierDropRecorder wraps a WaiterCounter so it satisfies
// jobs.Notifier while recording a drop (via both RecordNotifierDropped
// methods) whenever a transition notification finds zero registered
// waiters, the same "dropped because nobody was listening" signal
// services/escrow-gateway/webhook_queue.go records for its delivery
// queue.
type NotifierDropRecorder struct {
	Notifier WaiterCounter
	Metrics  *Metrics
	Tracing  *Tracing
}

// Notify satisfies jobs.Notifier.
func (r *NotifierDropRecorder) Notify(pubkey string) {
	dropped := r.Notifier.WaiterCount(pubkey) == 0
	r.Notifier.Notify(pubkey)
	if dropped {
		if r.Metrics != nil {
			r.Metrics.RecordNotifierDropped()
		}
		if r.Tracing != nil {
			r.Tracing.RecordNotifierDropped(context.Background())
		}
	}
}

// Shutdown flushes the meter provider on process exit.
func (tr *Tracing) Shutdown(ctx context.Context) error {
	return tr.meterProvider.Shutdown(ctx)
}
