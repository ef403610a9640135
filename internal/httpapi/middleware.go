package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
	"github.com/madsb/nanopay-relay-sub000/internal/idempotency"
	"github.com/madsb/nanopay-relay-sub000/internal/ratelimit"
)

const headerIdempotencyKey = "Idempotency-Key"
const headerIdempotencyReplayed = "Idempotency-Replayed"

// rateLimitIPMiddleware applies the IP-scope token bucket to every /v1/*
// request, per spec §4.5.
func (s *Server) rateLimitIPMiddleware(next http.Handler) http.Handler {
	return s.rateLimitIPScopeMiddleware(ratelimit.ScopeIP, s.cfg.RateLimitIP)(next)
}

// rateLimitIPStrictMiddleware applies the strict-scope token bucket to the
// IP-key bucket of POST /v1/offers and POST /v1/jobs, per spec §4.5: these
// two creation routes get the L=30 strict limit on both their IP bucket and
// their pubkey bucket (the pubkey side is enforced separately inside
// mutatingHandler's strict branch).
func (s *Server) rateLimitIPStrictMiddleware(next http.Handler) http.Handler {
	return s.rateLimitIPScopeMiddleware(ratelimit.ScopeStrict, s.cfg.RateLimitStrict)(next)
}

func (s *Server) rateLimitIPScopeMiddleware(scope ratelimit.Scope, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := s.limiter.Allow(scope, clientIP(r))
			if !result.Allowed {
				s.metrics.RecordRateLimitRejected(string(scope))
				apierr.WriteJSON(w, rateLimitedError(scope, result, limit, s.cfg.RateLimitWindow))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitedError(scope ratelimit.Scope, result ratelimit.Result, limit int, window interface{ Seconds() float64 }) *apierr.Error {
	retryAfter := ratelimit.RetryAfterSeconds(result.RetryAfter)
	return apierr.New(apierr.CodeRateLimited, "rate limit exceeded").
		WithDetails(map[string]any{
			"scope":  string(scope),
			"limit":  limit,
			"window": int(window.Seconds()),
		}).
		WithRetryAfter(retryAfter)
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := splitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handlerFunc is the signature every authenticated endpoint implements,
// after the envelope, rate-limit, and idempotency machinery has run.
type handlerFunc func(ctx context.Context, callerPubkey string, body []byte, r *http.Request) (status int, payload any, apiErr *apierr.Error)

// mutatingHandler wires the control flow of spec §2 around fn:
// Rate Limiter(pubkey) -> Idempotency Store -> fn -> Idempotency Store
// persist -> response. Auth Guard has already run inside this function
// since every route it wraps requires the signed envelope (including
// GET /v1/jobs/:id per spec §4.2).
func (s *Server) mutatingHandler(strict bool, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, readErr := readBody(r, s.cfg.BodyMax)
		if readErr != nil {
			apierr.WriteJSON(w, readErr)
			return
		}

		ctx, pubkey, authErr := s.guard.Authenticate(r.Context(), r, body)
		if authErr != nil {
			apierr.WriteJSON(w, authErr)
			return
		}

		scope := ratelimit.ScopePubkey
		limit := s.cfg.RateLimitPubkey
		if strict {
			scope = ratelimit.ScopeStrict
			limit = s.cfg.RateLimitStrict
		}
		result := s.limiter.Allow(scope, pubkey)
		if !result.Allowed {
			s.metrics.RecordRateLimitRejected(string(scope))
			apierr.WriteJSON(w, rateLimitedError(scope, result, limit, s.cfg.RateLimitWindow))
			return
		}

		idemKey := r.Header.Get(headerIdempotencyKey)
		if idemKey == "" {
			status, payload, apiErr := fn(ctx, pubkey, body, r)
			respBody := marshalResult(status, payload, apiErr)
			finalStatus := status
			if apiErr != nil {
				finalStatus = apiErr.Status()
			}
			s.audit.Record(ctx, pubkey, r.Method, r.URL.Path, body, finalStatus, respBody)
			writeRaw(w, finalStatus, respBody)
			return
		}

		outcome, replayStatus, replayBody, idemErr := s.idem.Begin(ctx, pubkey, idemKey, r.Method, r.URL.Path, body)
		if idemErr != nil {
			apierr.WriteJSON(w, apierr.New(apierr.CodeInternal, "idempotency lookup failed"))
			return
		}
		switch outcome {
		case idempotency.OutcomeConflict:
			apierr.WriteJSON(w, apierr.New(apierr.CodeIdempotencyConflict, "idempotency key reused with a different request body"))
			return
		case idempotency.OutcomeInProgress:
			apierr.WriteJSON(w, apierr.New(apierr.CodeIdempotencyInFlight, "a request with this idempotency key is already in progress"))
			return
		case idempotency.OutcomeReplay:
			w.Header().Set(headerIdempotencyReplayed, "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(replayStatus)
			_, _ = w.Write(replayBody)
			return
		}

		status, payload, apiErr := fn(ctx, pubkey, body, r)
		respBody := marshalResult(status, payload, apiErr)
		finalStatus := status
		if apiErr != nil {
			finalStatus = apiErr.Status()
		}
		_ = s.idem.Finish(ctx, pubkey, idemKey, finalStatus, respBody)
		s.audit.Record(ctx, pubkey, r.Method, r.URL.Path, body, finalStatus, respBody)
		writeRaw(w, finalStatus, respBody)
	}
}

func readBody(r *http.Request, max int64) ([]byte, *apierr.Error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	limited := io.LimitReader(r.Body, max+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, apierr.New(apierr.CodeInternal, "failed to read request body")
	}
	if int64(len(body)) > max {
		return nil, apierr.New(apierr.CodePayloadTooLarge, "request body exceeds the configured maximum").
			WithDetails(map[string]any{"field": "body", "limit_bytes": max})
	}
	return body, nil
}
