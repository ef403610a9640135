// Package ratelimit implements the per-(scope,key) token bucket limiter
// described by spec §4.5, generalizing the per-route visitor-map limiter
// in gateway/middleware/ratelimit.go to continuous refill with an exact
// Retry-After computation via rate.Reservation.DelayFrom.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Scope names the three rate-limit buckets spec §4.5 defines.
type Scope string

const (
	ScopeIP      Scope = "ip"
	ScopePubkey  Scope = "pubkey"
	ScopeStrict  Scope = "strict"
)

type bucketKey struct {
	scope Scope
	key   string
}

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter tracks one token bucket per (scope, key).
type Limiter struct {
	mu       sync.Mutex
	window   time.Duration
	limits   map[Scope]int
	buckets  map[bucketKey]*entry
	now      func() time.Time
	idleTTL  time.Duration
}

// New builds a Limiter with window W and a per-scope capacity L (spec §4.5:
// continuous refill rate L/W, bucket swept when idle for more than 2W).
func New(window time.Duration, limits map[Scope]int) *Limiter {
	return &Limiter{
		window:  window,
		limits:  limits,
		buckets: make(map[bucketKey]*entry),
		now:     time.Now,
		idleTTL: 2 * window,
	}
}

// Result reports the outcome of an Allow call.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Allow attempts to consume one token from the (scope,key) bucket. When
// denied, RetryAfter holds the wait the spec mandates clients honor
// before retrying, rounded up to whole seconds by the caller.
func (l *Limiter) Allow(scope Scope, key string) Result {
	capacity, ok := l.limits[scope]
	if !ok || capacity <= 0 {
		return Result{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	bk := bucketKey{scope: scope, key: key}
	e, ok := l.buckets[bk]
	if !ok {
		refillPerSecond := rate.Limit(float64(capacity) / l.window.Seconds())
		e = &entry{limiter: rate.NewLimiter(refillPerSecond, capacity)}
		l.buckets[bk] = e
	}
	e.lastAccess = now

	reservation := e.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Result{Allowed: false, RetryAfter: l.window}
	}
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return Result{Allowed: true}
	}
	reservation.CancelAt(now)
	return Result{Allowed: false, RetryAfter: delay}
}

func (l *Limiter) sweepLocked(now time.Time) {
	for k, e := range l.buckets {
		if now.Sub(e.lastAccess) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
}

// RetryAfterSeconds rounds a delay up to whole seconds, per spec §4.5's
// ceil((1-tokens)/(L/W)) requirement.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
