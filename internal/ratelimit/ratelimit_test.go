package ratelimit

import (
	"testing"
	"time"
)

func TestAllowConsumesBurstThenBlocks(t *testing.T) {
	l := New(60*time.Second, map[Scope]int{ScopeIP: 2})

	r := l.Allow(ScopeIP, "1.2.3.4")
	if !r.Allowed {
		t.Fatalf("expected first request to be allowed")
	}
	r = l.Allow(ScopeIP, "1.2.3.4")
	if !r.Allowed {
		t.Fatalf("expected second request (within burst) to be allowed")
	}
	r = l.Allow(ScopeIP, "1.2.3.4")
	if r.Allowed {
		t.Fatalf("expected third request to be rate limited")
	}
	if r.RetryAfter <= 0 {
		t.Fatalf("expected a positive retry-after delay")
	}
}

func TestAllowScopesAreIndependent(t *testing.T) {
	l := New(60*time.Second, map[Scope]int{ScopeIP: 1, ScopePubkey: 1})

	if !l.Allow(ScopeIP, "key").Allowed {
		t.Fatalf("expected ip-scope first request to succeed")
	}
	if !l.Allow(ScopePubkey, "key").Allowed {
		t.Fatalf("expected pubkey-scope request with the same key to succeed independently")
	}
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	if got := RetryAfterSeconds(1500 * time.Millisecond); got != 2 {
		t.Fatalf("expected 1.5s to round up to 2s, got %d", got)
	}
	if got := RetryAfterSeconds(2 * time.Second); got != 2 {
		t.Fatalf("expected exact 2s to stay 2s, got %d", got)
	}
	if got := RetryAfterSeconds(0); got != 0 {
		t.Fatalf("expected zero delay to report 0, got %d", got)
	}
}
