// Package authguard implements the Auth Guard of spec §4.2: header
// parsing, timestamp-skew checking, canonical-signature verification,
// and nonce replay rejection, applied ahead of every mutating endpoint
// and GET /v1/jobs/:id. It generalizes the structure of
// gateway/auth.Authenticator (parse headers -> check skew -> verify
// signature -> register nonce) from that package's HMAC scheme to the
// ed25519 canonical signer in internal/signing.
package authguard

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
	"github.com/madsb/nanopay-relay-sub000/internal/nonce"
	"github.com/madsb/nanopay-relay-sub000/internal/signing"
	"github.com/madsb/nanopay-relay-sub000/internal/validate"
)

const (
	HeaderPubkey    = "X-Molt-PubKey"
	HeaderTimestamp = "X-Molt-Timestamp"
	HeaderNonce     = "X-Molt-Nonce"
	HeaderSignature = "X-Molt-Signature"
)

type contextKey string

const contextKeyPubkey contextKey = "authguard.pubkey"

// PubkeyFromContext returns the authenticated caller's pubkey attached
// by Guard.Authenticate, and whether one was present.
func PubkeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(contextKeyPubkey).(string)
	return v, ok
}

// Guard verifies the signed request envelope.
type Guard struct {
	nonces *nonce.Store
	skew   time.Duration
	now    func() time.Time
}

// New builds a Guard backed by nonces, rejecting requests whose
// timestamp differs from the server's clock by more than skew.
func New(nonces *nonce.Store, skew time.Duration) *Guard {
	return &Guard{nonces: nonces, skew: skew, now: time.Now}
}

// Authenticate runs the full Auth Guard pipeline of spec §4.2 steps 1-4
// against r and its already-read body, returning the caller's pubkey
// and a context carrying it (step 5) on success.
func (g *Guard) Authenticate(ctx context.Context, r *http.Request, body []byte) (context.Context, string, *apierr.Error) {
	pubkey := r.Header.Get(HeaderPubkey)
	sigHex := r.Header.Get(HeaderSignature)
	nonceVal := r.Header.Get(HeaderNonce)
	tsRaw := r.Header.Get(HeaderTimestamp)

	// Malformed envelope headers are indistinguishable from a forged or
	// garbled signature to the caller: all fold into auth.invalid_signature
	// (401) per spec §4.2/§4.10. Only the skew check below gets its own code.
	if !validate.HexLower(pubkey, 64) {
		return ctx, "", apierr.New(apierr.CodeInvalidSignature, "X-Molt-PubKey must be 64 lowercase hex characters")
	}
	if !validate.HexLower(sigHex, 128) {
		return ctx, "", apierr.New(apierr.CodeInvalidSignature, "X-Molt-Signature must be 128 lowercase hex characters")
	}
	if !validate.HexLowerRange(nonceVal, 32, 64) {
		return ctx, "", apierr.New(apierr.CodeInvalidSignature, "X-Molt-Nonce must be 32-64 lowercase hex characters")
	}

	timestamp, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return ctx, "", apierr.New(apierr.CodeInvalidSignature, "X-Molt-Timestamp must be a decimal seconds value")
	}

	now := g.now()
	skewSeconds := int64(g.skew.Seconds())
	delta := now.Unix() - timestamp
	if delta < 0 {
		delta = -delta
	}
	if delta > skewSeconds {
		return ctx, "", apierr.New(apierr.CodeTimestampSkew, "request timestamp is outside the allowed skew window")
	}

	pathWithQuery := r.URL.RequestURI()
	if !signing.Verify(r.Method, pathWithQuery, timestamp, nonceVal, body, pubkey, sigHex) {
		return ctx, "", apierr.New(apierr.CodeInvalidSignature, "signature verification failed")
	}

	accepted, insertErr := g.nonces.Insert(ctx, pubkey, nonceVal)
	if insertErr != nil {
		return ctx, "", apierr.New(apierr.CodeInternal, "failed to record nonce")
	}
	if !accepted {
		return ctx, "", apierr.New(apierr.CodeNonceReplay, "nonce has already been used")
	}

	ctx = context.WithValue(ctx, contextKeyPubkey, pubkey)
	return ctx, pubkey, nil
}
