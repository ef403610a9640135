package authguard

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
	"github.com/madsb/nanopay-relay-sub000/internal/nonce"
	"github.com/madsb/nanopay-relay-sub000/internal/signing"
	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

func newGuard(t *testing.T, skew time.Duration) (*Guard, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	db := store.NewTestDB(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return New(nonce.New(db, 10*time.Minute), skew), pub, priv
}

func TestAuthenticateAcceptsValidEnvelope(t *testing.T) {
	g, pub, priv := newGuard(t, 60*time.Second)
	now := time.Now()
	g.now = func() time.Time { return now }

	body := []byte(`{"a":1}`)
	ts := now.Unix()
	nonceVal := "0123456789abcdef0123456789abcdef"
	sig := signing.Sign("POST", "/v1/jobs", ts, nonceVal, body, priv)

	req := httptest.NewRequest("POST", "/v1/jobs", nil)
	req.Header.Set(HeaderPubkey, hex.EncodeToString(pub))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderNonce, nonceVal)
	req.Header.Set(HeaderSignature, sig)

	_, caller, apiErr := g.Authenticate(context.Background(), req, body)
	require.Nil(t, apiErr)
	require.Equal(t, hex.EncodeToString(pub), caller)
}

func TestAuthenticateRejectsNonceReplay(t *testing.T) {
	g, pub, priv := newGuard(t, 60*time.Second)
	now := time.Now()
	g.now = func() time.Time { return now }

	body := []byte(`{}`)
	ts := now.Unix()
	nonceVal := "abcdefabcdefabcdefabcdefabcdefab"
	sig := signing.Sign("POST", "/v1/jobs", ts, nonceVal, body, priv)

	r1 := httptest.NewRequest("POST", "/v1/jobs", nil)
	r1.Header.Set(HeaderPubkey, hex.EncodeToString(pub))
	r1.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	r1.Header.Set(HeaderNonce, nonceVal)
	r1.Header.Set(HeaderSignature, sig)
	_, _, apiErr := g.Authenticate(context.Background(), r1, body)
	require.Nil(t, apiErr)

	r2 := httptest.NewRequest("POST", "/v1/jobs", nil)
	r2.Header.Set(HeaderPubkey, hex.EncodeToString(pub))
	r2.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	r2.Header.Set(HeaderNonce, nonceVal)
	r2.Header.Set(HeaderSignature, sig)
	_, _, apiErr = g.Authenticate(context.Background(), r2, body)
	require.NotNil(t, apiErr)
	require.Equal(t, apierr.CodeNonceReplay, apiErr.ErrCode)
}

func TestAuthenticateRejectsSkew(t *testing.T) {
	g, pub, priv := newGuard(t, 60*time.Second)
	now := time.Now()
	g.now = func() time.Time { return now }

	body := []byte(`{}`)
	ts := now.Add(-61 * time.Second).Unix()
	nonceVal := "fedcbafedcbafedcbafedcbafedcbafe"
	sig := signing.Sign("POST", "/v1/jobs", ts, nonceVal, body, priv)

	r := httptest.NewRequest("POST", "/v1/jobs", nil)
	r.Header.Set(HeaderPubkey, hex.EncodeToString(pub))
	r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	r.Header.Set(HeaderNonce, nonceVal)
	r.Header.Set(HeaderSignature, sig)

	_, _, apiErr := g.Authenticate(context.Background(), r, body)
	require.NotNil(t, apiErr)
	require.Equal(t, apierr.CodeTimestampSkew, apiErr.ErrCode)
}

func TestAuthenticateRejectsBadSignature(t *testing.T) {
	g, pub, _ := newGuard(t, 60*time.Second)
	now := time.Now()
	g.now = func() time.Time { return now }

	body := []byte(`{}`)
	ts := now.Unix()
	nonceVal := "00000000000000000000000000000a0a"[:32]

	r := httptest.NewRequest("POST", "/v1/jobs", nil)
	r.Header.Set(HeaderPubkey, hex.EncodeToString(pub))
	r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	r.Header.Set(HeaderNonce, nonceVal)
	r.Header.Set(HeaderSignature, hex.EncodeToString(make([]byte, 64)))

	_, _, apiErr := g.Authenticate(context.Background(), r, body)
	require.NotNil(t, apiErr)
	require.Equal(t, apierr.CodeInvalidSignature, apiErr.ErrCode)
}

func TestAuthenticateRejectsMalformedHeaders(t *testing.T) {
	g, pub, priv := newGuard(t, 60*time.Second)
	now := time.Now()
	g.now = func() time.Time { return now }

	body := []byte(`{}`)
	ts := now.Unix()
	nonceVal := "00112233445566770011223344556677"
	sig := signing.Sign("POST", "/v1/jobs", ts, nonceVal, body, priv)

	cases := []struct {
		name   string
		mutate func(r *http.Request)
	}{
		{"short pubkey", func(r *http.Request) { r.Header.Set(HeaderPubkey, "deadbeef") }},
		{"non-hex pubkey", func(r *http.Request) {
			r.Header.Set(HeaderPubkey, "zz"+hex.EncodeToString(pub)[2:])
		}},
		{"short signature", func(r *http.Request) { r.Header.Set(HeaderSignature, "ab") }},
		{"short nonce", func(r *http.Request) { r.Header.Set(HeaderNonce, "ab") }},
		{"non-numeric timestamp", func(r *http.Request) { r.Header.Set(HeaderTimestamp, "not-a-number") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/v1/jobs", nil)
			r.Header.Set(HeaderPubkey, hex.EncodeToString(pub))
			r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
			r.Header.Set(HeaderNonce, nonceVal)
			r.Header.Set(HeaderSignature, sig)
			tc.mutate(r)

			_, _, apiErr := g.Authenticate(context.Background(), r, body)
			require.NotNil(t, apiErr)
			require.Equal(t, apierr.CodeInvalidSignature, apiErr.ErrCode)
		})
	}
}
