package signing

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"
)

func generateKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, priv
}

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv := generateKey(t)
	pubHex := hex.EncodeToString(pub)
	body := []byte(`{"hello":"world"}`)

	sig := Sign("post", "/v1/offers?x=1", 1700000000, "abcdef0123456789abcdef0123456789", body, priv)
	if !Verify("POST", "/v1/offers?x=1", 1700000000, "abcdef0123456789abcdef0123456789", body, pubHex, sig) {
		t.Fatalf("expected verification to succeed for matching inputs")
	}
}

func TestVerifyRejectsBitFlips(t *testing.T) {
	pub, priv := generateKey(t)
	pubHex := hex.EncodeToString(pub)
	body := []byte(`{"a":1}`)
	nonce := "0123456789abcdef0123456789abcdef"
	sig := Sign("POST", "/v1/jobs", 1700000000, nonce, body, priv)

	cases := []struct {
		name   string
		method string
		path   string
		ts     int64
		nonce  string
		body   []byte
		sig    string
	}{
		{"method", "GET", "/v1/jobs", 1700000000, nonce, body, sig},
		{"path", "POST", "/v1/jobs/other", 1700000000, nonce, body, sig},
		{"timestamp", "POST", "/v1/jobs", 1700000001, nonce, body, sig},
		{"nonce", "POST", "/v1/jobs", 1700000000, "ffffffffffffffffffffffffffffffff", body, sig},
		{"body", "POST", "/v1/jobs", 1700000000, nonce, []byte(`{"a":2}`), sig},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if Verify(c.method, c.path, c.ts, c.nonce, c.body, pubHex, c.sig) {
				t.Fatalf("expected verification to fail when %s differs", c.name)
			}
		})
	}

	flipped := []byte(sig)
	flipped[0] ^= 1
	if Verify("POST", "/v1/jobs", 1700000000, nonce, body, pubHex, string(flipped)) {
		t.Fatalf("expected verification to fail for a flipped signature byte")
	}
}

func TestVerifyNeverPanicsOnMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		pub  string
		sig  string
	}{
		{"short pubkey", "ab", "00"},
		{"non-hex pubkey", strings.Repeat("z", 64), strings.Repeat("0", 128)},
		{"short signature", strings.Repeat("0", 64), "ab"},
		{"non-hex signature", strings.Repeat("0", 64), strings.Repeat("z", 128)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if Verify("POST", "/v1/jobs", 1700000000, "nonce", []byte("body"), c.pub, c.sig) {
				t.Fatalf("expected malformed input to verify false, not panic")
			}
		})
	}
}
