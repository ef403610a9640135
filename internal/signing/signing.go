// Package signing implements the canonical request signer: the
// five-line canonical string construction and ed25519 sign/verify pair
// that every mutating request is authenticated against. It generalizes
// the HMAC canonical-string scheme used elsewhere in this codebase's
// gateway auth to an asymmetric, shared-secret-free signature.
package signing

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Canonical builds the five-line canonical byte string that gets signed:
//
//	METHOD
//	PATH_WITH_QUERY
//	TIMESTAMP
//	NONCE
//	SHA256_HEX(BODY_BYTES)
func Canonical(method, pathWithQuery string, timestamp int64, nonce string, body []byte) []byte {
	sum := sha256.Sum256(body)
	bodyHash := hex.EncodeToString(sum[:])
	parts := []string{
		strings.ToUpper(method),
		pathWithQuery,
		strconv.FormatInt(timestamp, 10),
		nonce,
		bodyHash,
	}
	return []byte(strings.Join(parts, "\n"))
}

// Sign produces the lowercase-hex ed25519 detached signature over the
// canonical string for the given request components.
func Sign(method, pathWithQuery string, timestamp int64, nonce string, body []byte, secretKey ed25519.PrivateKey) string {
	msg := Canonical(method, pathWithQuery, timestamp, nonce, body)
	sig := ed25519.Sign(secretKey, msg)
	return hex.EncodeToString(sig)
}

// Verify reports whether sigHex is a valid ed25519 signature over the
// canonical string built from the given components, under pubKeyHex.
// It never panics: malformed hex or a wrong-length key/signature is
// treated as a failed verification, not an error.
func Verify(method, pathWithQuery string, timestamp int64, nonce string, body []byte, pubKeyHex, sigHex string) bool {
	pubBytes, err := hex.DecodeString(pubKeyHex)
	if err != nil || len(pubBytes) != ed25519.PublicKeySize {
		return false
	}
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return false
	}
	msg := Canonical(method, pathWithQuery, timestamp, nonce, body)
	return ed25519.Verify(ed25519.PublicKey(pubBytes), msg, sigBytes)
}
