// Package idempotency implements the per-(pubkey,key) idempotency
// ledger described by spec §4.4, generalizing
// services/otc-gateway/middleware.WithIdempotency's lookup-or-record
// shape to also detect request-hash conflicts and in-progress replays.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

// Outcome is the result of a Begin call.
type Outcome int

const (
	// OutcomeProceed means this is the first sighting of (pubkey,key);
	// the caller should run the mutation and call Finish with the result.
	OutcomeProceed Outcome = iota
	// OutcomeReplay means a final response is already recorded; the
	// caller should resend it verbatim with the replay header set.
	OutcomeReplay
	// OutcomeInProgress means a prior request for this key has not yet
	// finished.
	OutcomeInProgress
	// OutcomeConflict means this key was previously used with a
	// different request body.
	OutcomeConflict
)

// ErrNoKey is returned by Begin when no Idempotency-Key header was supplied;
// callers should treat this as "idempotency machinery does not apply".
var ErrNoKey = errors.New("idempotency: no key supplied")

// Store is the relational idempotency ledger.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// New builds a Store backed by db with the given TTL.
func New(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// HashRequest computes the SHA-256 hex digest over "METHOD\nPATH\n"
// followed by the raw request body, per spec §3's IdempotencyRecord definition.
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte("\n"))
	h.Write([]byte(path))
	h.Write([]byte("\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin looks up (pubkey,key). On first sighting it inserts an
// in-progress row (response_status=null) and returns OutcomeProceed. On
// repeat sighting it returns OutcomeConflict (request_hash mismatch),
// OutcomeInProgress (no response recorded yet), or OutcomeReplay with the
// previously recorded status/body.
func (s *Store) Begin(ctx context.Context, pubkey, key, method, path string, body []byte) (outcome Outcome, status int, responseBody []byte, err error) {
	if key == "" {
		return OutcomeProceed, 0, nil, ErrNoKey
	}
	requestHash := HashRequest(method, path, body)

	cutoff := s.now().Add(-s.ttl)
	_ = s.db.WithContext(ctx).
		Where("pubkey = ? AND created_at < ?", pubkey, cutoff).
		Delete(&store.IdempotencyRecord{}).Error

	var existing store.IdempotencyRecord
	err = s.db.WithContext(ctx).
		Where("pubkey = ? AND key = ?", pubkey, key).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record := store.IdempotencyRecord{
			Pubkey:      pubkey,
			Key:         key,
			RequestHash: requestHash,
			CreatedAt:   s.now(),
		}
		if createErr := s.db.WithContext(ctx).Create(&record).Error; createErr != nil {
			return OutcomeProceed, 0, nil, createErr
		}
		return OutcomeProceed, 0, nil, nil
	case err != nil:
		return OutcomeProceed, 0, nil, err
	}

	if existing.RequestHash != requestHash {
		return OutcomeConflict, 0, nil, nil
	}
	if existing.ResponseStatus == nil {
		return OutcomeInProgress, 0, nil, nil
	}
	return OutcomeReplay, *existing.ResponseStatus, existing.ResponseBody, nil
}

// Finish records the final response for (pubkey,key) so future repeats
// of the same key replay this response verbatim.
func (s *Store) Finish(ctx context.Context, pubkey, key string, status int, responseBody []byte) error {
	return s.db.WithContext(ctx).
		Model(&store.IdempotencyRecord{}).
		Where("pubkey = ? AND key = ?", pubkey, key).
		Updates(map[string]any{
			"response_status": status,
			"response_body":   responseBody,
		}).Error
}
