// Package nonce implements the replay-defense Nonce Store: an
// atomic insert-if-absent on (pubkey, nonce_hash) backed by the
// relational store, fronted by an in-memory cache for low-latency
// repeat checks, following the NoncePersistence split this codebase
// uses elsewhere (gateway/auth.Authenticator + NoncePersistence). The
// in-memory cache's own TTL eviction mirrors
// gateway/auth.nonceStore.evictExpired so the fast-path cache is a
// latency optimization over the DB's sliding window, not a stricter,
// unbounded authority of its own.
package nonce

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

// Store provides atomic single-use nonce tracking within a sliding TTL window.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[string]time.Time // "pubkey|nonceHash" -> insertion time, this process only
}

// New builds a Store backed by db, rejecting nonces seen again within ttl.
func New(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{
		db:    db,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]time.Time),
	}
}

// evictExpiredLocked drops cache entries older than ttl, mirroring
// gateway/auth.nonceStore.evictExpired. Callers must hold s.mu.
func (s *Store) evictExpiredLocked(now time.Time) {
	cutoff := now.Add(-s.ttl)
	for key, insertedAt := range s.cache {
		if insertedAt.Before(cutoff) {
			delete(s.cache, key)
		}
	}
}

// HashNonce returns the lowercase-hex SHA-256 digest stored in place of
// the raw nonce, so the store never has to retain the nonce value itself.
func HashNonce(nonce string) string {
	sum := sha256.Sum256([]byte(nonce))
	return hex.EncodeToString(sum[:])
}

// Insert atomically records (pubkey, nonce) as seen. It reports false if
// the pair was already present within the TTL window (a replay), or an
// error on storage failure. It opportunistically sweeps expired rows for
// this pubkey before inserting, per spec §4.3.
func (s *Store) Insert(ctx context.Context, pubkey, rawNonce string) (bool, error) {
	hash := HashNonce(rawNonce)
	cacheKey := pubkey + "|" + hash
	now := s.now()

	s.mu.Lock()
	s.evictExpiredLocked(now)
	if _, seen := s.cache[cacheKey]; seen {
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	cutoff := now.Add(-s.ttl)
	if err := s.db.WithContext(ctx).
		Where("pubkey = ? AND created_at < ?", pubkey, cutoff).
		Delete(&store.NonceRecord{}).Error; err != nil {
		return false, err
	}

	record := store.NonceRecord{Pubkey: pubkey, NonceHash: hash, CreatedAt: now}
	result := s.db.WithContext(ctx).
		Clauses(onConflictDoNothing()).
		Create(&record)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		// Either already present (replay) or raced with a concurrent
		// insert that won; either way this caller does not own the nonce.
		return false, nil
	}

	s.mu.Lock()
	s.cache[cacheKey] = now
	s.mu.Unlock()

	return true, nil
}
