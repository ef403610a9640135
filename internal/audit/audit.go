// Package audit implements the append-only audit trail supplementing
// spec §12: every authenticated mutation is recorded independently of
// the heartbeat notifier, mirroring services/escrow-gateway's
// s.audit(...) call on every handler exit path (server.go) backed by
// SQLiteStore.InsertAuditLog (storage.go).
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

// Recorder appends audit rows to the store. A nil *Recorder is valid and
// records nothing, the same tolerance this codebase extends to a nil
// jobs.Notifier.
type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

// New builds a Recorder backed by db.
func New(db *gorm.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// Record appends one audit row. Failures are not surfaced to the caller:
// like the teacher's s.audit, auditing is best-effort observability and
// must never fail or slow down the request it is recording.
func (r *Recorder) Record(ctx context.Context, callerPubkey, method, path string, requestBody []byte, status int, responseBody []byte) {
	if r == nil || r.db == nil {
		return
	}
	entry := store.AuditRecord{
		ID:             uuid.NewString(),
		CallerPubkey:   callerPubkey,
		Method:         method,
		Path:           path,
		RequestBody:    append([]byte(nil), requestBody...),
		ResponseStatus: status,
		ResponseBody:   append([]byte(nil), responseBody...),
		CreatedAt:      r.now(),
	}
	_ = r.db.WithContext(ctx).Create(&entry).Error
}
