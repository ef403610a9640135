// Package jobs implements the Job Lifecycle Engine, the core of the
// relay per spec §4.7: the 8-state job machine, role-scoped
// transitions, the lazy-expiry protocol, and the cooperative lock
// lease. Row-level locking for transitions follows the
// clause.Locking{Strength:"UPDATE"} pattern this codebase's
// services/otc-gateway/server.transitionInvoice uses for its own
// invoice state machine.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
	"github.com/madsb/nanopay-relay-sub000/internal/catalog"
	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

// Notifier is notified after every transition of a job's seller_pubkey,
// since the heartbeat long-poll is a seller-only surface (spec §4.8).
type Notifier interface {
	Notify(sellerPubkey string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string) {}

// Config bundles the lifecycle engine's time-bound knobs (spec §6).
type Config struct {
	QuoteDefaultTTL    time.Duration
	QuoteMaxTTL        time.Duration
	AcceptToPaymentTTL time.Duration
	LockTTL            time.Duration
}

// Engine implements the job lifecycle against the relational store.
type Engine struct {
	db       *gorm.DB
	catalog  *catalog.Catalog
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// New builds an Engine. notifier may be nil, in which case transitions
// are silently not observed by the heartbeat (tolerated per spec §4.8's
// advisory-notification design note).
func New(db *gorm.DB, cat *catalog.Catalog, notifier Notifier, cfg Config) *Engine {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Engine{db: db, catalog: cat, notifier: notifier, cfg: cfg, now: time.Now}
}

// applyLazyExpiry implements spec §4.7's lazy expiry protocol, evaluated
// against the row already held under an exclusive lock. It returns true
// if the job's status was changed.
func (e *Engine) applyLazyExpiry(job *store.Job, now time.Time) bool {
	switch job.Status {
	case store.StatusQuoted:
		if job.QuoteExpiresAt != nil && !job.QuoteExpiresAt.After(now) {
			job.Status = store.StatusExpired
			return true
		}
	case store.StatusAccepted:
		if job.PaymentTxHash == nil && !job.UpdatedAt.Add(e.cfg.AcceptToPaymentTTL).After(now) {
			job.Status = store.StatusExpired
			return true
		}
	}
	return false
}

// transition loads jobID under a row-level exclusive lock, applies lazy
// expiry, runs fn against the (possibly just-expired) row, and persists
// whatever fn and lazy expiry changed. fn returns nil to accept the
// mutation or an error to reject it; every accepted mutation triggers a
// notifier wakeup for the job's seller.
func (e *Engine) transition(ctx context.Context, jobID string, fn func(job *store.Job, now time.Time) *apierr.Error) (*store.Job, *apierr.Error) {
	var result store.Job
	var outErr *apierr.Error
	notify := false

	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job store.Job
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("job_id = ?", jobID).First(&job).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			outErr = apierr.New(apierr.CodeNotFound, "job not found")
			return nil
		case err != nil:
			outErr = apierr.New(apierr.CodeInternal, "failed to load job")
			return nil
		}

		now := e.now()
		expired := e.applyLazyExpiry(&job, now)

		apiErr := fn(&job, now)
		if apiErr != nil {
			outErr = apiErr
			if expired {
				// Persist the lazy-expiry side effect even though the
				// caller's requested transition itself failed.
				if saveErr := tx.Save(&job).Error; saveErr != nil {
					return saveErr
				}
			}
			return nil
		}

		if saveErr := tx.Save(&job).Error; saveErr != nil {
			return saveErr
		}
		result = job
		notify = true
		return nil
	})

	if txErr != nil {
		return nil, apierr.New(apierr.CodeInternal, "transition failed")
	}
	if outErr != nil {
		return nil, outErr
	}
	if notify {
		e.notifier.Notify(result.SellerPubkey)
	}
	return &result, nil
}

// Get loads a job for a participant read. Per this relay's resolution
// of spec §9's open question on lazy expiry scope, pure reads (GET) do
// not trigger lazy expiry — only read-for-mutation does — so a GET may
// observe a job whose quote has logically expired but not yet been
// written back as such.
func (e *Engine) Get(ctx context.Context, callerPubkey, jobID string) (*store.Job, *apierr.Error) {
	var job store.Job
	err := e.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apierr.New(apierr.CodeNotFound, "job not found")
	case err != nil:
		return nil, apierr.New(apierr.CodeInternal, "failed to load job")
	}
	if callerPubkey != job.BuyerPubkey && callerPubkey != job.SellerPubkey {
		return nil, apierr.New(apierr.CodeForbidden, "caller is not a participant on this job")
	}
	return &job, nil
}

// ListParams filters a caller's own jobs (as buyer or seller).
type ListParams struct {
	Limit  int
	Offset int
}

// ListResult is a page of jobs.
type ListResult struct {
	Jobs   []store.Job
	Limit  int
	Offset int
	Total  int64
}

// List returns jobs where callerPubkey is either the buyer or the seller.
func (e *Engine) List(ctx context.Context, callerPubkey string, params ListParams) (*ListResult, *apierr.Error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	base := e.db.WithContext(ctx).Model(&store.Job{}).
		Where("buyer_pubkey = ? OR seller_pubkey = ?", callerPubkey, callerPubkey)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, apierr.New(apierr.CodeInternal, "failed to count jobs")
	}

	var jobs []store.Job
	if err := base.Order("created_at DESC").Limit(limit).Offset(offset).Find(&jobs).Error; err != nil {
		return nil, apierr.New(apierr.CodeInternal, "failed to list jobs")
	}

	return &ListResult{Jobs: jobs, Limit: limit, Offset: offset, Total: total}, nil
}

// newJobID generates an opaque job identifier, mirroring the uuid usage
// throughout services/otc-gateway/models.
func newJobID() string {
	return uuid.NewString()
}
