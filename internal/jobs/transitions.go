package jobs

import (
	"context"
	"time"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
	"github.com/madsb/nanopay-relay-sub000/internal/store"
	"github.com/madsb/nanopay-relay-sub000/internal/validate"
)

// Create starts a new job against offerID on behalf of buyerPubkey.
func (e *Engine) Create(ctx context.Context, buyerPubkey, offerID string, requestPayload []byte) (*store.Job, *apierr.Error) {
	if len(requestPayload) > 64*1024 {
		return nil, apierr.New(apierr.CodePayloadTooLarge, "request_payload exceeds 64 KiB").WithDetails(map[string]string{"field": "request_payload"})
	}

	offer, err := e.catalog.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Active {
		return nil, apierr.New(apierr.CodeInvalidState, "offer is not active")
	}

	now := e.now()
	job := &store.Job{
		JobID:          newJobID(),
		OfferID:        offer.OfferID,
		SellerPubkey:   offer.SellerPubkey,
		BuyerPubkey:    buyerPubkey,
		Status:         store.StatusRequested,
		RequestPayload: requestPayload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if createErr := e.db.WithContext(ctx).Create(job).Error; createErr != nil {
		return nil, apierr.New(apierr.CodeInternal, "failed to create job")
	}
	e.notifier.Notify(job.SellerPubkey)
	return job, nil
}

// QuoteInput is the seller-supplied quote.
type QuoteInput struct {
	AmountRaw      string
	InvoiceAddress string
	ExpiresAt      *time.Time // nil means "use the default TTL"
}

// Quote lets the job's seller set a binding price quote (spec §4.7:
// requested -> quoted).
func (e *Engine) Quote(ctx context.Context, sellerPubkey, jobID string, in QuoteInput) (*store.Job, *apierr.Error) {
	issues := validate.Issues{}
	if !validate.RawAmount(in.AmountRaw) {
		issues.Add("quote_amount_raw", "must be a decimal-integer string")
	}
	if validate.RuneLen(in.InvoiceAddress) == 0 || validate.RuneLen(in.InvoiceAddress) > 128 {
		issues.Add("quote_invoice_address", "must be 1-128 characters")
	}
	if err := issues.Err(); err != nil {
		return nil, err
	}

	return e.transition(ctx, jobID, func(job *store.Job, now time.Time) *apierr.Error {
		if job.Status != store.StatusRequested {
			return apierr.New(apierr.CodeInvalidState, "job is not in requested state")
		}
		if sellerPubkey != job.SellerPubkey {
			return apierr.New(apierr.CodeForbidden, "caller is not the job's seller")
		}

		expiresAt := now.Add(e.cfg.QuoteDefaultTTL)
		if in.ExpiresAt != nil {
			expiresAt = *in.ExpiresAt
		}
		if !expiresAt.After(now) || expiresAt.After(now.Add(e.cfg.QuoteMaxTTL)) {
			return apierr.New(apierr.CodeValidation, "quote_expires_at must be after now and within the maximum quote TTL").
				WithDetails(map[string]string{"field": "quote_expires_at"})
		}

		amount := in.AmountRaw
		address := in.InvoiceAddress
		job.QuoteAmountRaw = &amount
		job.QuoteInvoiceAddress = &address
		job.QuoteExpiresAt = &expiresAt
		job.Status = store.StatusQuoted
		return nil
	})
}

// Accept lets the job's buyer accept the current quote (quoted -> accepted).
func (e *Engine) Accept(ctx context.Context, buyerPubkey, jobID string) (*store.Job, *apierr.Error) {
	return e.transition(ctx, jobID, func(job *store.Job, now time.Time) *apierr.Error {
		if job.Status != store.StatusQuoted {
			return apierr.New(apierr.CodeInvalidState, "job is not in quoted state")
		}
		if buyerPubkey != job.BuyerPubkey {
			return apierr.New(apierr.CodeForbidden, "caller is not the job's buyer")
		}
		if job.QuoteExpiresAt == nil || !job.QuoteExpiresAt.After(now) {
			return apierr.New(apierr.CodeInvalidState, "quote has expired")
		}
		job.Status = store.StatusAccepted
		return nil
	})
}

// Payment records the buyer's on-chain payment transaction hash
// (accepted -> accepted; write-once, idempotent on an identical value).
func (e *Engine) Payment(ctx context.Context, buyerPubkey, jobID, txHash string) (*store.Job, *apierr.Error) {
	if validate.RuneLen(txHash) == 0 || validate.RuneLen(txHash) > 128 {
		return nil, apierr.New(apierr.CodeValidation, "payment_tx_hash must be 1-128 characters").
			WithDetails(map[string]string{"field": "payment_tx_hash"})
	}

	return e.transition(ctx, jobID, func(job *store.Job, now time.Time) *apierr.Error {
		if job.Status != store.StatusAccepted {
			return apierr.New(apierr.CodeInvalidState, "job is not in accepted state")
		}
		if buyerPubkey != job.BuyerPubkey {
			return apierr.New(apierr.CodeForbidden, "caller is not the job's buyer")
		}
		if job.PaymentTxHash != nil {
			if *job.PaymentTxHash == txHash {
				return nil // idempotent success, no-op
			}
			return apierr.New(apierr.CodeInvalidState, "payment_tx_hash is already set to a different value")
		}
		hash := txHash
		job.PaymentTxHash = &hash
		return nil
	})
}

// Lock lets the job's seller acquire or renew the execution lease
// (accepted -> running, or running -> running while extending/holding
// the lease). A caller that is not the job's seller is always rejected
// as forbidden; this relay does not model seller key rotation, so the
// spec's "new seller takes over an expired lease" branch is unreachable
// in practice — see DESIGN.md.
func (e *Engine) Lock(ctx context.Context, sellerPubkey, jobID string) (*store.Job, *apierr.Error) {
	return e.transition(ctx, jobID, func(job *store.Job, now time.Time) *apierr.Error {
		if sellerPubkey != job.SellerPubkey {
			return apierr.New(apierr.CodeForbidden, "caller is not the job's seller")
		}

		switch job.Status {
		case store.StatusAccepted:
			if job.PaymentTxHash == nil {
				return apierr.New(apierr.CodeInvalidState, "payment has not been recorded")
			}
			expires := now.Add(e.cfg.LockTTL)
			owner := sellerPubkey
			job.LockOwner = &owner
			job.LockExpiresAt = &expires
			job.Status = store.StatusRunning
			return nil
		case store.StatusRunning:
			if job.LockOwner != nil && *job.LockOwner == sellerPubkey {
				expires := now.Add(e.cfg.LockTTL)
				job.LockExpiresAt = &expires
				return nil
			}
			if job.LockExpiresAt != nil && job.LockExpiresAt.After(now) {
				return apierr.New(apierr.CodeInvalidState, "job is locked by another seller session")
			}
			expires := now.Add(e.cfg.LockTTL)
			owner := sellerPubkey
			job.LockOwner = &owner
			job.LockExpiresAt = &expires
			return nil
		default:
			return apierr.New(apierr.CodeInvalidState, "job is not in a lockable state")
		}
	})
}

// DeliverInput is exactly one of ResultURL or Error, per spec §4.7's
// terminal-field invariant.
type DeliverInput struct {
	ResultURL *string
	Error     []byte
}

// Deliver terminates a running job as delivered or failed. Only the
// seller holding a currently-valid lease may deliver.
func (e *Engine) Deliver(ctx context.Context, sellerPubkey, jobID string, in DeliverInput) (*store.Job, *apierr.Error) {
	hasResult := in.ResultURL != nil && *in.ResultURL != ""
	hasError := len(in.Error) > 0
	if hasResult == hasError {
		return nil, apierr.New(apierr.CodeValidation, "exactly one of result_url or error must be set").
			WithDetails(map[string]string{"field": "result_url|error"})
	}
	if hasResult && validate.RuneLen(*in.ResultURL) > 2048 {
		return nil, apierr.New(apierr.CodePayloadTooLarge, "result_url exceeds 2048 characters").
			WithDetails(map[string]string{"field": "result_url"})
	}
	if hasError && len(in.Error) > 8*1024 {
		return nil, apierr.New(apierr.CodePayloadTooLarge, "error exceeds 8 KiB").
			WithDetails(map[string]string{"field": "error"})
	}

	return e.transition(ctx, jobID, func(job *store.Job, now time.Time) *apierr.Error {
		if job.Status != store.StatusRunning {
			return apierr.New(apierr.CodeInvalidState, "job is not running")
		}
		if sellerPubkey != job.SellerPubkey || job.LockOwner == nil || *job.LockOwner != sellerPubkey {
			return apierr.New(apierr.CodeForbidden, "caller does not hold the execution lease")
		}
		if job.LockExpiresAt == nil || !job.LockExpiresAt.After(now) {
			return apierr.New(apierr.CodeInvalidState, "execution lease has expired")
		}

		if hasResult {
			job.ResultURL = in.ResultURL
			job.Error = nil
			job.Status = store.StatusDelivered
		} else {
			job.Error = in.Error
			job.ResultURL = nil
			job.Status = store.StatusFailed
		}
		return nil
	})
}

// Cancel lets the job's buyer cancel while the job has not yet started
// running ({requested,quoted,accepted} -> canceled).
func (e *Engine) Cancel(ctx context.Context, buyerPubkey, jobID string) (*store.Job, *apierr.Error) {
	return e.transition(ctx, jobID, func(job *store.Job, now time.Time) *apierr.Error {
		switch job.Status {
		case store.StatusRequested, store.StatusQuoted, store.StatusAccepted:
		default:
			return apierr.New(apierr.CodeInvalidState, "job can no longer be canceled")
		}
		if buyerPubkey != job.BuyerPubkey {
			return apierr.New(apierr.CodeForbidden, "caller is not the job's buyer")
		}
		job.Status = store.StatusCanceled
		job.LockOwner = nil
		job.LockExpiresAt = nil
		return nil
	})
}
