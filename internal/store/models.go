// Package store holds the relay's GORM models and the transactional
// access patterns (row-locked reads, upsert-on-conflict) that the
// auth, job lifecycle, and idempotency layers build on. The models
// follow the field-tag conventions of services/otc-gateway/models.
package store

import (
	"time"

	"gorm.io/gorm"
)

// PricingMode is the offer's pricing scheme.
type PricingMode string

const (
	PricingFixed PricingMode = "fixed"
	PricingQuote PricingMode = "quote"
)

// JobStatus is one of the 8 states of the job lifecycle engine.
type JobStatus string

const (
	StatusRequested JobStatus = "requested"
	StatusQuoted    JobStatus = "quoted"
	StatusAccepted  JobStatus = "accepted"
	StatusRunning   JobStatus = "running"
	StatusDelivered JobStatus = "delivered"
	StatusFailed    JobStatus = "failed"
	StatusCanceled  JobStatus = "canceled"
	StatusExpired   JobStatus = "expired"
)

// Terminal reports whether a status is one of the absorbing terminal states.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusCanceled, StatusExpired:
		return true
	default:
		return false
	}
}

// Offer is a seller-published, immutable capability listing.
type Offer struct {
	OfferID       string      `gorm:"type:uuid;primaryKey" json:"offer_id"`
	SellerPubkey  string      `gorm:"size:64;index;not null" json:"seller_pubkey"`
	Title         string      `gorm:"size:120;not null" json:"title"`
	Description   string      `gorm:"size:2000;not null" json:"description"`
	Tags          StringArray `gorm:"type:jsonb" json:"tags"`
	PricingMode   PricingMode `gorm:"size:16;not null" json:"pricing_mode"`
	FixedPriceRaw *string     `gorm:"size:40" json:"fixed_price_raw,omitempty"`
	Active        bool        `gorm:"not null;default:true;index" json:"active"`
	CreatedAt     time.Time   `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

// Job is a single negotiation/execution instance against an Offer.
type Job struct {
	JobID        string    `gorm:"type:uuid;primaryKey" json:"job_id"`
	OfferID      string    `gorm:"type:uuid;index;not null" json:"offer_id"`
	SellerPubkey string    `gorm:"size:64;index;not null" json:"seller_pubkey"`
	BuyerPubkey  string    `gorm:"size:64;index;not null" json:"buyer_pubkey"`
	Status       JobStatus `gorm:"size:16;not null;index" json:"status"`

	RequestPayload []byte `gorm:"type:jsonb" json:"request_payload,omitempty"`

	QuoteAmountRaw       *string    `gorm:"size:40" json:"quote_amount_raw,omitempty"`
	QuoteInvoiceAddress  *string    `gorm:"size:128" json:"quote_invoice_address,omitempty"`
	QuoteExpiresAt       *time.Time `gorm:"index" json:"quote_expires_at,omitempty"`

	PaymentChargeID       *string `gorm:"size:128" json:"payment_charge_id,omitempty"`
	PaymentChargeAddress  *string `gorm:"size:128" json:"payment_charge_address,omitempty"`
	PaymentProvider       *string `gorm:"size:64" json:"payment_provider,omitempty"`
	PaymentSweepTxHash    *string `gorm:"size:128" json:"payment_sweep_tx_hash,omitempty"`
	PaymentTxHash         *string `gorm:"size:128" json:"payment_tx_hash,omitempty"`

	LockOwner     *string    `gorm:"size:64;index" json:"lock_owner,omitempty"`
	LockExpiresAt *time.Time `gorm:"index" json:"lock_expires_at,omitempty"`

	ResultURL *string `gorm:"size:2048" json:"result_url,omitempty"`
	Error     []byte  `gorm:"type:jsonb" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// NonceRecord enforces single-use nonces per pubkey within a sliding window.
type NonceRecord struct {
	Pubkey    string    `gorm:"size:64;primaryKey" json:"pubkey"`
	NonceHash string    `gorm:"size:64;primaryKey" json:"nonce_hash"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

// IdempotencyRecord is the per-(pubkey,key) idempotent-replay ledger.
type IdempotencyRecord struct {
	Pubkey         string  `gorm:"size:64;primaryKey" json:"pubkey"`
	Key            string  `gorm:"size:128;primaryKey" json:"key"`
	RequestHash    string  `gorm:"size:64;not null" json:"request_hash"`
	ResponseStatus *int    `json:"response_status,omitempty"`
	ResponseBody   []byte  `gorm:"type:jsonb" json:"response_body,omitempty"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

// AuditRecord is one row of the append-only audit trail: every
// authenticated mutation's caller, route, and outcome, mirroring
// services/escrow-gateway's AuditEntry/InsertAuditLog shape (api_key,
// method, path, request/response body, response_status, occurred_at)
// adapted to this relay's pubkey-identified callers.
type AuditRecord struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	CallerPubkey   string    `gorm:"size:64;index;not null" json:"caller_pubkey"`
	Method         string    `gorm:"size:8;not null" json:"method"`
	Path           string    `gorm:"size:256;not null" json:"path"`
	RequestBody    []byte    `gorm:"type:jsonb" json:"request_body,omitempty"`
	ResponseStatus int       `gorm:"not null" json:"response_status"`
	ResponseBody   []byte    `gorm:"type:jsonb" json:"response_body,omitempty"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

// AutoMigrate creates/updates every table the relay needs, mirroring
// services/otc-gateway/models.AutoMigrate's single entry-point shape.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Offer{}, &Job{}, &NonceRecord{}, &IdempotencyRecord{}, &AuditRecord{})
}
