// Package catalog implements the Offer Catalog component of spec §4.6:
// seller-scoped creation of immutable offers and a public, filterable
// listing endpoint.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
	"github.com/madsb/nanopay-relay-sub000/internal/store"
	"github.com/madsb/nanopay-relay-sub000/internal/validate"
)

// Catalog provides offer creation and listing against the store.
type Catalog struct {
	db  *gorm.DB
	now func() time.Time
}

// New builds a Catalog backed by db.
func New(db *gorm.DB) *Catalog {
	return &Catalog{db: db, now: time.Now}
}

// CreateInput is the caller-supplied portion of an offer creation request.
type CreateInput struct {
	Title         string
	Description   string
	Tags          []string
	PricingMode   store.PricingMode
	FixedPriceRaw string
}

// Create validates and persists a new offer owned by sellerPubkey
// (always derived from the authenticated caller, never from the body).
func (c *Catalog) Create(ctx context.Context, sellerPubkey string, in CreateInput) (*store.Offer, *apierr.Error) {
	issues := validate.Issues{}

	if validate.RuneLen(in.Title) == 0 || validate.RuneLen(in.Title) > 120 {
		issues.Add("title", "must be 1-120 characters")
	}
	if validate.RuneLen(in.Description) > 2000 {
		issues.Add("description", "must be at most 2000 characters")
	}
	if len(in.Tags) > 16 {
		issues.Add("tags", "must have at most 16 entries")
	}
	for _, tag := range in.Tags {
		if validate.RuneLen(tag) == 0 || validate.RuneLen(tag) > 32 {
			issues.Add("tags", "each tag must be 1-32 characters")
			break
		}
	}

	switch in.PricingMode {
	case store.PricingFixed:
		if !validate.RawAmount(in.FixedPriceRaw) {
			issues.Add("fixed_price_raw", "required and must be a decimal-integer string when pricing_mode is fixed")
		}
	case store.PricingQuote:
		if in.FixedPriceRaw != "" {
			issues.Add("fixed_price_raw", "must be omitted when pricing_mode is quote")
		}
	default:
		issues.Add("pricing_mode", "must be fixed or quote")
	}

	if err := issues.Err(); err != nil {
		return nil, err
	}

	offer := &store.Offer{
		OfferID:      uuid.NewString(),
		SellerPubkey: sellerPubkey,
		Title:        in.Title,
		Description:  in.Description,
		Tags:         store.StringArray(in.Tags),
		PricingMode:  in.PricingMode,
		Active:       true,
		CreatedAt:    c.now(),
	}
	if in.PricingMode == store.PricingFixed {
		price := in.FixedPriceRaw
		offer.FixedPriceRaw = &price
	}

	if err := c.db.WithContext(ctx).Create(offer).Error; err != nil {
		return nil, apierr.New(apierr.CodeInternal, "failed to create offer")
	}
	return offer, nil
}

// ListParams is the query parameters of GET /v1/offers.
type ListParams struct {
	Query        string
	Tags         []string
	SellerPubkey string
	PricingMode  store.PricingMode
	Active       *bool
	OnlineOnly   bool
	Limit        int
	Offset       int
}

// ListResult is a single page of offers.
type ListResult struct {
	Offers []store.Offer
	Page   int
	Limit  int
	Offset int
	Total  int64
}

// IsSellerOnline reports whether a seller currently has at least one
// registered heartbeat waiter, used to satisfy the online_only filter.
type IsSellerOnline func(pubkey string) bool

// List returns a page of offers matching params. online_only short-circuits
// to an empty page when no seller is currently online, per spec §4.6.
func (c *Catalog) List(ctx context.Context, params ListParams, online IsSellerOnline) (*ListResult, *apierr.Error) {
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

	active := true
	if params.Active != nil {
		active = *params.Active
	}

	query := c.db.WithContext(ctx).Model(&store.Offer{}).Where("active = ?", active)
	if params.Query != "" {
		// LOWER(...) LIKE LOWER(?) rather than ILIKE: ILIKE is Postgres-only
		// and the in-memory test store (glebarez/sqlite, per store/db.go's
		// OpenMemory) doesn't support it.
		like := "%" + strings.ToLower(params.Query) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if params.SellerPubkey != "" {
		query = query.Where("seller_pubkey = ?", params.SellerPubkey)
	}
	if params.PricingMode != "" {
		query = query.Where("pricing_mode = ?", params.PricingMode)
	}

	var candidates []store.Offer
	if err := query.Order("created_at DESC").Find(&candidates).Error; err != nil {
		return nil, apierr.New(apierr.CodeInternal, "failed to list offers")
	}

	filtered := candidates[:0]
	for _, offer := range candidates {
		if len(params.Tags) > 0 && !offer.Tags.Contains(params.Tags) {
			continue
		}
		if params.OnlineOnly && (online == nil || !online(offer.SellerPubkey)) {
			continue
		}
		filtered = append(filtered, offer)
	}

	total := int64(len(filtered))
	start := offset
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	page := filtered[start:end]

	return &ListResult{Offers: page, Limit: limit, Offset: offset, Total: total}, nil
}

// Get fetches a single offer by id, for the job lifecycle engine's
// offer-exists / offer-active preconditions.
func (c *Catalog) Get(ctx context.Context, offerID string) (*store.Offer, *apierr.Error) {
	var offer store.Offer
	err := c.db.WithContext(ctx).Where("offer_id = ?", offerID).First(&offer).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return nil, apierr.New(apierr.CodeNotFound, "offer not found")
	case err != nil:
		return nil, apierr.New(apierr.CodeInternal, "failed to load offer")
	}
	return &offer, nil
}
