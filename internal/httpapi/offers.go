package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
	"github.com/madsb/nanopay-relay-sub000/internal/catalog"
	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

type createOfferRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	PricingMode   string   `json:"pricing_mode"`
	FixedPriceRaw string   `json:"fixed_price_raw"`
}

func (s *Server) handleCreateOffer(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	var req createOfferRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierr.New(apierr.CodeValidation, "malformed JSON body")
		}
	}

	offer, apiErr := s.catalog.Create(ctx, pubkey, catalog.CreateInput{
		Title:         req.Title,
		Description:   req.Description,
		Tags:          req.Tags,
		PricingMode:   store.PricingMode(req.PricingMode),
		FixedPriceRaw: req.FixedPriceRaw,
	})
	if apiErr != nil {
		return 0, nil, apiErr
	}
	return http.StatusCreated, offer, nil
}

type offerListResponse struct {
	Offers []store.Offer `json:"offers"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Total  int64         `json:"total"`
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := catalog.ListParams{
		Query:        q.Get("q"),
		SellerPubkey: q.Get("seller_pubkey"),
		PricingMode:  store.PricingMode(q.Get("pricing_mode")),
		OnlineOnly:   q.Get("online_only") == "true",
		Limit:        atoiDefault(q.Get("limit"), 20),
		Offset:       atoiDefault(q.Get("offset"), 0),
	}
	if tagsRaw := q.Get("tags"); tagsRaw != "" {
		params.Tags = strings.Split(tagsRaw, ",")
	}
	if activeRaw := q.Get("active"); activeRaw != "" {
		active := activeRaw == "true"
		params.Active = &active
	}

	result, apiErr := s.catalog.List(r.Context(), params, s.notifier.IsOnline)
	if apiErr != nil {
		apierr.WriteJSON(w, apiErr)
		return
	}

	page := 0
	if result.Limit > 0 {
		page = result.Offset / result.Limit
	}
	resp := offerListResponse{
		Offers: result.Offers,
		Page:   page,
		Limit:  result.Limit,
		Offset: result.Offset,
		Total:  result.Total,
	}
	writeResult(w, http.StatusOK, resp, nil)
}

func atoiDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
