package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
	"github.com/madsb/nanopay-relay-sub000/internal/jobs"
	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

type createJobRequest struct {
	OfferID        string          `json:"offer_id"`
	RequestPayload json.RawMessage `json:"request_payload"`
}

func (s *Server) handleCreateJob(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	var req createJobRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierr.New(apierr.CodeValidation, "malformed JSON body")
		}
	}
	if req.OfferID == "" {
		return 0, nil, apierr.New(apierr.CodeValidation, "offer_id is required").WithDetails(map[string]string{"field": "offer_id"})
	}

	job, apiErr := s.jobs.Create(ctx, pubkey, req.OfferID, []byte(req.RequestPayload))
	if apiErr != nil {
		return 0, nil, apiErr
	}
	s.metrics.RecordTransition(string(job.Status))
	return http.StatusCreated, job, nil
}

type jobListResponse struct {
	Jobs   []store.Job `json:"jobs"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Total  int64       `json:"total"`
}

func (s *Server) handleListJobs(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	q := r.URL.Query()
	result, apiErr := s.jobs.List(ctx, pubkey, jobs.ListParams{
		Limit:  atoiDefault(q.Get("limit"), 20),
		Offset: atoiDefault(q.Get("offset"), 0),
	})
	if apiErr != nil {
		return 0, nil, apiErr
	}
	return http.StatusOK, jobListResponse{Jobs: result.Jobs, Limit: result.Limit, Offset: result.Offset, Total: result.Total}, nil
}

func (s *Server) handleGetJob(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	jobID := chi.URLParam(r, "jobID")
	job, apiErr := s.jobs.Get(ctx, pubkey, jobID)
	if apiErr != nil {
		return 0, nil, apiErr
	}
	return http.StatusOK, job, nil
}

type quoteRequest struct {
	QuoteAmountRaw      string     `json:"quote_amount_raw"`
	QuoteInvoiceAddress string     `json:"quote_invoice_address"`
	QuoteExpiresAt      *time.Time `json:"quote_expires_at"`
}

func (s *Server) handleQuote(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	var req quoteRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierr.New(apierr.CodeValidation, "malformed JSON body")
		}
	}
	jobID := chi.URLParam(r, "jobID")
	job, apiErr := s.jobs.Quote(ctx, pubkey, jobID, jobsQuoteInput(req))
	if apiErr != nil {
		return 0, nil, apiErr
	}
	s.metrics.RecordTransition(string(job.Status))
	return http.StatusOK, job, nil
}

func jobsQuoteInput(req quoteRequest) jobs.QuoteInput {
	return jobs.QuoteInput{
		AmountRaw:      req.QuoteAmountRaw,
		InvoiceAddress: req.QuoteInvoiceAddress,
		ExpiresAt:      req.QuoteExpiresAt,
	}
}

func (s *Server) handleAccept(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	jobID := chi.URLParam(r, "jobID")
	job, apiErr := s.jobs.Accept(ctx, pubkey, jobID)
	if apiErr != nil {
		return 0, nil, apiErr
	}
	s.metrics.RecordTransition(string(job.Status))
	return http.StatusOK, job, nil
}

type paymentRequest struct {
	PaymentTxHash string `json:"payment_tx_hash"`
}

func (s *Server) handlePayment(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	var req paymentRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierr.New(apierr.CodeValidation, "malformed JSON body")
		}
	}
	jobID := chi.URLParam(r, "jobID")
	job, apiErr := s.jobs.Payment(ctx, pubkey, jobID, req.PaymentTxHash)
	if apiErr != nil {
		return 0, nil, apiErr
	}
	s.metrics.RecordTransition(string(job.Status))
	return http.StatusOK, job, nil
}

func (s *Server) handleLock(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	jobID := chi.URLParam(r, "jobID")
	job, apiErr := s.jobs.Lock(ctx, pubkey, jobID)
	if apiErr != nil {
		return 0, nil, apiErr
	}
	s.metrics.RecordTransition(string(job.Status))
	return http.StatusOK, job, nil
}

type deliverRequest struct {
	ResultURL *string         `json:"result_url"`
	Error     json.RawMessage `json:"error"`
}

func (s *Server) handleDeliver(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	var req deliverRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, nil, apierr.New(apierr.CodeValidation, "malformed JSON body")
		}
	}
	jobID := chi.URLParam(r, "jobID")
	job, apiErr := s.jobs.Deliver(ctx, pubkey, jobID, jobs.DeliverInput{
		ResultURL: req.ResultURL,
		Error:     []byte(req.Error),
	})
	if apiErr != nil {
		return 0, nil, apiErr
	}
	s.metrics.RecordTransition(string(job.Status))
	return http.StatusOK, job, nil
}

func (s *Server) handleCancel(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	jobID := chi.URLParam(r, "jobID")
	job, apiErr := s.jobs.Cancel(ctx, pubkey, jobID)
	if apiErr != nil {
		return 0, nil, apiErr
	}
	s.metrics.RecordTransition(string(job.Status))
	return http.StatusOK, job, nil
}

type heartbeatResponse struct {
	Jobs     []store.Job `json:"jobs"`
	Limit    int         `json:"limit"`
	Offset   int         `json:"offset"`
	Total    int64       `json:"total"`
	WaitedMs int64       `json:"waited_ms"`
}

func (s *Server) handleHeartbeat(ctx context.Context, pubkey string, body []byte, r *http.Request) (int, any, *apierr.Error) {
	q := r.URL.Query()

	params := jobs.HeartbeatParams{
		Limit:  atoiDefault(q.Get("limit"), 50),
		Offset: atoiDefault(q.Get("offset"), 0),
	}
	if statusesRaw := q.Get("status"); statusesRaw != "" {
		for _, raw := range strings.Split(statusesRaw, ",") {
			params.Statuses = append(params.Statuses, store.JobStatus(strings.TrimSpace(raw)))
		}
	}
	if updatedAfterRaw := q.Get("updated_after"); updatedAfterRaw != "" {
		if t, err := time.Parse(time.RFC3339, updatedAfterRaw); err == nil {
			params.UpdatedAfter = &t
		}
	}
	if waitMsRaw := q.Get("wait_ms"); waitMsRaw != "" {
		waitMs := atoiDefault(waitMsRaw, 0)
		params.WaitFor = time.Duration(waitMs) * time.Millisecond
	}
	maxWait := s.cfg.HeartbeatMaxWait
	if params.WaitFor > maxWait {
		params.WaitFor = maxWait
	}

	result, apiErr := s.jobs.Heartbeat(ctx, s.notifier, pubkey, params)
	if apiErr != nil {
		return 0, nil, apiErr
	}
	return http.StatusOK, heartbeatResponse{
		Jobs:     result.Jobs,
		Limit:    result.Limit,
		Offset:   result.Offset,
		Total:    result.Total,
		WaitedMs: result.WaitedMs,
	}, nil
}
