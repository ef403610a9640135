package jobs

import (
	"context"
	"time"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

// Waiter is the half of notifier.Notifier the heartbeat needs: register
// a one-shot wakeup channel for a seller pubkey before re-querying, per
// the lost-wakeup-avoidance discipline of spec §5.
type Waiter interface {
	Register(pubkey string) (wake <-chan struct{}, unregister func())
}

// HeartbeatParams is the query parameters of GET /v1/seller/heartbeat.
type HeartbeatParams struct {
	Statuses     []store.JobStatus
	UpdatedAfter *time.Time
	Limit        int
	Offset       int
	WaitFor      time.Duration
}

// HeartbeatResult is the long-poll response.
type HeartbeatResult struct {
	Jobs     []store.Job
	Limit    int
	Offset   int
	Total    int64
	WaitedMs int64
}

var defaultHeartbeatStatuses = []store.JobStatus{store.StatusRequested, store.StatusAccepted, store.StatusRunning}

// Heartbeat implements the seller long-poll of spec §4.8: query, and if
// the first query is empty and wait_ms>0, register a waiter BEFORE
// blocking, then re-query exactly once after waking or timing out.
func (e *Engine) Heartbeat(ctx context.Context, waiter Waiter, sellerPubkey string, params HeartbeatParams) (*HeartbeatResult, *apierr.Error) {
	statuses := params.Statuses
	if len(statuses) == 0 {
		statuses = defaultHeartbeatStatuses
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := func() ([]store.Job, int64, error) {
		base := e.db.WithContext(ctx).Model(&store.Job{}).
			Where("seller_pubkey = ?", sellerPubkey).
			Where("status IN ?", statuses)
		if params.UpdatedAfter != nil {
			base = base.Where("updated_at > ?", *params.UpdatedAfter)
		}
		var total int64
		if err := base.Count(&total).Error; err != nil {
			return nil, 0, err
		}
		ordering := "created_at DESC"
		if params.UpdatedAfter != nil {
			ordering = "updated_at ASC"
		}
		var jobs []store.Job
		if err := base.Order(ordering).Limit(limit).Offset(offset).Find(&jobs).Error; err != nil {
			return nil, 0, err
		}
		return jobs, total, nil
	}

	start := e.now()
	jobs, total, err := query()
	if err != nil {
		return nil, apierr.New(apierr.CodeInternal, "failed to query jobs")
	}

	if len(jobs) == 0 && params.WaitFor > 0 {
		wake, unregister := waiter.Register(sellerPubkey)
		defer unregister()

		timer := time.NewTimer(params.WaitFor)
		defer timer.Stop()

		select {
		case <-wake:
		case <-timer.C:
		case <-ctx.Done():
		}

		jobs, total, err = query()
		if err != nil {
			return nil, apierr.New(apierr.CodeInternal, "failed to query jobs")
		}
	}

	waited := e.now().Sub(start)
	return &HeartbeatResult{
		Jobs:     jobs,
		Limit:    limit,
		Offset:   offset,
		Total:    total,
		WaitedMs: waited.Milliseconds(),
	}, nil
}
