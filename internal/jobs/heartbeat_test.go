package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/madsb/nanopay-relay-sub000/internal/notifier"
	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

func TestHeartbeatReturnsImmediatelyWhenJobsPresent(t *testing.T) {
	e, cat, _ := setup(t)
	ctx := context.Background()
	offer := createOffer(t, cat, "seller1")
	_, _ = e.Create(ctx, "buyer1", offer.OfferID, nil)

	n := notifier.New()
	result, err := e.Heartbeat(ctx, n, "seller1", HeartbeatParams{WaitFor: 2 * time.Second})
	require.Nil(t, err)
	require.Len(t, result.Jobs, 1)
	require.Equal(t, int64(0), result.WaitedMs, "should not wait when jobs are already present")
}

func TestHeartbeatWakesOnNotify(t *testing.T) {
	e, cat, _ := setup(t)
	ctx := context.Background()
	offer := createOffer(t, cat, "seller1")
	n := notifier.New()

	done := make(chan *HeartbeatResult, 1)
	go func() {
		result, err := e.Heartbeat(ctx, n, "seller1", HeartbeatParams{WaitFor: 2 * time.Second})
		require.Nil(t, err)
		done <- result
	}()

	// Give the heartbeat goroutine time to register before we create the job.
	time.Sleep(50 * time.Millisecond)
	_, _ = e.Create(ctx, "buyer1", offer.OfferID, nil)

	select {
	case result := <-done:
		require.Len(t, result.Jobs, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat did not wake up after notify")
	}
}

func TestHeartbeatTimesOutWhenNothingArrives(t *testing.T) {
	e, _, _ := setup(t)
	ctx := context.Background()
	n := notifier.New()

	start := time.Now()
	result, err := e.Heartbeat(ctx, n, "seller-idle", HeartbeatParams{WaitFor: 100 * time.Millisecond})
	elapsed := time.Since(start)
	require.Nil(t, err)
	require.Len(t, result.Jobs, 0)
	require.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestHeartbeatFiltersByStatus(t *testing.T) {
	e, cat, _ := setup(t)
	ctx := context.Background()
	offer := createOffer(t, cat, "seller1")
	job, _ := e.Create(ctx, "buyer1", offer.OfferID, nil)
	_, _ = e.Quote(ctx, "seller1", job.JobID, QuoteInput{AmountRaw: "1", InvoiceAddress: "a"})

	n := notifier.New()
	result, err := e.Heartbeat(ctx, n, "seller1", HeartbeatParams{Statuses: []store.JobStatus{store.StatusQuoted}})
	require.Nil(t, err)
	require.Len(t, result.Jobs, 1)

	result, err = e.Heartbeat(ctx, n, "seller1", HeartbeatParams{Statuses: []store.JobStatus{store.StatusRunning}})
	require.Nil(t, err)
	require.Len(t, result.Jobs, 0)
}
