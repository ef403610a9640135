package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
	"github.com/madsb/nanopay-relay-sub000/internal/catalog"
	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

type recordingNotifier struct {
	notified []string
}

func (r *recordingNotifier) Notify(pubkey string) {
	r.notified = append(r.notified, pubkey)
}

func testConfig() Config {
	return Config{
		QuoteDefaultTTL:    15 * time.Minute,
		QuoteMaxTTL:        60 * time.Minute,
		AcceptToPaymentTTL: 30 * time.Minute,
		LockTTL:            5 * time.Minute,
	}
}

func setup(t *testing.T) (*Engine, *catalog.Catalog, *recordingNotifier) {
	t.Helper()
	db := store.NewTestDB(t)
	cat := catalog.New(db)
	notif := &recordingNotifier{}
	return New(db, cat, notif, testConfig()), cat, notif
}

func createOffer(t *testing.T, cat *catalog.Catalog, seller string) *store.Offer {
	t.Helper()
	offer, err := cat.Create(context.Background(), seller, catalog.CreateInput{
		Title:         "Render",
		Description:   "d",
		PricingMode:   store.PricingQuote,
	})
	require.Nil(t, err)
	return offer
}

func TestFullLifecycleHappyPath(t *testing.T) {
	e, cat, notif := setup(t)
	ctx := context.Background()
	offer := createOffer(t, cat, "seller1")

	job, err := e.Create(ctx, "buyer1", offer.OfferID, []byte(`{"x":1}`))
	require.Nil(t, err)
	require.Equal(t, store.StatusRequested, job.Status)
	require.Contains(t, notif.notified, "seller1")

	job, err = e.Quote(ctx, "seller1", job.JobID, QuoteInput{AmountRaw: "1000", InvoiceAddress: "nano_abc"})
	require.Nil(t, err)
	require.Equal(t, store.StatusQuoted, job.Status)

	job, err = e.Accept(ctx, "buyer1", job.JobID)
	require.Nil(t, err)
	require.Equal(t, store.StatusAccepted, job.Status)

	job, err = e.Payment(ctx, "buyer1", job.JobID, "txhash1")
	require.Nil(t, err)
	require.Equal(t, "txhash1", *job.PaymentTxHash)

	job, err = e.Lock(ctx, "seller1", job.JobID)
	require.Nil(t, err)
	require.Equal(t, store.StatusRunning, job.Status)
	require.Equal(t, "seller1", *job.LockOwner)

	resultURL := "https://example.com/result"
	job, err = e.Deliver(ctx, "seller1", job.JobID, DeliverInput{ResultURL: &resultURL})
	require.Nil(t, err)
	require.Equal(t, store.StatusDelivered, job.Status)
	require.Equal(t, resultURL, *job.ResultURL)
}

func TestPaymentIsWriteOnceButIdempotentOnSameHash(t *testing.T) {
	e, cat, _ := setup(t)
	ctx := context.Background()
	offer := createOffer(t, cat, "seller1")

	job, _ := e.Create(ctx, "buyer1", offer.OfferID, nil)
	job, _ = e.Quote(ctx, "seller1", job.JobID, QuoteInput{AmountRaw: "1", InvoiceAddress: "addr"})
	job, _ = e.Accept(ctx, "buyer1", job.JobID)

	job, err := e.Payment(ctx, "buyer1", job.JobID, "hash-a")
	require.Nil(t, err)

	job, err = e.Payment(ctx, "buyer1", job.JobID, "hash-a")
	require.Nil(t, err, "identical repeat payment call must be idempotent")

	_, err = e.Payment(ctx, "buyer1", job.JobID, "hash-b")
	require.NotNil(t, err)
	require.Equal(t, apierr.CodeInvalidState, err.ErrCode)
}

func TestLockContentionFromAnotherSellerIsForbidden(t *testing.T) {
	e, cat, _ := setup(t)
	ctx := context.Background()
	offer := createOffer(t, cat, "seller1")

	job, _ := e.Create(ctx, "buyer1", offer.OfferID, nil)
	job, _ = e.Quote(ctx, "seller1", job.JobID, QuoteInput{AmountRaw: "1", InvoiceAddress: "addr"})
	job, _ = e.Accept(ctx, "buyer1", job.JobID)
	job, _ = e.Payment(ctx, "buyer1", job.JobID, "hash-a")
	job, _ = e.Lock(ctx, "seller1", job.JobID)
	require.Equal(t, store.StatusRunning, job.Status)

	_, err := e.Lock(ctx, "not-the-seller", job.JobID)
	require.NotNil(t, err)
	require.Equal(t, apierr.CodeForbidden, err.ErrCode)
}

func TestLockRenewalExtendsLeaseMonotonically(t *testing.T) {
	e, cat, _ := setup(t)
	ctx := context.Background()
	offer := createOffer(t, cat, "seller1")

	job, _ := e.Create(ctx, "buyer1", offer.OfferID, nil)
	job, _ = e.Quote(ctx, "seller1", job.JobID, QuoteInput{AmountRaw: "1", InvoiceAddress: "addr"})
	job, _ = e.Accept(ctx, "buyer1", job.JobID)
	job, _ = e.Payment(ctx, "buyer1", job.JobID, "hash-a")
	job, err := e.Lock(ctx, "seller1", job.JobID)
	require.Nil(t, err)
	firstExpiry := *job.LockExpiresAt

	e.now = func() time.Time { return time.Now().Add(1 * time.Minute) }
	job, err = e.Lock(ctx, "seller1", job.JobID)
	require.Nil(t, err)
	require.Equal(t, "seller1", *job.LockOwner)
	require.True(t, job.LockExpiresAt.After(firstExpiry))
}

func TestQuoteExpiryLazilyExpiresOnAccept(t *testing.T) {
	e, cat, _ := setup(t)
	ctx := context.Background()
	offer := createOffer(t, cat, "seller1")

	job, _ := e.Create(ctx, "buyer1", offer.OfferID, nil)
	expiresAt := e.now().Add(time.Minute)
	job, err := e.Quote(ctx, "seller1", job.JobID, QuoteInput{AmountRaw: "1", InvoiceAddress: "addr", ExpiresAt: &expiresAt})
	require.Nil(t, err)

	e.now = func() time.Time { return expiresAt.Add(time.Second) }
	_, err = e.Accept(ctx, "buyer1", job.JobID)
	require.NotNil(t, err)
	require.Equal(t, apierr.CodeInvalidState, err.ErrCode)

	fetched, getErr := e.Get(ctx, "buyer1", job.JobID)
	require.Nil(t, getErr)
	require.Equal(t, store.StatusExpired, fetched.Status, "lazy expiry must have persisted the expired status")
}

func TestCancelOnlyBuyerAndOnlyBeforeRunning(t *testing.T) {
	e, cat, _ := setup(t)
	ctx := context.Background()
	offer := createOffer(t, cat, "seller1")

	job, _ := e.Create(ctx, "buyer1", offer.OfferID, nil)

	_, err := e.Cancel(ctx, "not-the-buyer", job.JobID)
	require.NotNil(t, err)
	require.Equal(t, apierr.CodeForbidden, err.ErrCode)

	job, err = e.Cancel(ctx, "buyer1", job.JobID)
	require.Nil(t, err)
	require.Equal(t, store.StatusCanceled, job.Status)

	_, err = e.Quote(ctx, "seller1", job.JobID, QuoteInput{AmountRaw: "1", InvoiceAddress: "a"})
	require.NotNil(t, err, "terminal states must be absorbing")
	require.Equal(t, apierr.CodeInvalidState, err.ErrCode)
}

func TestDeliverRequiresExactlyOneOfResultOrError(t *testing.T) {
	e, cat, _ := setup(t)
	ctx := context.Background()
	offer := createOffer(t, cat, "seller1")

	job, _ := e.Create(ctx, "buyer1", offer.OfferID, nil)
	job, _ = e.Quote(ctx, "seller1", job.JobID, QuoteInput{AmountRaw: "1", InvoiceAddress: "a"})
	job, _ = e.Accept(ctx, "buyer1", job.JobID)
	job, _ = e.Payment(ctx, "buyer1", job.JobID, "hash-a")
	job, _ = e.Lock(ctx, "seller1", job.JobID)

	_, err := e.Deliver(ctx, "seller1", job.JobID, DeliverInput{})
	require.NotNil(t, err)
	require.Equal(t, apierr.CodeValidation, err.ErrCode)

	url := "https://example.com/r"
	_, err = e.Deliver(ctx, "seller1", job.JobID, DeliverInput{ResultURL: &url, Error: []byte(`{"m":"x"}`)})
	require.NotNil(t, err)
	require.Equal(t, apierr.CodeValidation, err.ErrCode)
}
