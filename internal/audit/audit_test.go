package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/madsb/nanopay-relay-sub000/internal/store"
)

func TestRecordAppendsRow(t *testing.T) {
	db := store.NewTestDB(t)
	r := New(db)
	ctx := context.Background()

	r.Record(ctx, "seller1", "POST", "/v1/offers", []byte(`{"title":"x"}`), 201, []byte(`{"offer_id":"1"}`))

	var rows []store.AuditRecord
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, "seller1", rows[0].CallerPubkey)
	require.Equal(t, "POST", rows[0].Method)
	require.Equal(t, "/v1/offers", rows[0].Path)
	require.Equal(t, 201, rows[0].ResponseStatus)
}

func TestRecordOnNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.Record(context.Background(), "seller1", "POST", "/v1/offers", nil, 201, nil)
	})
}
