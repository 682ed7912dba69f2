package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/elitesurfing/backend-loja/internal/freight"
	"github.com/elitesurfing/backend-loja/internal/pricing"
	regionpkg "github.com/elitesurfing/backend-loja/internal/region"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Store{
		R:   client,
		TTL: time.Hour,
		Now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func testOptions() []freight.Option {
	return []freight.Option{
		{Carrier: "Correios", Service: "PAC", ServiceID: "1", Price: 2490, DeliveryDays: 8},
		{Carrier: "Correios", Service: "SEDEX", ServiceID: "2", Price: 4590, DeliveryDays: 3},
	}
}

func TestSessionHappyPath(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "cart-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, StageCartReview, sess.Stage)

	sess, err = store.SetAddress(ctx, sess.ID, "addr-1", "01310100", regionpkg.SouthSoutheast)
	require.NoError(t, err)
	require.Equal(t, StageAddressSelected, sess.Stage)

	sess, err = store.AttachQuote(ctx, sess.ID, testOptions())
	require.NoError(t, err)
	require.EqualValues(t, 1, sess.QuoteSeq)

	sess, err = store.SelectShipping(ctx, sess.ID, 1, "2")
	require.NoError(t, err)
	require.Equal(t, StageShippingSelected, sess.Stage)
	require.Equal(t, "SEDEX", sess.Selected.Service)

	sess, err = store.ChoosePayment(ctx, sess.ID, pricing.MethodPix)
	require.NoError(t, err)
	require.Equal(t, StagePaymentChosen, sess.Stage)

	sess, err = store.MarkPlaced(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StageOrderPlaced, sess.Stage)
}

func TestSelectShippingRejectsStaleQuote(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "cart-1", "")
	require.NoError(t, err)
	_, err = store.SetAddress(ctx, sess.ID, "", "01310100", regionpkg.SouthSoutheast)
	require.NoError(t, err)
	_, err = store.AttachQuote(ctx, sess.ID, testOptions())
	require.NoError(t, err)

	// a second quote supersedes the first
	fresh, err := store.AttachQuote(ctx, sess.ID, testOptions())
	require.NoError(t, err)
	require.EqualValues(t, 2, fresh.QuoteSeq)

	_, err = store.SelectShipping(ctx, sess.ID, 1, "1")
	require.ErrorIs(t, err, ErrStaleQuote)

	_, err = store.SelectShipping(ctx, sess.ID, 2, "1")
	require.NoError(t, err)
}

func TestInvalidateDropsSelectionKeepsAddress(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "cart-1", "")
	require.NoError(t, err)
	_, err = store.SetAddress(ctx, sess.ID, "addr-1", "01310100", regionpkg.SouthSoutheast)
	require.NoError(t, err)
	_, err = store.AttachQuote(ctx, sess.ID, testOptions())
	require.NoError(t, err)
	_, err = store.SelectShipping(ctx, sess.ID, 1, "1")
	require.NoError(t, err)

	sess, err = store.Invalidate(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StageAddressSelected, sess.Stage)
	require.Nil(t, sess.Selected)
	require.Empty(t, sess.Options)
	require.Equal(t, "addr-1", sess.AddressID)
}

func TestChoosePaymentSwitchInvalidatesShipping(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "cart-1", "")
	require.NoError(t, err)
	_, err = store.SetAddress(ctx, sess.ID, "", "01310100", regionpkg.SouthSoutheast)
	require.NoError(t, err)
	_, err = store.AttachQuote(ctx, sess.ID, testOptions())
	require.NoError(t, err)
	_, err = store.SelectShipping(ctx, sess.ID, 1, "1")
	require.NoError(t, err)
	_, err = store.ChoosePayment(ctx, sess.ID, pricing.MethodPix)
	require.NoError(t, err)

	// switching pix -> card drops the shipping selection
	sess, err = store.ChoosePayment(ctx, sess.ID, pricing.MethodCard)
	require.NoError(t, err)
	require.Equal(t, StageAddressSelected, sess.Stage)
	require.Nil(t, sess.Selected)
	require.Empty(t, sess.PaymentMethod)

	// re-choosing the same method is a no-op
	_, err = store.SelectShipping(ctx, sess.ID, 1, "1")
	require.NoError(t, err)
	_, err = store.ChoosePayment(ctx, sess.ID, pricing.MethodCard)
	require.NoError(t, err)
	sess, err = store.ChoosePayment(ctx, sess.ID, pricing.MethodCard)
	require.NoError(t, err)
	require.Equal(t, StagePaymentChosen, sess.Stage)
}

func TestInvalidateByCartResetsLiveSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "cart-1", "")
	require.NoError(t, err)
	_, err = store.SetAddress(ctx, sess.ID, "addr-1", "01310100", regionpkg.SouthSoutheast)
	require.NoError(t, err)
	_, err = store.AttachQuote(ctx, sess.ID, testOptions())
	require.NoError(t, err)
	_, err = store.SelectShipping(ctx, sess.ID, 1, "1")
	require.NoError(t, err)

	require.NoError(t, store.InvalidateByCart(ctx, "cart-1"))

	sess, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, StageAddressSelected, sess.Stage)
	require.Nil(t, sess.Selected)
	require.Empty(t, sess.Options)

	// a cart without a session is fine
	require.NoError(t, store.InvalidateByCart(ctx, "cart-without-session"))
}

func TestGetUnknownSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}
