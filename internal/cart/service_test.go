package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/elitesurfing/backend-loja/internal/db"
	"github.com/elitesurfing/backend-loja/internal/pricing"
)

type fakeQueries struct {
	carts    map[pgtype.UUID]db.Cart
	items    map[pgtype.UUID][]db.CartItem
	products map[pgtype.UUID]db.Product
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{
		carts:    map[pgtype.UUID]db.Cart{},
		items:    map[pgtype.UUID][]db.CartItem{},
		products: map[pgtype.UUID]db.Product{},
	}
}

func (f *fakeQueries) CreateCart(_ context.Context, arg db.CreateCartParams) (db.Cart, error) {
	c := db.Cart{ID: db.NewUUID(), UserID: arg.UserID, AnonID: arg.AnonID, ExpiresAt: arg.ExpiresAt}
	f.carts[c.ID] = c
	return c, nil
}

func (f *fakeQueries) GetCartByID(_ context.Context, id pgtype.UUID) (db.Cart, error) {
	c, ok := f.carts[id]
	if !ok {
		return db.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeQueries) GetActiveCartByUser(_ context.Context, userID pgtype.UUID) (db.Cart, error) {
	for _, c := range f.carts {
		if db.UUIDEqual(c.UserID, userID) {
			return c, nil
		}
	}
	return db.Cart{}, pgx.ErrNoRows
}

func (f *fakeQueries) GetActiveCartByAnon(_ context.Context, anonID pgtype.Text) (db.Cart, error) {
	for _, c := range f.carts {
		if c.AnonID.Valid && c.AnonID.String == anonID.String {
			return c, nil
		}
	}
	return db.Cart{}, pgx.ErrNoRows
}

func (f *fakeQueries) TouchCart(_ context.Context, arg db.TouchCartParams) error {
	c, ok := f.carts[arg.ID]
	if ok {
		c.ExpiresAt = arg.ExpiresAt
		f.carts[arg.ID] = c
	}
	return nil
}

func (f *fakeQueries) SetCartCoupon(_ context.Context, arg db.SetCartCouponParams) error {
	c, ok := f.carts[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.AppliedCoupon = arg.Coupon
	f.carts[arg.ID] = c
	return nil
}

func (f *fakeQueries) ListCartItems(_ context.Context, cartID pgtype.UUID) ([]db.CartItem, error) {
	return f.items[cartID], nil
}

func (f *fakeQueries) UpsertCartItem(_ context.Context, arg db.UpsertCartItemParams) (db.CartItem, error) {
	for i, it := range f.items[arg.CartID] {
		if db.UUIDEqual(it.ProductID, arg.ProductID) {
			it.Qty += arg.Qty
			it.UnitPrice = arg.UnitPrice
			f.items[arg.CartID][i] = it
			return it, nil
		}
	}
	it := db.CartItem{
		ID:          db.NewUUID(),
		CartID:      arg.CartID,
		ProductID:   arg.ProductID,
		Name:        arg.Name,
		UnitPrice:   arg.UnitPrice,
		Qty:         arg.Qty,
		WeightGrams: arg.WeightGrams,
		LengthCm:    arg.LengthCm,
		WidthCm:     arg.WidthCm,
		HeightCm:    arg.HeightCm,
	}
	f.items[arg.CartID] = append(f.items[arg.CartID], it)
	return it, nil
}

func (f *fakeQueries) UpdateCartItemQty(_ context.Context, arg db.UpdateCartItemQtyParams) error {
	for i, it := range f.items[arg.CartID] {
		if db.UUIDEqual(it.ID, arg.ItemID) {
			it.Qty = arg.Qty
			f.items[arg.CartID][i] = it
			return nil
		}
	}
	return nil
}

func (f *fakeQueries) RemoveCartItem(_ context.Context, arg db.RemoveCartItemParams) error {
	items := f.items[arg.CartID]
	for i, it := range items {
		if db.UUIDEqual(it.ID, arg.ItemID) {
			f.items[arg.CartID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeQueries) ClearCartItems(_ context.Context, cartID pgtype.UUID) error {
	delete(f.items, cartID)
	return nil
}

func (f *fakeQueries) GetProductByID(_ context.Context, id pgtype.UUID) (db.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeQueries) addProduct(p db.Product) db.Product {
	p.ID = db.NewUUID()
	f.products[p.ID] = p
	return p
}

func newTestService(q *fakeQueries) *Service {
	return &Service{
		Q:      q,
		Policy: pricing.DefaultPolicy(),
		TTL:    time.Hour,
		Now:    func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

type recordingInvalidator struct {
	cartIDs []string
	err     error
}

func (r *recordingInvalidator) InvalidateByCart(_ context.Context, cartID string) error {
	r.cartIDs = append(r.cartIDs, cartID)
	return r.err
}

func TestEnsureCartCreatesAndReuses(t *testing.T) {
	t.Parallel()

	q := newFakeQueries()
	svc := newTestService(q)
	anon := "visitor-123"

	first, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	second, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	require.True(t, db.UUIDEqual(first.ID, second.ID))

	_, err = svc.EnsureCart(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddItemSnapshotsProductAndMergesQty(t *testing.T) {
	t.Parallel()

	q := newFakeQueries()
	svc := newTestService(q)
	product := q.addProduct(db.Product{
		Name: "Prancha 6'0", UnitPrice: 150000, WeightGrams: 4200,
		LengthCm: 185, WidthCm: 52, HeightCm: 8, QtyAvailable: 5,
	})
	anon := "visitor"
	cart, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)

	require.NoError(t, svc.AddItem(context.Background(), db.UUIDString(cart.ID), db.UUIDString(product.ID), 1))
	require.NoError(t, svc.AddItem(context.Background(), db.UUIDString(cart.ID), db.UUIDString(product.ID), 2))

	_, items, subtotal, err := svc.Load(context.Background(), cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.EqualValues(t, 3, items[0].Qty)
	require.EqualValues(t, 4200, items[0].WeightGrams)
	require.EqualValues(t, 450000, subtotal)
}

func TestAddItemRejectsInsufficientStock(t *testing.T) {
	t.Parallel()

	q := newFakeQueries()
	svc := newTestService(q)
	product := q.addProduct(db.Product{Name: "Leash", UnitPrice: 9900, QtyAvailable: 1})
	anon := "visitor"
	cart, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)

	err = svc.AddItem(context.Background(), db.UUIDString(cart.ID), db.UUIDString(product.ID), 2)
	require.ErrorIs(t, err, ErrOutOfStock)
}

func TestApplyCouponSingleSlot(t *testing.T) {
	t.Parallel()

	q := newFakeQueries()
	svc := newTestService(q)
	anon := "visitor"
	cart, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)

	canonical, err := svc.ApplyCoupon(context.Background(), db.UUIDString(cart.ID), "  elite10 ")
	require.NoError(t, err)
	require.Equal(t, "ELITE10", canonical)

	// a second apply replaces the first, it never stacks
	canonical, err = svc.ApplyCoupon(context.Background(), db.UUIDString(cart.ID), "ray10")
	require.NoError(t, err)
	require.Equal(t, "RAY10", canonical)

	stored, err := q.GetCartByID(context.Background(), cart.ID)
	require.NoError(t, err)
	require.Equal(t, "RAY10", stored.AppliedCoupon.String)

	_, err = svc.ApplyCoupon(context.Background(), db.UUIDString(cart.ID), "NOPE")
	require.ErrorIs(t, err, pricing.ErrInvalidCoupon)
}

func TestMutationsResetCheckoutSessions(t *testing.T) {
	t.Parallel()

	q := newFakeQueries()
	svc := newTestService(q)
	inv := &recordingInvalidator{}
	svc.Sessions = inv

	product := q.addProduct(db.Product{Name: "Quilha", UnitPrice: 12000, QtyAvailable: 10})
	anon := "visitor"
	cart, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	cartID := db.UUIDString(cart.ID)

	require.NoError(t, svc.AddItem(context.Background(), cartID, db.UUIDString(product.ID), 1))
	_, items, _, err := svc.Load(context.Background(), cart.ID)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateQty(context.Background(), cartID, db.UUIDString(items[0].ID), 3))
	_, err = svc.ApplyCoupon(context.Background(), cartID, "ELITE10")
	require.NoError(t, err)
	require.NoError(t, svc.RemoveCoupon(context.Background(), cartID))
	require.NoError(t, svc.RemoveItem(context.Background(), cartID, db.UUIDString(items[0].ID)))

	// every line or coupon mutation resets the cart's session
	require.Equal(t, []string{cartID, cartID, cartID, cartID, cartID}, inv.cartIDs)
}

func TestMutationFailsWhenSessionResetFails(t *testing.T) {
	t.Parallel()

	q := newFakeQueries()
	svc := newTestService(q)
	svc.Sessions = &recordingInvalidator{err: errors.New("redis down")}

	product := q.addProduct(db.Product{Name: "Deck", UnitPrice: 8000, QtyAvailable: 10})
	anon := "visitor"
	cart, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)

	err = svc.AddItem(context.Background(), db.UUIDString(cart.ID), db.UUIDString(product.ID), 1)
	require.EqualError(t, err, "redis down")
}

func TestClearEmptiesItemsAndCoupon(t *testing.T) {
	t.Parallel()

	q := newFakeQueries()
	svc := newTestService(q)
	product := q.addProduct(db.Product{Name: "Parafina", UnitPrice: 1500, QtyAvailable: 50})
	anon := "visitor"
	cart, err := svc.EnsureCart(context.Background(), nil, &anon)
	require.NoError(t, err)
	require.NoError(t, svc.AddItem(context.Background(), db.UUIDString(cart.ID), db.UUIDString(product.ID), 2))
	_, err = svc.ApplyCoupon(context.Background(), db.UUIDString(cart.ID), "ELITE10")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(context.Background(), cart.ID))

	stored, items, subtotal, err := svc.Load(context.Background(), cart.ID)
	require.NoError(t, err)
	require.Empty(t, items)
	require.EqualValues(t, 0, subtotal)
	require.False(t, stored.AppliedCoupon.Valid)
}
