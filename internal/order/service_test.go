package order

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/elitesurfing/backend-loja/internal/checkout"
	"github.com/elitesurfing/backend-loja/internal/db"
	"github.com/elitesurfing/backend-loja/internal/freight"
	"github.com/elitesurfing/backend-loja/internal/notify"
	"github.com/elitesurfing/backend-loja/internal/payment"
	"github.com/elitesurfing/backend-loja/internal/pricing"
)

type fakeStore struct {
	carts      map[pgtype.UUID]db.Cart
	items      map[pgtype.UUID][]db.CartItem
	products   map[pgtype.UUID]db.Product
	addresses  map[pgtype.UUID]db.Address
	orders     map[pgtype.UUID]db.Order
	orderItems map[pgtype.UUID][]db.OrderItem

	failOrderInsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		carts:      map[pgtype.UUID]db.Cart{},
		items:      map[pgtype.UUID][]db.CartItem{},
		products:   map[pgtype.UUID]db.Product{},
		addresses:  map[pgtype.UUID]db.Address{},
		orders:     map[pgtype.UUID]db.Order{},
		orderItems: map[pgtype.UUID][]db.OrderItem{},
	}
}

func (f *fakeStore) InTx(_ context.Context, fn func(Queries) error) error {
	return fn(f)
}

func (f *fakeStore) GetCartByID(_ context.Context, id pgtype.UUID) (db.Cart, error) {
	c, ok := f.carts[id]
	if !ok {
		return db.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) ListCartItems(_ context.Context, cartID pgtype.UUID) ([]db.CartItem, error) {
	return f.items[cartID], nil
}

func (f *fakeStore) ListProductsByIDs(_ context.Context, ids []string) ([]db.Product, error) {
	var out []db.Product
	for _, id := range ids {
		for _, p := range f.products {
			if db.UUIDString(p.ID) == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAddress(_ context.Context, arg db.CreateAddressParams) (db.Address, error) {
	a := db.Address{
		ID:           db.NewUUID(),
		UserID:       arg.UserID,
		ReceiverName: arg.ReceiverName,
		Phone:        arg.Phone,
		CEP:          arg.CEP,
		Street:       arg.Street,
		Number:       arg.Number,
		Complement:   arg.Complement,
		District:     arg.District,
		City:         arg.City,
		State:        arg.State,
	}
	f.addresses[a.ID] = a
	return a, nil
}

func (f *fakeStore) GetAddressByID(_ context.Context, id pgtype.UUID) (db.Address, error) {
	a, ok := f.addresses[id]
	if !ok {
		return db.Address{}, pgx.ErrNoRows
	}
	return a, nil
}

func (f *fakeStore) GetAddressForUser(_ context.Context, arg db.GetAddressForUserParams) (db.Address, error) {
	a, ok := f.addresses[arg.ID]
	if !ok || !db.UUIDEqual(a.UserID, arg.UserID) {
		return db.Address{}, pgx.ErrNoRows
	}
	return a, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, arg db.CreateOrderParams) (db.Order, error) {
	if f.failOrderInsert {
		return db.Order{}, errors.New("insert failed")
	}
	o := db.Order{
		ID:                    db.NewUUID(),
		UserID:                arg.UserID,
		CartID:                arg.CartID,
		AddressID:             arg.AddressID,
		Status:                arg.Status,
		PaymentMethod:         arg.PaymentMethod,
		CouponCode:            arg.CouponCode,
		OriginalAmount:        arg.OriginalAmount,
		DiscountAmount:        arg.DiscountAmount,
		DiscountBps:           arg.DiscountBps,
		PaymentDiscountAmount: arg.PaymentDiscountAmount,
		ShippingCost:          arg.ShippingCost,
		ShippingCarrier:       arg.ShippingCarrier,
		ShippingService:       arg.ShippingService,
		FreeShipping:          arg.FreeShipping,
		TotalAmount:           arg.TotalAmount,
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) CreateOrderItem(_ context.Context, arg db.CreateOrderItemParams) error {
	f.orderItems[arg.OrderID] = append(f.orderItems[arg.OrderID], db.OrderItem{
		OrderID:   arg.OrderID,
		ProductID: arg.ProductID,
		Name:      arg.Name,
		UnitPrice: arg.UnitPrice,
		Qty:       arg.Qty,
		Subtotal:  arg.Subtotal,
	})
	return nil
}

func (f *fakeStore) CancelOrderIfUnpaid(_ context.Context, id pgtype.UUID) (int64, error) {
	o, ok := f.orders[id]
	if !ok || o.Status != db.OrderStatusAwaitingPayment {
		return 0, nil
	}
	o.Status = db.OrderStatusCanceled
	f.orders[id] = o
	return 1, nil
}

func (f *fakeStore) ClearCartItems(_ context.Context, cartID pgtype.UUID) error {
	f.items[cartID] = nil
	return nil
}

func (f *fakeStore) SetCartCoupon(_ context.Context, arg db.SetCartCouponParams) error {
	c := f.carts[arg.ID]
	c.AppliedCoupon = arg.Coupon
	f.carts[arg.ID] = c
	return nil
}

// seedCart loads a cart with one product line and returns the ids.
func (f *fakeStore) seedCart(coupon string, qty, stock int32, unitPrice int64) (cartID, productID pgtype.UUID) {
	cartID = db.NewUUID()
	productID = db.NewUUID()
	f.carts[cartID] = db.Cart{ID: cartID, AppliedCoupon: db.Text(coupon)}
	f.products[productID] = db.Product{ID: productID, Name: "Prancha Fish 5'10", UnitPrice: unitPrice, QtyAvailable: stock}
	f.items[cartID] = []db.CartItem{{
		ID: db.NewUUID(), CartID: cartID, ProductID: productID,
		Name: "Prancha Fish 5'10", UnitPrice: unitPrice, Qty: qty,
	}}
	return cartID, productID
}

type fakeSessions struct {
	sessions map[string]checkout.Session
	placed   []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]checkout.Session{}}
}

func (f *fakeSessions) Get(_ context.Context, id string) (checkout.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return checkout.Session{}, checkout.ErrSessionNotFound
	}
	return sess, nil
}

func (f *fakeSessions) MarkPlaced(_ context.Context, id string) (checkout.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return checkout.Session{}, checkout.ErrSessionNotFound
	}
	sess.Stage = checkout.StageOrderPlaced
	f.sessions[id] = sess
	f.placed = append(f.placed, id)
	return sess, nil
}

// seed registers a session ready for placement and returns its id.
func (f *fakeSessions) seed(cartID string, method pricing.Method, option freight.Option) string {
	id := db.UUIDString(db.NewUUID())
	f.sessions[id] = checkout.Session{
		ID:            id,
		CartID:        cartID,
		Stage:         checkout.StagePaymentChosen,
		Selected:      &option,
		PaymentMethod: method,
	}
	return id
}

func pacOption(price pricing.Money) freight.Option {
	return freight.Option{Carrier: "Correios", Service: "PAC", ServiceID: "1", Price: price, DeliveryDays: 8}
}

type captureEnqueuer struct {
	tasks []*asynq.Task
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: task.Type()}, nil
}

type stubProvider struct {
	resp     payment.SessionResponse
	err      error
	requests []payment.SessionRequest
}

func (s *stubProvider) CreateSession(_ context.Context, req payment.SessionRequest) (payment.SessionResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return payment.SessionResponse{}, s.err
	}
	return s.resp, nil
}

func (s *stubProvider) VerifyWebhook(*http.Request, []byte) (payment.WebhookVerifyResult, error) {
	return payment.WebhookVerifyResult{}, nil
}

func newService(store *fakeStore) (*Service, *fakeSessions) {
	sessions := newFakeSessions()
	return &Service{
		Store:    store,
		Sessions: sessions,
		Policy:   pricing.DefaultPolicy(),
		Logger:   zerolog.Nop(),
	}, sessions
}

func guestAddress() *AddressInput {
	return &AddressInput{
		ReceiverName: "Ana Souza",
		Phone:        "21999998888",
		CEP:          "22070-002",
		Street:       "Av. Atlântica",
		Number:       "1702",
		District:     "Copacabana",
		City:         "Rio de Janeiro",
		State:        "RJ",
	}
}

func TestPlacePixOrderComputesBreakdownAndClearsCart(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID, _ := store.seedCart("ELITE10", 2, 5, 45000)
	enq := &captureEnqueuer{}

	svc, sessions := newService(store)
	svc.Operator = &notify.Operator{Client: enq, Logger: zerolog.Nop()}
	sessionID := sessions.seed(db.UUIDString(cartID), pricing.MethodPix, pacOption(2490))

	out, err := svc.Place(context.Background(), nil, PlaceInput{
		SessionID: sessionID,
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodPix,
		Customer:  CustomerInput{Name: "Ana Souza", Email: "ana@example.com"},
	})
	require.NoError(t, err)
	require.Equal(t, db.OrderStatusAwaitingPayment, out.Status)
	require.Empty(t, out.RedirectURL)

	// subtotal 900.00, coupon 90.00, pix 81.00 on the post-coupon amount
	require.EqualValues(t, 90000, out.Pricing.Subtotal)
	require.EqualValues(t, 9000, out.Pricing.CouponDiscount)
	require.EqualValues(t, 8100, out.Pricing.PaymentDiscount)
	require.EqualValues(t, 75390, out.Pricing.Total)

	require.Len(t, store.orders, 1)
	for _, o := range store.orders {
		require.Equal(t, "pix", o.PaymentMethod)
		require.EqualValues(t, 1000, o.DiscountBps)
		require.EqualValues(t, 75390, o.TotalAmount)
		require.Len(t, store.orderItems[o.ID], 1)
	}

	// cart emptied and coupon released only after everything succeeded
	require.Empty(t, store.items[cartID])
	require.False(t, store.carts[cartID].AppliedCoupon.Valid)
	require.Len(t, enq.tasks, 1)

	// the session is finalized so it cannot place a second order
	require.Equal(t, []string{sessionID}, sessions.placed)
	require.Equal(t, checkout.StageOrderPlaced, sessions.sessions[sessionID].Stage)
}

func TestPlaceStockConflictHasNoSideEffects(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID, _ := store.seedCart("", 3, 1, 45000)

	svc, sessions := newService(store)
	_, err := svc.Place(context.Background(), nil, PlaceInput{
		SessionID: sessions.seed(db.UUIDString(cartID), pricing.MethodPix, pacOption(0)),
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodPix,
	})

	var conflict *StockConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 1)
	require.Equal(t, "Prancha Fish 5'10", conflict.Conflicts[0].ProductName)
	require.EqualValues(t, 1, conflict.Conflicts[0].AvailableStock)

	require.Empty(t, store.orders)
	require.Empty(t, store.addresses)
	require.Len(t, store.items[cartID], 1)
}

func TestPlaceGuestPersistsSubmittedAddress(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID, _ := store.seedCart("", 1, 5, 45000)

	svc, sessions := newService(store)
	out, err := svc.Place(context.Background(), nil, PlaceInput{
		SessionID: sessions.seed(db.UUIDString(cartID), pricing.MethodPix, pacOption(0)),
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodPix,
	})
	require.NoError(t, err)

	require.Len(t, store.addresses, 1)
	for _, a := range store.addresses {
		require.False(t, a.UserID.Valid)
		require.Equal(t, "22070-002", a.CEP)
		orderID, parseErr := db.ToUUID(out.OrderID)
		require.NoError(t, parseErr)
		require.True(t, db.UUIDEqual(store.orders[orderID].AddressID, a.ID))
	}
}

func TestPlaceProcessorReturnsRedirect(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID, _ := store.seedCart("", 1, 5, 45000)
	provider := &stubProvider{resp: payment.SessionResponse{
		Provider:    "stripe",
		SessionID:   "cs_123",
		RedirectURL: "https://checkout.stripe.com/pay/cs_123",
	}}

	svc, sessions := newService(store)
	svc.Payments = provider
	svc.Currency = "BRL"

	out, err := svc.Place(context.Background(), nil, PlaceInput{
		SessionID: sessions.seed(db.UUIDString(cartID), pricing.MethodCard, pacOption(2490)),
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodCard,
	})
	require.NoError(t, err)
	require.Equal(t, "https://checkout.stripe.com/pay/cs_123", out.RedirectURL)

	require.Len(t, provider.requests, 1)
	require.Equal(t, out.OrderID, provider.requests[0].OrderID)
	// card gets no payment-method discount
	require.EqualValues(t, 45000+2490, provider.requests[0].Amount)
	require.Empty(t, store.items[cartID])
}

func TestPlaceProcessorFailureKeepsCartAndCancelsOrder(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID, _ := store.seedCart("", 1, 5, 45000)

	svc, sessions := newService(store)
	svc.Payments = &stubProvider{err: errors.New("gateway unavailable")}

	_, err := svc.Place(context.Background(), nil, PlaceInput{
		SessionID: sessions.seed(db.UUIDString(cartID), pricing.MethodCard, pacOption(0)),
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodCard,
	})
	require.Error(t, err)

	require.Len(t, store.items[cartID], 1)
	for _, o := range store.orders {
		require.Equal(t, db.OrderStatusCanceled, o.Status)
	}
}

func TestPlaceRejectsForeignCart(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID, _ := store.seedCart("", 1, 5, 45000)
	owner := db.NewUUID()
	c := store.carts[cartID]
	c.UserID = owner
	store.carts[cartID] = c

	intruder := db.UUIDString(db.NewUUID())
	svc, sessions := newService(store)
	_, err := svc.Place(context.Background(), &intruder, PlaceInput{
		SessionID: sessions.seed(db.UUIDString(cartID), pricing.MethodPix, pacOption(0)),
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodPix,
	})
	require.ErrorIs(t, err, ErrCartOwnership)
}

func TestPlaceEmptyCart(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID := db.NewUUID()
	store.carts[cartID] = db.Cart{ID: cartID}

	svc, sessions := newService(store)
	_, err := svc.Place(context.Background(), nil, PlaceInput{
		SessionID: sessions.seed(db.UUIDString(cartID), pricing.MethodPix, pacOption(0)),
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodPix,
	})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceUnknownSession(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID, _ := store.seedCart("", 1, 5, 45000)

	svc, _ := newService(store)
	_, err := svc.Place(context.Background(), nil, PlaceInput{
		SessionID: db.UUIDString(db.NewUUID()),
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodPix,
	})
	require.ErrorIs(t, err, checkout.ErrSessionNotFound)
	require.Empty(t, store.orders)
}

func TestPlaceRequiresPaymentChosenSession(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID, _ := store.seedCart("", 1, 5, 45000)

	svc, sessions := newService(store)
	sessionID := sessions.seed(db.UUIDString(cartID), pricing.MethodPix, pacOption(2490))
	sess := sessions.sessions[sessionID]
	sess.Stage = checkout.StageShippingSelected
	sessions.sessions[sessionID] = sess

	_, err := svc.Place(context.Background(), nil, PlaceInput{
		SessionID: sessionID,
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodPix,
	})
	require.ErrorIs(t, err, ErrCheckoutIncomplete)
	require.Empty(t, store.orders)
	require.Len(t, store.items[cartID], 1)
}

func TestPlaceRejectsSessionForOtherCart(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID, _ := store.seedCart("", 1, 5, 45000)

	svc, sessions := newService(store)
	foreign := sessions.seed(db.UUIDString(db.NewUUID()), pricing.MethodPix, pacOption(2490))

	_, err := svc.Place(context.Background(), nil, PlaceInput{
		SessionID: foreign,
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodPix,
	})
	require.ErrorIs(t, err, ErrSessionMismatch)
	require.Empty(t, store.orders)
}

func TestPlaceRejectsMethodSwitchAfterSession(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cartID, _ := store.seedCart("", 1, 5, 45000)

	svc, sessions := newService(store)
	sessionID := sessions.seed(db.UUIDString(cartID), pricing.MethodPix, pacOption(2490))

	_, err := svc.Place(context.Background(), nil, PlaceInput{
		SessionID: sessionID,
		CartID:    db.UUIDString(cartID),
		Address:   guestAddress(),
		Method:    pricing.MethodCard,
	})
	require.ErrorIs(t, err, ErrSessionMismatch)
	require.Empty(t, store.orders)
}
