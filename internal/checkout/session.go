package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/elitesurfing/backend-loja/internal/freight"
	"github.com/elitesurfing/backend-loja/internal/pricing"
	regionpkg "github.com/elitesurfing/backend-loja/internal/region"
)

// Stage is a checkout session phase. Transitions only move forward through
// the flow; edits to earlier phases reset everything downstream.
type Stage string

const (
	StageCartReview       Stage = "cart_review"
	StageAddressSelected  Stage = "address_selected"
	StageShippingSelected Stage = "shipping_selected"
	StagePaymentChosen    Stage = "payment_chosen"
	StageOrderPlaced      Stage = "order_placed"
)

var (
	// ErrSessionNotFound indicates the session id is unknown or expired.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrInvalidTransition indicates the requested step is not reachable
	// from the session's current stage.
	ErrInvalidTransition = errors.New("invalid checkout transition")
	// ErrStaleQuote indicates the shipping selection references a quote
	// superseded by a newer one (cart or destination changed since).
	ErrStaleQuote = errors.New("shipping quote is stale")
)

// Session is the redis-persisted checkout state. QuoteSeq increases every
// time a fresh quote is attached; a shipping selection must present the
// current value or it is rejected as stale.
type Session struct {
	ID            string           `json:"id"`
	CartID        string           `json:"cartId"`
	UserID        string           `json:"userId,omitempty"`
	Stage         Stage            `json:"stage"`
	AddressID     string           `json:"addressId,omitempty"`
	CEP           string           `json:"cep,omitempty"`
	Region        regionpkg.Region `json:"region,omitempty"`
	QuoteSeq      int64            `json:"quoteSeq"`
	Options       []freight.Option `json:"options,omitempty"`
	Selected      *freight.Option  `json:"selected,omitempty"`
	PaymentMethod pricing.Method   `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Store persists checkout sessions in redis as JSON with a TTL.
type Store struct {
	R   *redis.Client
	TTL time.Duration
	Now func() time.Time
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 2 * time.Hour
	}
	return s.TTL
}

func sessionKey(id string) string { return "checkout:session:" + id }

func cartIndexKey(cartID string) string { return "checkout:cart:" + cartID }

// Create opens a new session at the cart-review stage.
func (s *Store) Create(ctx context.Context, cartID, userID string) (Session, error) {
	if s == nil || s.R == nil {
		return Session{}, errors.New("checkout store not configured")
	}
	now := s.now()
	sess := Session{
		ID:        uuid.NewString(),
		CartID:    cartID,
		UserID:    userID,
		Stage:     StageCartReview,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, sess); err != nil {
		return Session{}, err
	}
	// index by cart so mutations can find the live session
	if err := s.R.Set(ctx, cartIndexKey(cartID), sess.ID, s.ttl()).Err(); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Get loads a session by id.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	if s == nil || s.R == nil {
		return Session{}, errors.New("checkout store not configured")
	}
	data, err := s.R.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, sessionKey(sess.ID), data, s.ttl()).Err()
}

// SetAddress records the destination and moves the session to the
// address-selected stage. Any previously quoted or selected shipping is
// dropped: the destination determines rates and thresholds.
func (s *Store) SetAddress(ctx context.Context, id, addressID, cep string, r regionpkg.Region) (Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Stage == StageOrderPlaced {
		return Session{}, ErrInvalidTransition
	}
	sess.AddressID = addressID
	sess.CEP = cep
	sess.Region = r
	sess.Stage = StageAddressSelected
	sess.Options = nil
	sess.Selected = nil
	sess.PaymentMethod = ""
	sess.UpdatedAt = s.now()
	if err := s.save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// AttachQuote stores a fresh option list and bumps the quote sequence,
// invalidating any selection made against a previous quote.
func (s *Store) AttachQuote(ctx context.Context, id string, options []freight.Option) (Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Stage == StageCartReview || sess.Stage == StageOrderPlaced {
		return Session{}, ErrInvalidTransition
	}
	sess.QuoteSeq++
	sess.Options = options
	sess.Selected = nil
	if sess.Stage != StageAddressSelected {
		sess.Stage = StageAddressSelected
	}
	sess.UpdatedAt = s.now()
	if err := s.save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// SelectShipping picks an option from the current quote. The caller must
// present the sequence number it quoted against.
func (s *Store) SelectShipping(ctx context.Context, id string, quoteSeq int64, serviceID string) (Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Stage != StageAddressSelected && sess.Stage != StageShippingSelected {
		return Session{}, ErrInvalidTransition
	}
	if quoteSeq != sess.QuoteSeq || len(sess.Options) == 0 {
		return Session{}, ErrStaleQuote
	}
	var selected *freight.Option
	for i := range sess.Options {
		if sess.Options[i].ServiceID == serviceID {
			selected = &sess.Options[i]
			break
		}
	}
	if selected == nil {
		return Session{}, ErrInvalidTransition
	}
	sess.Selected = selected
	sess.Stage = StageShippingSelected
	sess.PaymentMethod = ""
	sess.UpdatedAt = s.now()
	if err := s.save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ChoosePayment records the payment method once shipping is fixed.
// Switching to a different method after one was chosen invalidates the
// shipping selection and drops the session back to address-selected: the
// caller must re-quote before placing the order.
func (s *Store) ChoosePayment(ctx context.Context, id string, method pricing.Method) (Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	switch sess.Stage {
	case StageShippingSelected:
		sess.PaymentMethod = method
		sess.Stage = StagePaymentChosen
	case StagePaymentChosen:
		if method != sess.PaymentMethod {
			sess.Selected = nil
			sess.PaymentMethod = ""
			sess.Stage = StageAddressSelected
		}
	default:
		return Session{}, ErrInvalidTransition
	}
	sess.UpdatedAt = s.now()
	if err := s.save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// MarkPlaced finalizes the session after successful order creation.
func (s *Store) MarkPlaced(ctx context.Context, id string) (Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Stage != StagePaymentChosen {
		return Session{}, ErrInvalidTransition
	}
	sess.Stage = StageOrderPlaced
	sess.UpdatedAt = s.now()
	if err := s.save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Invalidate reacts to a cart or coupon mutation: quoted options and
// selections no longer describe the cart, so the session falls back to the
// address-selected stage (or cart review if no address is set yet).
func (s *Store) Invalidate(ctx context.Context, id string) (Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Stage == StageOrderPlaced {
		return sess, nil
	}
	if sess.AddressID != "" || sess.CEP != "" {
		sess.Stage = StageAddressSelected
	} else {
		sess.Stage = StageCartReview
	}
	sess.Options = nil
	sess.Selected = nil
	sess.PaymentMethod = ""
	sess.UpdatedAt = s.now()
	if err := s.save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// InvalidateByCart resets the cart's live session after a line or coupon
// mutation. No session for the cart is not an error.
func (s *Store) InvalidateByCart(ctx context.Context, cartID string) error {
	if s == nil || s.R == nil {
		return errors.New("checkout store not configured")
	}
	id, err := s.R.Get(ctx, cartIndexKey(cartID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	if _, err := s.Invalidate(ctx, id); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return nil
}
