package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/elitesurfing/backend-loja/internal/db"
)

var (
	// ErrNotFound indicates the address does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("user: address not found")
	// ErrInvalidInput indicates the payload failed validation.
	ErrInvalidInput = errors.New("user: invalid input")
)

// Address is an address book entry in API-friendly format.
type Address struct {
	ID           string    `json:"id"`
	ReceiverName string    `json:"receiverName"`
	Phone        string    `json:"phone"`
	CEP          string    `json:"cep"`
	Street       string    `json:"street"`
	Number       string    `json:"number"`
	Complement   string    `json:"complement,omitempty"`
	District     string    `json:"district"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AddressInput captures a payload for creating an address book entry.
type AddressInput struct {
	ReceiverName string `json:"receiverName" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	CEP          string `json:"cep" validate:"required"`
	Street       string `json:"street" validate:"required"`
	Number       string `json:"number" validate:"required"`
	Complement   string `json:"complement"`
	District     string `json:"district" validate:"required"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required,len=2"`
}

// Queries is the slice of the store layer the address book depends on.
type Queries interface {
	CreateAddress(ctx context.Context, arg db.CreateAddressParams) (db.Address, error)
	ListAddressesByUser(ctx context.Context, arg db.ListAddressesByUserParams) ([]db.Address, error)
	DeleteAddressForUser(ctx context.Context, arg db.DeleteAddressForUserParams) (int64, error)
}

// Service manages the registered user's address book. Guest addresses
// never pass through here; they are persisted during order placement.
type Service struct {
	Q Queries
}

// List returns the user's saved addresses, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int32) ([]Address, error) {
	uid, err := db.ToUUID(userID)
	if err != nil {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Q.ListAddressesByUser(ctx, db.ListAddressesByUserParams{UserID: uid, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	out := make([]Address, 0, len(rows))
	for _, row := range rows {
		out = append(out, convert(row))
	}
	return out, nil
}

// Create saves a new address for the user.
func (s *Service) Create(ctx context.Context, userID string, in AddressInput) (Address, error) {
	uid, err := db.ToUUID(userID)
	if err != nil {
		return Address{}, ErrInvalidInput
	}
	created, err := s.Q.CreateAddress(ctx, db.CreateAddressParams{
		UserID:       uid,
		ReceiverName: strings.TrimSpace(in.ReceiverName),
		Phone:        strings.TrimSpace(in.Phone),
		CEP:          strings.TrimSpace(in.CEP),
		Street:       strings.TrimSpace(in.Street),
		Number:       strings.TrimSpace(in.Number),
		Complement:   db.Text(strings.TrimSpace(in.Complement)),
		District:     strings.TrimSpace(in.District),
		City:         strings.TrimSpace(in.City),
		State:        strings.ToUpper(strings.TrimSpace(in.State)),
	})
	if err != nil {
		return Address{}, err
	}
	return convert(created), nil
}

// Delete removes a saved address owned by the user.
func (s *Service) Delete(ctx context.Context, userID, addressID string) error {
	uid, err := db.ToUUID(userID)
	if err != nil {
		return ErrInvalidInput
	}
	aid, err := db.ToUUID(addressID)
	if err != nil {
		return ErrNotFound
	}
	rows, err := s.Q.DeleteAddressForUser(ctx, db.DeleteAddressForUserParams{ID: aid, UserID: uid})
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func convert(row db.Address) Address {
	return Address{
		ID:           db.UUIDString(row.ID),
		ReceiverName: row.ReceiverName,
		Phone:        row.Phone,
		CEP:          row.CEP,
		Street:       row.Street,
		Number:       row.Number,
		Complement:   textString(row.Complement),
		District:     row.District,
		City:         row.City,
		State:        row.State,
		CreatedAt:    row.CreatedAt.Time,
	}
}

func textString(v pgtype.Text) string {
	if !v.Valid {
		return ""
	}
	return v.String
}
