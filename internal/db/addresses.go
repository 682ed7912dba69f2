package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createAddress = `
INSERT INTO addresses (id, user_id, receiver_name, phone, cep, street, number, complement, district, city, state)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, user_id, receiver_name, phone, cep, street, number, complement, district, city, state, created_at
`

// CreateAddressParams carries a delivery address. UserID stays null for
// guest checkouts.
type CreateAddressParams struct {
	UserID       pgtype.UUID
	ReceiverName string
	Phone        string
	CEP          string
	Street       string
	Number       string
	Complement   pgtype.Text
	District     string
	City         string
	State        string
}

// CreateAddress persists a delivery address.
func (q *Queries) CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error) {
	row := q.db.QueryRow(ctx, createAddress,
		NewUUID(), arg.UserID, arg.ReceiverName, arg.Phone, arg.CEP,
		arg.Street, arg.Number, arg.Complement, arg.District, arg.City, arg.State)
	return scanAddress(row)
}

const getAddressByID = `
SELECT id, user_id, receiver_name, phone, cep, street, number, complement, district, city, state, created_at
FROM addresses
WHERE id = $1
`

// GetAddressByID loads an address by identifier.
func (q *Queries) GetAddressByID(ctx context.Context, id pgtype.UUID) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, getAddressByID, id))
}

const getAddressForUser = `
SELECT id, user_id, receiver_name, phone, cep, street, number, complement, district, city, state, created_at
FROM addresses
WHERE id = $1 AND user_id = $2
`

// GetAddressForUserParams scopes the lookup to the owning user.
type GetAddressForUserParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

// GetAddressForUser loads an address only if it belongs to the user.
func (q *Queries) GetAddressForUser(ctx context.Context, arg GetAddressForUserParams) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, getAddressForUser, arg.ID, arg.UserID))
}

const listAddressesByUser = `
SELECT id, user_id, receiver_name, phone, cep, street, number, complement, district, city, state, created_at
FROM addresses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

// ListAddressesByUserParams paginates the user's address book.
type ListAddressesByUserParams struct {
	UserID pgtype.UUID
	Limit  int32
	Offset int32
}

// ListAddressesByUser returns the user's saved addresses.
func (q *Queries) ListAddressesByUser(ctx context.Context, arg ListAddressesByUserParams) ([]Address, error) {
	rows, err := q.db.Query(ctx, listAddressesByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var addresses []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.ReceiverName, &a.Phone, &a.CEP, &a.Street, &a.Number, &a.Complement, &a.District, &a.City, &a.State, &a.CreatedAt); err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

const deleteAddressForUser = `
DELETE FROM addresses WHERE id = $1 AND user_id = $2
`

// DeleteAddressForUserParams scopes the deletion to the owning user.
type DeleteAddressForUserParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

// DeleteAddressForUser removes a saved address.
func (q *Queries) DeleteAddressForUser(ctx context.Context, arg DeleteAddressForUserParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteAddressForUser, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanAddress(row interface{ Scan(dest ...any) error }) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.ReceiverName, &a.Phone, &a.CEP, &a.Street, &a.Number, &a.Complement, &a.District, &a.City, &a.State, &a.CreatedAt)
	return a, err
}
