package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getProductByID = `
SELECT id, name, slug, unit_price, weight_grams, length_cm, width_cm, height_cm, qty_available, main_variant
FROM products
WHERE id = $1
`

// GetProductByID loads a single product.
func (q *Queries) GetProductByID(ctx context.Context, id pgtype.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProductByID, id)
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.UnitPrice, &p.WeightGrams, &p.LengthCm, &p.WidthCm, &p.HeightCm, &p.QtyAvailable, &p.MainVariant)
	return p, err
}

const listProductsByIDs = `
SELECT id, name, slug, unit_price, weight_grams, length_cm, width_cm, height_cm, qty_available, main_variant
FROM products
WHERE id = ANY($1::uuid[])
`

// ListProductsByIDs loads the products referenced by the provided ids.
func (q *Queries) ListProductsByIDs(ctx context.Context, ids []string) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.UnitPrice, &p.WeightGrams, &p.LengthCm, &p.WidthCm, &p.HeightCm, &p.QtyAvailable, &p.MainVariant); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const decrementStockIfAvailable = `
UPDATE products
SET qty_available = qty_available - $2
WHERE id = $1 AND qty_available >= $2
`

// DecrementStockIfAvailableParams identifies the product and quantity.
type DecrementStockIfAvailableParams struct {
	ID  pgtype.UUID
	Qty int32
}

// DecrementStockIfAvailable performs the atomic conditional stock decrement.
// It reports the number of rows updated: zero means the stock check failed
// and nothing changed.
func (q *Queries) DecrementStockIfAvailable(ctx context.Context, arg DecrementStockIfAvailableParams) (int64, error) {
	tag, err := q.db.Exec(ctx, decrementStockIfAvailable, arg.ID, arg.Qty)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
