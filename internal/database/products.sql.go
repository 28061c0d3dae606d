package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, category_id, name, description, price, is_active`

func scanProduct(row rowScanner) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.IsActive,
	)
	return i, err
}

func collectProducts(ctx context.Context, db DBTX, query string, args ...interface{}) ([]Product, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		i, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getProduct = `-- name: GetProduct :one
SELECT ` + productColumns + ` FROM products WHERE id = $1 AND is_active = TRUE`

// GetProduct returns an active catalog product.
func (q *Queries) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const listActiveProducts = `-- name: ListActiveProducts :many
SELECT ` + productColumns + ` FROM products
WHERE is_active = TRUE
ORDER BY category_id NULLS LAST, name`

func (q *Queries) ListActiveProducts(ctx context.Context) ([]Product, error) {
	return collectProducts(ctx, q.db, listActiveProducts)
}

const listActiveProductsByIDs = `-- name: ListActiveProductsByIDs :many
SELECT ` + productColumns + ` FROM products
WHERE id = ANY($1::bigint[]) AND is_active = TRUE`

func (q *Queries) ListActiveProductsByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	return collectProducts(ctx, q.db, listActiveProductsByIDs, ids)
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (category_id, name, description, price)
VALUES ($1, $2, $3, $4)
RETURNING ` + productColumns

type CreateProductParams struct {
	CategoryID  pgtype.Int8
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.Price,
	))
}

const listCategories = `-- name: ListCategories :many
SELECT id, name, type, sort_order FROM categories ORDER BY sort_order, name`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Category{}
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name, &i.Type, &i.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name, type, sort_order)
VALUES ($1, $2, $3)
RETURNING id, name, type, sort_order`

type CreateCategoryParams struct {
	Name      string
	Type      string
	SortOrder int32
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, arg.Name, arg.Type, arg.SortOrder)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.Type, &i.SortOrder)
	return i, err
}
