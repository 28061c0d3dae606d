package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderItemColumns = `id, order_id, product_id, quantity, unit_price, notes`

func scanOrderItem(row rowScanner) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.Quantity,
		&i.UnitPrice,
		&i.Notes,
	)
	return i, err
}

func collectOrderItems(ctx context.Context, db DBTX, query string, args ...interface{}) ([]OrderItem, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
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

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, quantity, unit_price, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID   int64
	ProductID int64
	Quantity  int32
	UnitPrice pgtype.Numeric
	Notes     pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.Quantity,
		arg.UnitPrice,
		arg.Notes,
	))
}

const deleteOrderItemsByOrder = `-- name: DeleteOrderItemsByOrder :execrows
DELETE FROM order_items WHERE order_id = $1`

func (q *Queries) DeleteOrderItemsByOrder(ctx context.Context, orderID int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrderItemsByOrder, orderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return collectOrderItems(ctx, q.db, listOrderItemsByOrder, orderID)
}

const listOrderItemsByOrders = `-- name: ListOrderItemsByOrders :many
SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = ANY($1::bigint[]) ORDER BY order_id, id`

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIDs []int64) ([]OrderItem, error) {
	return collectOrderItems(ctx, q.db, listOrderItemsByOrders, orderIDs)
}
