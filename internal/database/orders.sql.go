package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, server_id, status, total_amount, created_at, updated_at`

func scanOrder(row rowScanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.ServerID,
		&i.Status,
		&i.TotalAmount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrders(ctx context.Context, db DBTX, query string, args ...interface{}) ([]Order, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (table_id, server_id, status, total_amount)
VALUES ($1, $2, 'pending', $3)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	TableID     int64
	ServerID    uuid.UUID
	TotalAmount pgtype.Numeric
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder, arg.TableID, arg.ServerID, arg.TotalAmount))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listActiveOrders = `-- name: ListActiveOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE status NOT IN ('completed', 'cancelled')
ORDER BY created_at ASC, id ASC`

func (q *Queries) ListActiveOrders(ctx context.Context) ([]Order, error) {
	return collectOrders(ctx, q.db, listActiveOrders)
}

const listActiveOrdersByTable = `-- name: ListActiveOrdersByTable :many
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND status NOT IN ('completed', 'cancelled')
ORDER BY created_at ASC, id ASC`

func (q *Queries) ListActiveOrdersByTable(ctx context.Context, tableID int64) ([]Order, error) {
	return collectOrders(ctx, q.db, listActiveOrdersByTable, tableID)
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID int64
	// Status is the target status.
	Status string
	// PreviousStatus guards the write: no row is returned when the stored
	// status no longer matches.
	PreviousStatus string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PreviousStatus))
}

const completeActiveOrdersByTable = `-- name: CompleteActiveOrdersByTable :many
UPDATE orders
SET status = 'completed', updated_at = now()
WHERE table_id = $1 AND id <> $2 AND status NOT IN ('completed', 'cancelled')
RETURNING id`

type CompleteActiveOrdersByTableParams struct {
	TableID   int64
	ExcludeID int64
}

// CompleteActiveOrdersByTable closes every other open ticket of the table and
// returns their ids.
func (q *Queries) CompleteActiveOrdersByTable(ctx context.Context, arg CompleteActiveOrdersByTableParams) ([]int64, error) {
	rows, err := q.db.Query(ctx, completeActiveOrdersByTable, arg.TableID, arg.ExcludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countActiveOrdersByTable = `-- name: CountActiveOrdersByTable :one
SELECT count(*) FROM orders
WHERE table_id = $1 AND id <> $2 AND status NOT IN ('completed', 'cancelled')`

type CountActiveOrdersByTableParams struct {
	TableID   int64
	ExcludeID int64
}

func (q *Queries) CountActiveOrdersByTable(ctx context.Context, arg CountActiveOrdersByTableParams) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveOrdersByTable, arg.TableID, arg.ExcludeID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateOrderTotal = `-- name: UpdateOrderTotal :one
UPDATE orders
SET total_amount = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderTotalParams struct {
	ID          int64
	TotalAmount pgtype.Numeric
}

func (q *Queries) UpdateOrderTotal(ctx context.Context, arg UpdateOrderTotalParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTotal, arg.ID, arg.TotalAmount))
}
