package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, number, capacity, status, current_order_id, created_at`

func scanTable(row rowScanner) (Table, error) {
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Status,
		&i.CurrentOrderID,
		&i.CreatedAt,
	)
	return i, err
}

const createTable = `-- name: CreateTable :one
INSERT INTO tables (number, capacity)
VALUES ($1, $2)
RETURNING ` + tableColumns

type CreateTableParams struct {
	Number   string
	Capacity int32
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, createTable, arg.Number, arg.Capacity))
}

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + ` FROM tables WHERE id = $1`

func (q *Queries) GetTable(ctx context.Context, id int64) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, id))
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + tableColumns + ` FROM tables WHERE id = $1 FOR UPDATE`

// GetTableForUpdate row-locks the table for the rest of the transaction.
// Every multi-step order/table sequence takes this lock first, so writers on
// the same table are serialized.
func (q *Queries) GetTableForUpdate(ctx context.Context, id int64) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTableForUpdate, id))
}

const listTables = `-- name: ListTables :many
SELECT ` + tableColumns + ` FROM tables ORDER BY id`

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Table{}
	for rows.Next() {
		i, err := scanTable(rows)
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

const occupyTable = `-- name: OccupyTable :one
UPDATE tables
SET status = 'occupied', current_order_id = $2
WHERE id = $1
RETURNING ` + tableColumns

type OccupyTableParams struct {
	ID             int64
	CurrentOrderID pgtype.Int8
}

func (q *Queries) OccupyTable(ctx context.Context, arg OccupyTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, occupyTable, arg.ID, arg.CurrentOrderID))
}

const releaseTable = `-- name: ReleaseTable :one
UPDATE tables
SET status = 'available', current_order_id = NULL
WHERE id = $1
RETURNING ` + tableColumns

func (q *Queries) ReleaseTable(ctx context.Context, id int64) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, releaseTable, id))
}
