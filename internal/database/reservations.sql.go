package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const reservationColumns = `id, table_id, customer_name, pax, reservation_time, shift, status, notes, created_at`

func scanReservation(row rowScanner) (Reservation, error) {
	var i Reservation
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.CustomerName,
		&i.Pax,
		&i.ReservationTime,
		&i.Shift,
		&i.Status,
		&i.Notes,
		&i.CreatedAt,
	)
	return i, err
}

const createReservation = `-- name: CreateReservation :one
INSERT INTO reservations (customer_name, pax, reservation_time, shift, status, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + reservationColumns

type CreateReservationParams struct {
	CustomerName    string
	Pax             int32
	ReservationTime time.Time
	Shift           string
	Status          string
	Notes           pgtype.Text
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, createReservation,
		arg.CustomerName,
		arg.Pax,
		arg.ReservationTime,
		arg.Shift,
		arg.Status,
		arg.Notes,
	))
}

const getReservationForUpdate = `-- name: GetReservationForUpdate :one
SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`

func (q *Queries) GetReservationForUpdate(ctx context.Context, id int64) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getReservationForUpdate, id))
}

const listReservations = `-- name: ListReservations :many
SELECT ` + reservationColumns + ` FROM reservations
WHERE ($1::text IS NULL OR shift = $1)
  AND ($2::timestamptz IS NULL OR reservation_time >= $2)
  AND ($3::timestamptz IS NULL OR reservation_time <= $3)
ORDER BY reservation_time ASC, id ASC`

type ListReservationsParams struct {
	Shift pgtype.Text
	From  pgtype.Timestamptz
	To    pgtype.Timestamptz
}

func (q *Queries) ListReservations(ctx context.Context, arg ListReservationsParams) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, listReservations, arg.Shift, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Reservation{}
	for rows.Next() {
		i, err := scanReservation(rows)
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

const updateReservationStatus = `-- name: UpdateReservationStatus :one
UPDATE reservations SET status = $2 WHERE id = $1
RETURNING ` + reservationColumns

type UpdateReservationStatusParams struct {
	ID     int64
	Status string
}

func (q *Queries) UpdateReservationStatus(ctx context.Context, arg UpdateReservationStatusParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, updateReservationStatus, arg.ID, arg.Status))
}

const assignReservation = `-- name: AssignReservation :one
UPDATE reservations SET status = 'completed', table_id = $2 WHERE id = $1
RETURNING ` + reservationColumns

type AssignReservationParams struct {
	ID      int64
	TableID int64
}

func (q *Queries) AssignReservation(ctx context.Context, arg AssignReservationParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, assignReservation, arg.ID, arg.TableID))
}
