package database

import (
	"context"

	"github.com/google/uuid"
)

const staffColumns = `id, email, full_name, password_hash, role, is_active, created_at`

func scanStaff(row rowScanner) (Staff, error) {
	var i Staff
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.FullName,
		&i.PasswordHash,
		&i.Role,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const getStaffByEmail = `-- name: GetStaffByEmail :one
SELECT ` + staffColumns + ` FROM staff WHERE lower(email) = lower($1) AND is_active = TRUE`

func (q *Queries) GetStaffByEmail(ctx context.Context, email string) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, getStaffByEmail, email))
}

const upsertStaff = `-- name: UpsertStaff :one
INSERT INTO staff (email, full_name, password_hash, role)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE
SET full_name = EXCLUDED.full_name,
    password_hash = EXCLUDED.password_hash,
    role = EXCLUDED.role,
    is_active = TRUE
RETURNING ` + staffColumns

type UpsertStaffParams struct {
	Email        string
	FullName     string
	PasswordHash string
	Role         string
}

func (q *Queries) UpsertStaff(ctx context.Context, arg UpsertStaffParams) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, upsertStaff, arg.Email, arg.FullName, arg.PasswordHash, arg.Role))
}

const getStaffByID = `-- name: GetStaffByID :one
SELECT ` + staffColumns + ` FROM staff WHERE id = $1 AND is_active = TRUE`

func (q *Queries) GetStaffByID(ctx context.Context, id uuid.UUID) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, getStaffByID, id))
}
