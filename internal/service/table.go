package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/enum"
	"github.com/easyorder/api/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// TableStore defines the DB methods needed for table occupancy and
// reservations. Satisfied by *database.Queries.
type TableStore interface {
	ListTables(ctx context.Context) ([]database.Table, error)
	GetTable(ctx context.Context, id int64) (database.Table, error)
	GetTableForUpdate(ctx context.Context, id int64) (database.Table, error)
	OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.Table, error)
	ReleaseTable(ctx context.Context, id int64) (database.Table, error)
	CountActiveOrdersByTable(ctx context.Context, arg database.CountActiveOrdersByTableParams) (int64, error)
	ListReservations(ctx context.Context, arg database.ListReservationsParams) ([]database.Reservation, error)
	CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id int64) (database.Reservation, error)
	UpdateReservationStatus(ctx context.Context, arg database.UpdateReservationStatusParams) (database.Reservation, error)
	AssignReservation(ctx context.Context, arg database.AssignReservationParams) (database.Reservation, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// ReservationFilter narrows ListReservations. Zero fields are ignored.
type ReservationFilter struct {
	Shift string
	From  time.Time
	To    time.Time
}

// CreateReservationRequest books a future visit.
type CreateReservationRequest struct {
	CustomerName    string
	Pax             int32
	ReservationTime time.Time
	Shift           string
	Notes           string
}

// AssignResult is the outcome of seating a reservation.
type AssignResult struct {
	Reservation database.Reservation
	Table       database.Table
}

// TableService manages table occupancy outside the order lifecycle:
// reservation seating and the manual release of a table left occupied
// without an order.
type TableService struct {
	pool     Pool
	newStore NewTableStore
	hooks
}

// NewTableService creates a new TableService.
func NewTableService(pool Pool, newStore NewTableStore, opts ...Option) *TableService {
	return &TableService{pool: pool, newStore: newStore, hooks: newHooks("tables", opts)}
}

// ListTables returns every table.
func (s *TableService) ListTables(ctx context.Context) ([]database.Table, error) {
	tables, err := s.newStore(s.pool).ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// GetTable returns a single table.
func (s *TableService) GetTable(ctx context.Context, id int64) (database.Table, error) {
	table, err := s.newStore(s.pool).GetTable(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Table{}, ErrTableNotFound
		}
		return database.Table{}, fmt.Errorf("get table: %w", err)
	}
	return table, nil
}

// AssignReservation seats a reservation at an available table. The table is
// marked occupied with no order, and the reservation is completed.
func (s *TableService) AssignReservation(ctx context.Context, reservationID, tableID int64, actor Actor) (*AssignResult, error) {
	if !canManageTables(actor.Role) {
		return nil, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("lock table: %w", err)
	}
	if table.Status != enum.TableStatusAvailable {
		return nil, fmt.Errorf("table %s: %w", table.Number, ErrTableNotAvailable)
	}

	res, err := store.GetReservationForUpdate(ctx, reservationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("lock reservation: %w", err)
	}
	if enum.IsTerminalReservationStatus(res.Status) {
		return nil, ErrReservationClosed
	}

	table, err = store.OccupyTable(ctx, database.OccupyTableParams{ID: table.ID})
	if err != nil {
		return nil, fmt.Errorf("occupy table: %w", err)
	}
	res, err = store.AssignReservation(ctx, database.AssignReservationParams{ID: res.ID, TableID: table.ID})
	if err != nil {
		return nil, fmt.Errorf("assign reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.afterCommit(ctx, []string{enum.TopicTables}, events.Event{
		Type:          events.ReservationAssigned,
		ReservationID: res.ID,
		TableID:       table.ID,
		ActorID:       actor.UserID,
	})

	return &AssignResult{Reservation: res, Table: table}, nil
}

// ReleaseTable frees a table that is occupied without any active order, the
// state a reservation seating leaves behind when no order follows. It is
// never run automatically.
func (s *TableService) ReleaseTable(ctx context.Context, tableID int64, actor Actor) (database.Table, error) {
	if !canManageTables(actor.Role) {
		return database.Table{}, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Table{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Table{}, ErrTableNotFound
		}
		return database.Table{}, fmt.Errorf("lock table: %w", err)
	}
	if table.Status == enum.TableStatusAvailable {
		return table, nil
	}

	active, err := store.CountActiveOrdersByTable(ctx, database.CountActiveOrdersByTableParams{TableID: table.ID})
	if err != nil {
		return database.Table{}, fmt.Errorf("count table orders: %w", err)
	}
	if active > 0 {
		return database.Table{}, fmt.Errorf("table %s: %w", table.Number, ErrTableHasActiveOrders)
	}

	table, err = store.ReleaseTable(ctx, table.ID)
	if err != nil {
		return database.Table{}, fmt.Errorf("release table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Table{}, fmt.Errorf("commit tx: %w", err)
	}

	s.afterCommit(ctx, []string{enum.TopicTables}, events.Event{
		Type:    events.TableReleased,
		TableID: table.ID,
		ActorID: actor.UserID,
	})

	return table, nil
}

// ListReservations returns reservations ordered by time.
func (s *TableService) ListReservations(ctx context.Context, f ReservationFilter) ([]database.Reservation, error) {
	arg := database.ListReservationsParams{}
	if f.Shift != "" {
		if !enum.IsValidShift(f.Shift) {
			return nil, ErrInvalidShift
		}
		arg.Shift = pgtype.Text{String: f.Shift, Valid: true}
	}
	if !f.From.IsZero() {
		arg.From = pgtype.Timestamptz{Time: f.From, Valid: true}
	}
	if !f.To.IsZero() {
		arg.To = pgtype.Timestamptz{Time: f.To, Valid: true}
	}

	res, err := s.newStore(s.pool).ListReservations(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return res, nil
}

// CreateReservation books a pending reservation.
func (s *TableService) CreateReservation(ctx context.Context, req CreateReservationRequest) (database.Reservation, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return database.Reservation{}, ErrCustomerRequired
	}
	if req.Pax <= 0 {
		return database.Reservation{}, ErrInvalidPax
	}
	if !enum.IsValidShift(req.Shift) {
		return database.Reservation{}, ErrInvalidShift
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	res, err := s.newStore(s.pool).CreateReservation(ctx, database.CreateReservationParams{
		CustomerName:    name,
		Pax:             req.Pax,
		ReservationTime: req.ReservationTime,
		Shift:           req.Shift,
		Status:          enum.ReservationStatusPending,
		Notes:           notes,
	})
	if err != nil {
		return database.Reservation{}, fmt.Errorf("create reservation: %w", err)
	}
	return res, nil
}

// UpdateReservationStatus changes a reservation's status. Completion only
// happens through AssignReservation, and closed reservations are immutable.
func (s *TableService) UpdateReservationStatus(ctx context.Context, id int64, status string) (database.Reservation, error) {
	if !enum.IsValidReservationStatus(status) || status == enum.ReservationStatusCompleted {
		return database.Reservation{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Reservation{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	res, err := store.GetReservationForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Reservation{}, ErrReservationNotFound
		}
		return database.Reservation{}, fmt.Errorf("lock reservation: %w", err)
	}
	if enum.IsTerminalReservationStatus(res.Status) {
		return database.Reservation{}, ErrReservationClosed
	}

	res, err = store.UpdateReservationStatus(ctx, database.UpdateReservationStatusParams{ID: id, Status: status})
	if err != nil {
		return database.Reservation{}, fmt.Errorf("update reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Reservation{}, fmt.Errorf("commit tx: %w", err)
	}
	return res, nil
}
