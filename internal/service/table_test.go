package service

import (
	"context"
	"testing"
	"time"

	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/enum"
	"github.com/easyorder/api/internal/events"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableEnv struct {
	store     *mockStore
	pool      *mockPool
	notifier  *mockNotifier
	publisher *mockPublisher
	svc       *TableService
}

func newTestTableService(t *testing.T) *tableEnv {
	t.Helper()
	store := newMockStore()
	store.addTable(table5, "5")
	store.addTable(6, "6")

	env := &tableEnv{
		store:     store,
		pool:      &mockPool{store: store},
		notifier:  &mockNotifier{},
		publisher: &mockPublisher{},
	}
	newStore := func(db database.DBTX) TableStore { return store }
	env.svc = NewTableService(env.pool, newStore, WithNotifier(env.notifier), WithPublisher(env.publisher))
	return env
}

func (e *tableEnv) addReservation(id int64, status string) {
	e.store.reservations[id] = database.Reservation{
		ID: id, CustomerName: "Rivera", Pax: 4, Shift: enum.ShiftDinner, Status: status,
		ReservationTime: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC),
	}
}

func TestAssignReservation_OccupiesTableWithoutOrder(t *testing.T) {
	env := newTestTableService(t)
	env.addReservation(1, enum.ReservationStatusConfirmed)

	res, err := env.svc.AssignReservation(context.Background(), 1, table5, waiter)
	require.NoError(t, err)

	assert.Equal(t, enum.ReservationStatusCompleted, res.Reservation.Status)
	assert.Equal(t, pgtype.Int8{Int64: table5, Valid: true}, res.Reservation.TableID)
	assert.Equal(t, enum.TableStatusOccupied, res.Table.Status)
	assert.False(t, res.Table.CurrentOrderID.Valid)
	assert.Equal(t, res.Table, env.store.tables[table5])

	assert.Equal(t, []string{enum.TopicTables}, env.notifier.topics)
	assert.Equal(t, []string{events.ReservationAssigned}, env.publisher.types())
}

func TestAssignReservation_TableNotAvailable(t *testing.T) {
	env := newTestTableService(t)
	env.addReservation(1, enum.ReservationStatusPending)
	env.store.addOrder(9, table5, enum.OrderStatusPending)

	_, err := env.svc.AssignReservation(context.Background(), 1, table5, waiter)
	require.ErrorIs(t, err, ErrTableNotAvailable)
	assert.True(t, IsConflict(err))
	assert.Equal(t, enum.ReservationStatusPending, env.store.reservations[1].Status)
}

func TestAssignReservation_ClosedReservation(t *testing.T) {
	for _, status := range []string{enum.ReservationStatusCompleted, enum.ReservationStatusCancelled} {
		t.Run(status, func(t *testing.T) {
			env := newTestTableService(t)
			env.addReservation(1, status)

			_, err := env.svc.AssignReservation(context.Background(), 1, table5, admin)
			require.ErrorIs(t, err, ErrReservationClosed)
			assert.Equal(t, enum.TableStatusAvailable, env.store.tables[table5].Status)
		})
	}
}

func TestAssignReservation_NotFound(t *testing.T) {
	env := newTestTableService(t)
	env.addReservation(1, enum.ReservationStatusPending)

	_, err := env.svc.AssignReservation(context.Background(), 1, 99, admin)
	require.ErrorIs(t, err, ErrTableNotFound)

	_, err = env.svc.AssignReservation(context.Background(), 2, table5, admin)
	require.ErrorIs(t, err, ErrReservationNotFound)
}

func TestAssignReservation_KitchenForbidden(t *testing.T) {
	env := newTestTableService(t)
	env.addReservation(1, enum.ReservationStatusPending)

	_, err := env.svc.AssignReservation(context.Background(), 1, table5, kitchen)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, env.pool.txs)
}

// An occupied table with no order can only be freed by hand.
func TestReleaseTable_OrphanedOccupied(t *testing.T) {
	env := newTestTableService(t)
	env.addReservation(1, enum.ReservationStatusArrived)
	_, err := env.svc.AssignReservation(context.Background(), 1, table5, waiter)
	require.NoError(t, err)

	table, err := env.svc.ReleaseTable(context.Background(), table5, waiter)
	require.NoError(t, err)
	assert.Equal(t, enum.TableStatusAvailable, table.Status)
	assert.Equal(t, []string{events.ReservationAssigned, events.TableReleased}, env.publisher.types())
}

func TestReleaseTable_RefusesWithActiveOrders(t *testing.T) {
	env := newTestTableService(t)
	env.store.addOrder(9, table5, enum.OrderStatusCooking)

	_, err := env.svc.ReleaseTable(context.Background(), table5, admin)
	require.ErrorIs(t, err, ErrTableHasActiveOrders)
	assert.Equal(t, enum.TableStatusOccupied, env.store.tables[table5].Status)
}

func TestReleaseTable_AlreadyAvailable(t *testing.T) {
	env := newTestTableService(t)

	table, err := env.svc.ReleaseTable(context.Background(), table5, admin)
	require.NoError(t, err)
	assert.Equal(t, enum.TableStatusAvailable, table.Status)
	assert.NotContains(t, env.store.calls, "ReleaseTable")
	assert.Empty(t, env.notifier.topics)
}

func TestCreateReservation(t *testing.T) {
	env := newTestTableService(t)
	at := time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC)

	res, err := env.svc.CreateReservation(context.Background(), CreateReservationRequest{
		CustomerName: "  Okafor ", Pax: 2, ReservationTime: at, Shift: enum.ShiftLunch, Notes: "window",
	})
	require.NoError(t, err)
	assert.Equal(t, "Okafor", res.CustomerName)
	assert.Equal(t, enum.ReservationStatusPending, res.Status)
	assert.Equal(t, "window", res.Notes.String)
}

func TestCreateReservation_Validation(t *testing.T) {
	at := time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		req  CreateReservationRequest
		want error
	}{
		{"blank name", CreateReservationRequest{CustomerName: " ", Pax: 2, ReservationTime: at, Shift: enum.ShiftLunch}, ErrCustomerRequired},
		{"zero pax", CreateReservationRequest{CustomerName: "A", Pax: 0, ReservationTime: at, Shift: enum.ShiftLunch}, ErrInvalidPax},
		{"bad shift", CreateReservationRequest{CustomerName: "A", Pax: 2, ReservationTime: at, Shift: "brunch"}, ErrInvalidShift},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestTableService(t)
			_, err := env.svc.CreateReservation(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.want)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestListReservations_Filters(t *testing.T) {
	env := newTestTableService(t)
	env.addReservation(1, enum.ReservationStatusPending)
	env.store.reservations[2] = database.Reservation{
		ID: 2, CustomerName: "B", Pax: 2, Shift: enum.ShiftLunch, Status: enum.ReservationStatusPending,
		ReservationTime: time.Date(2026, 3, 15, 13, 0, 0, 0, time.UTC),
	}

	got, err := env.svc.ListReservations(context.Background(), ReservationFilter{Shift: enum.ShiftLunch})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)

	got, err = env.svc.ListReservations(context.Background(), ReservationFilter{
		To: time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	_, err = env.svc.ListReservations(context.Background(), ReservationFilter{Shift: "brunch"})
	require.ErrorIs(t, err, ErrInvalidShift)
}

func TestUpdateReservationStatus(t *testing.T) {
	env := newTestTableService(t)
	env.addReservation(1, enum.ReservationStatusPending)
	env.addReservation(2, enum.ReservationStatusCancelled)

	res, err := env.svc.UpdateReservationStatus(context.Background(), 1, enum.ReservationStatusArrived)
	require.NoError(t, err)
	assert.Equal(t, enum.ReservationStatusArrived, res.Status)

	_, err = env.svc.UpdateReservationStatus(context.Background(), 1, enum.ReservationStatusCompleted)
	require.ErrorIs(t, err, ErrInvalidStatus, "completion goes through assignment")

	_, err = env.svc.UpdateReservationStatus(context.Background(), 2, enum.ReservationStatusConfirmed)
	require.ErrorIs(t, err, ErrReservationClosed)

	_, err = env.svc.UpdateReservationStatus(context.Background(), 3, enum.ReservationStatusConfirmed)
	require.ErrorIs(t, err, ErrReservationNotFound)
}
