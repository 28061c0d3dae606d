package service

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/enum"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr  error
	committed  bool
	rolledBack bool
	onRollback func()
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error {
	if m.committed || m.rolledBack {
		return pgx.ErrTxClosed
	}
	m.rolledBack = true
	if m.onRollback != nil {
		m.onRollback()
	}
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockPool implements Pool. Each Begin snapshots the store so a rollback
// restores it.
type mockPool struct {
	store    *mockStore
	beginErr error
	txs      []*mockTx
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	snap := m.store.snapshot()
	tx := &mockTx{onRollback: func() { m.store.restore(snap) }}
	m.txs = append(m.txs, tx)
	return tx, nil
}
func (m *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}

func (m *mockPool) lastTx() *mockTx {
	if len(m.txs) == 0 {
		return nil
	}
	return m.txs[len(m.txs)-1]
}

// mockStore is an in-memory floor: tables, products, orders, items and
// reservations. It implements both OrderStore and TableStore. Setting
// failOn[method] makes that method return the error.
type mockStore struct {
	mu sync.Mutex

	tables       map[int64]database.Table
	products     map[int64]database.Product
	orders       map[int64]database.Order
	items        map[int64]database.OrderItem
	reservations map[int64]database.Reservation
	nextID       int64

	failOn map[string]error
	calls  []string
}

type storeSnapshot struct {
	tables       map[int64]database.Table
	orders       map[int64]database.Order
	items        map[int64]database.OrderItem
	reservations map[int64]database.Reservation
	nextID       int64
}

func newMockStore() *mockStore {
	return &mockStore{
		tables:       map[int64]database.Table{},
		products:     map[int64]database.Product{},
		orders:       map[int64]database.Order{},
		items:        map[int64]database.OrderItem{},
		reservations: map[int64]database.Reservation{},
		nextID:       100,
		failOn:       map[string]error{},
	}
}

func (m *mockStore) snapshot() storeSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return storeSnapshot{
		tables:       maps.Clone(m.tables),
		orders:       maps.Clone(m.orders),
		items:        maps.Clone(m.items),
		reservations: maps.Clone(m.reservations),
		nextID:       m.nextID,
	}
}

func (m *mockStore) restore(s storeSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables, m.orders, m.items, m.reservations, m.nextID = s.tables, s.orders, s.items, s.reservations, s.nextID
}

// call records the method and returns its injected failure, if any.
func (m *mockStore) call(name string) error {
	m.calls = append(m.calls, name)
	return m.failOn[name]
}

func (m *mockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// --- fixtures ---

func (m *mockStore) addTable(id int64, number string) {
	m.tables[id] = database.Table{ID: id, Number: number, Capacity: 4, Status: enum.TableStatusAvailable}
}

func (m *mockStore) addProduct(id int64, name, price string) {
	m.products[id] = database.Product{ID: id, Name: name, Price: makeNumeric(price), IsActive: true}
}

func (m *mockStore) addOrder(id, tableID int64, status string) {
	m.orders[id] = database.Order{
		ID: id, TableID: tableID, Status: status,
		TotalAmount: makeNumeric("0"),
		CreatedAt:   time.Unix(id, 0),
	}
	if !enum.IsTerminalOrderStatus(status) {
		t := m.tables[tableID]
		t.Status = enum.TableStatusOccupied
		t.CurrentOrderID = pgtype.Int8{Int64: id, Valid: true}
		m.tables[tableID] = t
	}
}

func (m *mockStore) addItem(orderID, productID int64, qty int32, price string) {
	id := m.id()
	m.items[id] = database.OrderItem{ID: id, OrderID: orderID, ProductID: productID, Quantity: qty, UnitPrice: makeNumeric(price)}
}

func (m *mockStore) orderItems(orderID int64) []database.OrderItem {
	var out []database.OrderItem
	for _, id := range slices.Sorted(maps.Keys(m.items)) {
		if m.items[id].OrderID == orderID {
			out = append(out, m.items[id])
		}
	}
	return out
}

func (m *mockStore) activeOrders(tableID int64) []database.Order {
	var out []database.Order
	for _, id := range slices.Sorted(maps.Keys(m.orders)) {
		o := m.orders[id]
		if (tableID == 0 || o.TableID == tableID) && !enum.IsTerminalOrderStatus(o.Status) {
			out = append(out, o)
		}
	}
	return out
}

// --- OrderStore / TableStore ---

func (m *mockStore) ListTables(ctx context.Context) ([]database.Table, error) {
	if err := m.call("ListTables"); err != nil {
		return nil, err
	}
	var out []database.Table
	for _, id := range slices.Sorted(maps.Keys(m.tables)) {
		out = append(out, m.tables[id])
	}
	return out, nil
}

func (m *mockStore) GetTable(ctx context.Context, id int64) (database.Table, error) {
	if err := m.call("GetTable"); err != nil {
		return database.Table{}, err
	}
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockStore) GetTableForUpdate(ctx context.Context, id int64) (database.Table, error) {
	if err := m.call("GetTableForUpdate"); err != nil {
		return database.Table{}, err
	}
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockStore) OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.Table, error) {
	if err := m.call("OccupyTable"); err != nil {
		return database.Table{}, err
	}
	t, ok := m.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusOccupied
	t.CurrentOrderID = arg.CurrentOrderID
	m.tables[arg.ID] = t
	return t, nil
}

func (m *mockStore) ReleaseTable(ctx context.Context, id int64) (database.Table, error) {
	if err := m.call("ReleaseTable"); err != nil {
		return database.Table{}, err
	}
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusAvailable
	t.CurrentOrderID = pgtype.Int8{}
	m.tables[id] = t
	return t, nil
}

func (m *mockStore) GetProduct(ctx context.Context, id int64) (database.Product, error) {
	if err := m.call("GetProduct"); err != nil {
		return database.Product{}, err
	}
	p, ok := m.products[id]
	if !ok || !p.IsActive {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if err := m.call("CreateOrder"); err != nil {
		return database.Order{}, err
	}
	id := m.id()
	o := database.Order{
		ID: id, TableID: arg.TableID, ServerID: arg.ServerID,
		Status: enum.OrderStatusPending, TotalAmount: arg.TotalAmount,
		CreatedAt: time.Unix(id, 0),
	}
	m.orders[id] = o
	return o, nil
}

func (m *mockStore) GetOrder(ctx context.Context, id int64) (database.Order, error) {
	if err := m.call("GetOrder"); err != nil {
		return database.Order{}, err
	}
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockStore) GetOrderForUpdate(ctx context.Context, id int64) (database.Order, error) {
	if err := m.call("GetOrderForUpdate"); err != nil {
		return database.Order{}, err
	}
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockStore) ListActiveOrders(ctx context.Context) ([]database.Order, error) {
	if err := m.call("ListActiveOrders"); err != nil {
		return nil, err
	}
	return m.activeOrders(0), nil
}

func (m *mockStore) ListActiveOrdersByTable(ctx context.Context, tableID int64) ([]database.Order, error) {
	if err := m.call("ListActiveOrdersByTable"); err != nil {
		return nil, err
	}
	return m.activeOrders(tableID), nil
}

func (m *mockStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	if err := m.call("UpdateOrderStatus"); err != nil {
		return database.Order{}, err
	}
	o, ok := m.orders[arg.ID]
	if !ok || o.Status != arg.PreviousStatus {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	m.orders[arg.ID] = o
	return o, nil
}

func (m *mockStore) UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
	if err := m.call("UpdateOrderTotal"); err != nil {
		return database.Order{}, err
	}
	o, ok := m.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.TotalAmount = arg.TotalAmount
	m.orders[arg.ID] = o
	return o, nil
}

func (m *mockStore) CompleteActiveOrdersByTable(ctx context.Context, arg database.CompleteActiveOrdersByTableParams) ([]int64, error) {
	if err := m.call("CompleteActiveOrdersByTable"); err != nil {
		return nil, err
	}
	ids := []int64{}
	for _, o := range m.activeOrders(arg.TableID) {
		if o.ID == arg.ExcludeID {
			continue
		}
		o.Status = enum.OrderStatusCompleted
		m.orders[o.ID] = o
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (m *mockStore) CountActiveOrdersByTable(ctx context.Context, arg database.CountActiveOrdersByTableParams) (int64, error) {
	if err := m.call("CountActiveOrdersByTable"); err != nil {
		return 0, err
	}
	var n int64
	for _, o := range m.activeOrders(arg.TableID) {
		if o.ID != arg.ExcludeID {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	if err := m.call("CreateOrderItem"); err != nil {
		return database.OrderItem{}, err
	}
	id := m.id()
	it := database.OrderItem{
		ID: id, OrderID: arg.OrderID, ProductID: arg.ProductID,
		Quantity: arg.Quantity, UnitPrice: arg.UnitPrice, Notes: arg.Notes,
	}
	m.items[id] = it
	return it, nil
}

func (m *mockStore) DeleteOrderItemsByOrder(ctx context.Context, orderID int64) (int64, error) {
	if err := m.call("DeleteOrderItemsByOrder"); err != nil {
		return 0, err
	}
	var n int64
	for id, it := range m.items {
		if it.OrderID == orderID {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error) {
	if err := m.call("ListOrderItemsByOrder"); err != nil {
		return nil, err
	}
	return m.orderItems(orderID), nil
}

func (m *mockStore) ListOrderItemsByOrders(ctx context.Context, orderIDs []int64) ([]database.OrderItem, error) {
	if err := m.call("ListOrderItemsByOrders"); err != nil {
		return nil, err
	}
	var out []database.OrderItem
	for _, id := range orderIDs {
		out = append(out, m.orderItems(id)...)
	}
	return out, nil
}

func (m *mockStore) ListReservations(ctx context.Context, arg database.ListReservationsParams) ([]database.Reservation, error) {
	if err := m.call("ListReservations"); err != nil {
		return nil, err
	}
	var out []database.Reservation
	for _, id := range slices.Sorted(maps.Keys(m.reservations)) {
		r := m.reservations[id]
		if arg.Shift.Valid && r.Shift != arg.Shift.String {
			continue
		}
		if arg.From.Valid && r.ReservationTime.Before(arg.From.Time) {
			continue
		}
		if arg.To.Valid && r.ReservationTime.After(arg.To.Time) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.Reservation, error) {
	if err := m.call("CreateReservation"); err != nil {
		return database.Reservation{}, err
	}
	id := m.id()
	r := database.Reservation{
		ID: id, CustomerName: arg.CustomerName, Pax: arg.Pax,
		ReservationTime: arg.ReservationTime, Shift: arg.Shift,
		Status: arg.Status, Notes: arg.Notes,
	}
	m.reservations[id] = r
	return r, nil
}

func (m *mockStore) GetReservationForUpdate(ctx context.Context, id int64) (database.Reservation, error) {
	if err := m.call("GetReservationForUpdate"); err != nil {
		return database.Reservation{}, err
	}
	r, ok := m.reservations[id]
	if !ok {
		return database.Reservation{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockStore) UpdateReservationStatus(ctx context.Context, arg database.UpdateReservationStatusParams) (database.Reservation, error) {
	if err := m.call("UpdateReservationStatus"); err != nil {
		return database.Reservation{}, err
	}
	r, ok := m.reservations[arg.ID]
	if !ok {
		return database.Reservation{}, pgx.ErrNoRows
	}
	r.Status = arg.Status
	m.reservations[arg.ID] = r
	return r, nil
}

func (m *mockStore) AssignReservation(ctx context.Context, arg database.AssignReservationParams) (database.Reservation, error) {
	if err := m.call("AssignReservation"); err != nil {
		return database.Reservation{}, err
	}
	r, ok := m.reservations[arg.ID]
	if !ok {
		return database.Reservation{}, pgx.ErrNoRows
	}
	r.Status = enum.ReservationStatusCompleted
	r.TableID = pgtype.Int8{Int64: arg.TableID, Valid: true}
	m.reservations[arg.ID] = r
	return r, nil
}

// mockNotifier records invalidated topics.
type mockNotifier struct {
	topics []string
}

func (m *mockNotifier) Invalidate(ctx context.Context, topics ...string) {
	m.topics = append(m.topics, topics...)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericString(n pgtype.Numeric) string {
	return database.DecimalFromNumeric(n).StringFixed(2)
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
