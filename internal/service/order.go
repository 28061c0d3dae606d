package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/enum"
	"github.com/easyorder/api/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool runs transactions and plain reads. Satisfied by *pgxpool.Pool.
type Pool interface {
	TxBeginner
	database.DBTX
}

// OrderStore defines the DB methods needed by the order lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTableForUpdate(ctx context.Context, id int64) (database.Table, error)
	OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.Table, error)
	ReleaseTable(ctx context.Context, id int64) (database.Table, error)
	GetProduct(ctx context.Context, id int64) (database.Product, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id int64) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (database.Order, error)
	ListActiveOrders(ctx context.Context) ([]database.Order, error)
	ListActiveOrdersByTable(ctx context.Context, tableID int64) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
	CompleteActiveOrdersByTable(ctx context.Context, arg database.CompleteActiveOrdersByTableParams) ([]int64, error)
	CountActiveOrdersByTable(ctx context.Context, arg database.CountActiveOrdersByTableParams) (int64, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	DeleteOrderItemsByOrder(ctx context.Context, orderID int64) (int64, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []int64) ([]database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// LineInput is one requested order line. When UnitPrice is not set the
// current catalog price is captured.
type LineInput struct {
	ProductID int64
	Quantity  int32
	UnitPrice decimal.NullDecimal
	Notes     string
}

// CreateOrderRequest opens a new ticket on a table.
type CreateOrderRequest struct {
	TableID int64
	Actor   Actor
	Items   []LineInput
}

// ReplaceItemsRequest swaps the full item set of an open order.
type ReplaceItemsRequest struct {
	OrderID int64
	Actor   Actor
	Items   []LineInput
}

// TransitionRequest moves an order to a new status.
type TransitionRequest struct {
	OrderID int64
	Actor   Actor
	Status  string
}

// OrderDetail is an order with its items.
type OrderDetail struct {
	Order database.Order       `json:"order"`
	Items []database.OrderItem `json:"items"`
}

// TransitionResult describes everything a status change touched.
type TransitionResult struct {
	Order          database.Order
	PreviousStatus string
	Table          database.Table
	// CascadedOrderIDs are the sibling orders force-completed with Order.
	CascadedOrderIDs []int64
	TableReleased    bool
}

// OrderService owns the order status machine and keeps table occupancy
// consistent with the set of active orders.
type OrderService struct {
	pool     Pool
	newStore NewOrderStore
	hooks
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool Pool, newStore NewOrderStore, opts ...Option) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, hooks: newHooks("orders", opts)}
}

// pricedLine is a validated line ready for insertion.
type pricedLine struct {
	productID int64
	quantity  int32
	unitPrice decimal.Decimal
	notes     pgtype.Text
}

// CreateOrder inserts an order with its items and marks the table occupied,
// all in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderDetail, error) {
	if !canOpenOrder(req.Actor.Role) {
		return nil, ErrForbidden
	}
	if err := validateLines(req.Items); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, req.TableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("lock table: %w", err)
	}

	lines, total, err := priceLines(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TableID:     table.ID,
		ServerID:    req.Actor.UserID,
		TotalAmount: database.NumericFromDecimal(total),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items, err := insertLines(ctx, store, order.ID, lines)
	if err != nil {
		return nil, err
	}

	if _, err := store.OccupyTable(ctx, database.OccupyTableParams{
		ID:             table.ID,
		CurrentOrderID: pgtype.Int8{Int64: order.ID, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("occupy table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.afterCommit(ctx,
		[]string{enum.TopicOrders, enum.TopicOrderItems, enum.TopicTables},
		events.Event{
			Type:        events.OrderCreated,
			OrderID:     order.ID,
			TableID:     order.TableID,
			Status:      order.Status,
			TotalAmount: total.StringFixed(2),
			ActorID:     req.Actor.UserID,
		})

	return &OrderDetail{Order: order, Items: items}, nil
}

// ReplaceItems deletes every item of a non-terminal order, inserts the new
// set and stores the recomputed total, in one transaction.
func (s *OrderService) ReplaceItems(ctx context.Context, req ReplaceItemsRequest) (*OrderDetail, error) {
	if !CanEditActiveOrder(req.Actor.Role) {
		return nil, ErrForbidden
	}
	if err := validateLines(req.Items); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, _, err := lockOrder(ctx, store, req.OrderID)
	if err != nil {
		return nil, err
	}
	if enum.IsTerminalOrderStatus(order.Status) {
		return nil, fmt.Errorf("order %d is %s: %w", order.ID, order.Status, ErrOrderTerminal)
	}

	lines, total, err := priceLines(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	if _, err := store.DeleteOrderItemsByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("delete order items: %w", err)
	}

	items, err := insertLines(ctx, store, order.ID, lines)
	if err != nil {
		return nil, err
	}

	order, err = store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{
		ID:          order.ID,
		TotalAmount: database.NumericFromDecimal(total),
	})
	if err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.afterCommit(ctx,
		[]string{enum.TopicOrders, enum.TopicOrderItems},
		events.Event{
			Type:        events.OrderItemsReplaced,
			OrderID:     order.ID,
			TableID:     order.TableID,
			Status:      order.Status,
			TotalAmount: total.StringFixed(2),
			ActorID:     req.Actor.UserID,
		})

	return &OrderDetail{Order: order, Items: items}, nil
}

// TransitionStatus validates and applies a status change against the stored
// status, then recomputes table occupancy from the table's remaining active
// orders.
func (s *OrderService) TransitionStatus(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if !enum.IsValidOrderStatus(req.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, table, err := lockOrder(ctx, store, req.OrderID)
	if err != nil {
		return nil, err
	}

	if enum.IsTerminalOrderStatus(order.Status) {
		return nil, fmt.Errorf("order %d is %s: %w", order.ID, order.Status, ErrOrderTerminal)
	}
	if !CanTransition(order.Status, req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, req.Status)
	}
	if !RoleMayTransition(req.Actor.Role, req.Status) {
		return nil, ErrForbidden
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             order.ID,
		Status:         req.Status,
		PreviousStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	result := &TransitionResult{
		Order:          updated,
		PreviousStatus: order.Status,
		Table:          table,
	}

	switch req.Status {
	case enum.OrderStatusCompleted:
		// Unified bill: closing one ticket closes the whole table.
		ids, err := store.CompleteActiveOrdersByTable(ctx, database.CompleteActiveOrdersByTableParams{
			TableID:   order.TableID,
			ExcludeID: order.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("complete table orders: %w", err)
		}
		result.CascadedOrderIDs = ids
		if result.Table, err = store.ReleaseTable(ctx, order.TableID); err != nil {
			return nil, fmt.Errorf("release table: %w", err)
		}
		result.TableReleased = true

	case enum.OrderStatusCancelled:
		remaining, err := store.CountActiveOrdersByTable(ctx, database.CountActiveOrdersByTableParams{
			TableID:   order.TableID,
			ExcludeID: order.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("count table orders: %w", err)
		}
		if remaining == 0 {
			if result.Table, err = store.ReleaseTable(ctx, order.TableID); err != nil {
				return nil, fmt.Errorf("release table: %w", err)
			}
			result.TableReleased = true
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	topics := []string{enum.TopicOrders}
	evs := []events.Event{{
		Type:             events.OrderStatusChanged,
		OrderID:          updated.ID,
		TableID:          updated.TableID,
		Status:           updated.Status,
		PreviousStatus:   order.Status,
		CascadedOrderIDs: result.CascadedOrderIDs,
		ActorID:          req.Actor.UserID,
	}}
	if result.TableReleased {
		topics = append(topics, enum.TopicTables)
		evs = append(evs, events.Event{
			Type:    events.TableReleased,
			OrderID: updated.ID,
			TableID: updated.TableID,
			ActorID: req.Actor.UserID,
		})
	}
	s.afterCommit(ctx, topics, evs...)

	return result, nil
}

// GetOrder returns an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*OrderDetail, error) {
	store := s.newStore(s.pool)

	order, err := store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := store.ListOrderItemsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// ActiveOrderForTable returns the oldest non-terminal order of a table, or
// nil when the table has none.
func (s *OrderService) ActiveOrderForTable(ctx context.Context, tableID int64) (*OrderDetail, error) {
	store := s.newStore(s.pool)

	orders, err := store.ListActiveOrdersByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("list table orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}
	items, err := store.ListOrderItemsByOrder(ctx, orders[0].ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &OrderDetail{Order: orders[0], Items: items}, nil
}

// ListActiveOrders returns every non-terminal order with its items, oldest
// first.
func (s *OrderService) ListActiveOrders(ctx context.Context) ([]OrderDetail, error) {
	store := s.newStore(s.pool)

	orders, err := store.ListActiveOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	if len(orders) == 0 {
		return []OrderDetail{}, nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := store.ListOrderItemsByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	byOrder := make(map[int64][]database.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}

	out := make([]OrderDetail, len(orders))
	for i, o := range orders {
		its := byOrder[o.ID]
		if its == nil {
			its = []database.OrderItem{}
		}
		out[i] = OrderDetail{Order: o, Items: its}
	}
	return out, nil
}

// --- Helpers ---

// lockOrder locks the order's table and then the order itself. Every writer
// takes the locks in this order.
func lockOrder(ctx context.Context, store OrderStore, orderID int64) (database.Order, database.Table, error) {
	current, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, database.Table{}, ErrOrderNotFound
		}
		return database.Order{}, database.Table{}, fmt.Errorf("get order: %w", err)
	}

	table, err := store.GetTableForUpdate(ctx, current.TableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, database.Table{}, ErrTableNotFound
		}
		return database.Order{}, database.Table{}, fmt.Errorf("lock table: %w", err)
	}

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, database.Table{}, ErrOrderNotFound
		}
		return database.Order{}, database.Table{}, fmt.Errorf("lock order: %w", err)
	}
	return order, table, nil
}

// MaxLineQuantity caps a single order line.
const MaxLineQuantity = 999

// maxAmount is the largest value a NUMERIC(12,2) column holds.
var maxAmount = decimal.RequireFromString("9999999999.99")

func validateLines(items []LineInput) error {
	if len(items) == 0 {
		return ErrEmptyOrder
	}
	for i, item := range items {
		if item.Quantity <= 0 || item.Quantity > MaxLineQuantity {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.UnitPrice.Valid && (item.UnitPrice.Decimal.IsNegative() || item.UnitPrice.Decimal.GreaterThan(maxAmount)) {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidUnitPrice)
		}
	}
	return nil
}

// priceLines resolves each line against the catalog and returns the order
// total. Supplied unit prices are historical snapshots and are kept as is.
func priceLines(ctx context.Context, store OrderStore, items []LineInput) ([]pricedLine, decimal.Decimal, error) {
	total := decimal.Zero
	lines := make([]pricedLine, 0, len(items))

	for i, item := range items {
		product, err := store.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("item[%d]: get product: %w", i, err)
		}

		unitPrice := database.DecimalFromNumeric(product.Price)
		if item.UnitPrice.Valid {
			unitPrice = item.UnitPrice.Decimal
		}
		unitPrice = unitPrice.Round(2)

		notes := pgtype.Text{}
		if item.Notes != "" {
			notes = pgtype.Text{String: item.Notes, Valid: true}
		}

		total = total.Add(unitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
		lines = append(lines, pricedLine{
			productID: product.ID,
			quantity:  item.Quantity,
			unitPrice: unitPrice,
			notes:     notes,
		})
	}
	if total.GreaterThan(maxAmount) {
		return nil, decimal.Zero, ErrTotalTooLarge
	}
	return lines, total, nil
}

func insertLines(ctx context.Context, store OrderStore, orderID int64, lines []pricedLine) ([]database.OrderItem, error) {
	items := make([]database.OrderItem, 0, len(lines))
	for _, l := range lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   orderID,
			ProductID: l.productID,
			Quantity:  l.quantity,
			UnitPrice: database.NumericFromDecimal(l.unitPrice),
			Notes:     l.notes,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// OrderTotal sums quantity × unit_price over items.
func OrderTotal(items []database.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(database.DecimalFromNumeric(it.UnitPrice).Mul(decimal.NewFromInt32(it.Quantity)))
	}
	return total
}
