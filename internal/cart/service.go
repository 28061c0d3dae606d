package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/easyorder/api/internal/cache"
	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Orders is the slice of the order lifecycle the cart needs.
// Satisfied by *service.OrderService.
type Orders interface {
	ActiveOrderForTable(ctx context.Context, tableID int64) (*service.OrderDetail, error)
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error)
	ReplaceItems(ctx context.Context, req service.ReplaceItemsRequest) (*service.OrderDetail, error)
}

// Tables is satisfied by *service.TableService.
type Tables interface {
	GetTable(ctx context.Context, id int64) (database.Table, error)
}

// Catalog is satisfied by *database.Queries.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (database.Product, error)
	ListActiveProductsByIDs(ctx context.Context, ids []int64) ([]database.Product, error)
}

// Service keeps one cart session per (table, staff member) in a cache
// store and flushes it through the order lifecycle on submit.
type Service struct {
	orders   Orders
	tables   Tables
	catalog  Catalog
	sessions cache.Store
	ttl      time.Duration
	logger   *zap.Logger
}

// NewService creates a cart Service. Sessions expire ttl after their last
// change.
func NewService(orders Orders, tables Tables, catalog Catalog, sessions cache.Store, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orders:   orders,
		tables:   tables,
		catalog:  catalog,
		sessions: sessions,
		ttl:      ttl,
		logger:   logger.Named("cart"),
	}
}

func sessionKey(tableID int64, userID uuid.UUID) string {
	return fmt.Sprintf("cart:%d:%s", tableID, userID)
}

// Open returns the actor's cart for a table. A session still seeded from the
// table's current active order is kept (with CanEdit recomputed); otherwise
// a fresh cart is seeded.
func (s *Service) Open(ctx context.Context, tableID int64, actor service.Actor) (*Cart, error) {
	if _, err := s.tables.GetTable(ctx, tableID); err != nil {
		return nil, err
	}

	active, err := s.orders.ActiveOrderForTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	c, ok, err := s.load(ctx, tableID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if ok && c.ActiveOrderID == activeID(active) {
		c.Role = actor.Role
		c.CanEdit = CanEdit(active != nil, actor.Role)
	} else {
		catalog, err := s.catalogFor(ctx, active)
		if err != nil {
			return nil, err
		}
		c = Seed(tableID, actor.Role, active, catalog)
	}

	if err := s.save(ctx, actor.UserID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Add puts one unit of a product into the cart.
func (s *Service) Add(ctx context.Context, tableID int64, actor service.Actor, productID int64) (*Cart, error) {
	c, err := s.session(ctx, tableID, actor)
	if err != nil {
		return nil, err
	}
	if !c.CanEdit {
		return nil, ErrReadOnly
	}

	row, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if err := c.Add(ProductFromRow(row)); err != nil {
		return nil, err
	}

	if err := s.save(ctx, actor.UserID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateQuantity adjusts a cart line by delta.
func (s *Service) UpdateQuantity(ctx context.Context, tableID int64, actor service.Actor, productID int64, delta int32) (*Cart, error) {
	c, err := s.session(ctx, tableID, actor)
	if err != nil {
		return nil, err
	}
	if err := c.UpdateQuantity(productID, delta); err != nil {
		return nil, err
	}
	if err := s.save(ctx, actor.UserID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Submit flushes the cart: a new order when the table has none, otherwise a
// wholesale item replacement. Edit rights are re-checked against the
// table's current state. The session survives any failure.
func (s *Service) Submit(ctx context.Context, tableID int64, actor service.Actor) (*service.OrderDetail, error) {
	c, ok, err := s.load(ctx, tableID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSession
	}

	active, err := s.orders.ActiveOrderForTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if c.ActiveOrderID != activeID(active) {
		return nil, ErrStaleCart
	}
	if !CanEdit(active != nil, actor.Role) {
		return nil, ErrReadOnly
	}
	if len(c.Lines) == 0 {
		return nil, service.ErrEmptyOrder
	}

	var detail *service.OrderDetail
	if active == nil {
		detail, err = s.orders.CreateOrder(ctx, service.CreateOrderRequest{
			TableID: tableID,
			Actor:   actor,
			Items:   c.Items(),
		})
	} else {
		detail, err = s.orders.ReplaceItems(ctx, service.ReplaceItemsRequest{
			OrderID: active.Order.ID,
			Actor:   actor,
			Items:   c.Items(),
		})
	}
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Delete(ctx, sessionKey(tableID, actor.UserID)); err != nil {
		s.logger.Warn("clear submitted cart failed",
			zap.Int64("table_id", tableID), zap.Stringer("user_id", actor.UserID), zap.Error(err))
	}
	return detail, nil
}

// Discard drops the actor's cart for a table.
func (s *Service) Discard(ctx context.Context, tableID int64, actor service.Actor) error {
	if err := s.sessions.Delete(ctx, sessionKey(tableID, actor.UserID)); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// session loads the actor's cart, opening one if none exists yet.
func (s *Service) session(ctx context.Context, tableID int64, actor service.Actor) (*Cart, error) {
	c, ok, err := s.load(ctx, tableID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.Open(ctx, tableID, actor)
	}
	return c, nil
}

func (s *Service) catalogFor(ctx context.Context, active *service.OrderDetail) (map[int64]Product, error) {
	if active == nil || len(active.Items) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(active.Items))
	for _, it := range active.Items {
		ids = append(ids, it.ProductID)
	}
	rows, err := s.catalog.ListActiveProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make(map[int64]Product, len(rows))
	for _, r := range rows {
		out[r.ID] = ProductFromRow(r)
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, tableID int64, userID uuid.UUID) (*Cart, bool, error) {
	raw, ok, err := s.sessions.Get(ctx, sessionKey(tableID, userID))
	if err != nil {
		return nil, false, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		s.logger.Warn("discarding unreadable cart", zap.Int64("table_id", tableID), zap.Error(err))
		return nil, false, nil
	}
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	return &c, true, nil
}

func (s *Service) save(ctx context.Context, userID uuid.UUID, c *Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.sessions.Set(ctx, sessionKey(c.TableID, userID), raw, s.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func activeID(d *service.OrderDetail) int64 {
	if d == nil {
		return 0
	}
	return d.Order.ID
}
