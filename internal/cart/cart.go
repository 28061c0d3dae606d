// Package cart holds the editable, session-local copy of what a table's
// order should contain while a staff member browses the menu.
package cart

import (
	"errors"
	"slices"
	"strings"

	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/enum"
	"github.com/easyorder/api/internal/service"
	"github.com/shopspring/decimal"
)

var (
	ErrReadOnly     = errors.New("cart is read-only for this role")
	ErrLineNotFound = errors.New("product is not in the cart")
	ErrStaleCart    = errors.New("table's active order changed since the cart was opened")
	ErrNoSession    = errors.New("no open cart for this table")
)

// Product is the catalog view of a product used for display.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ProductFromRow converts a catalog row.
func ProductFromRow(p database.Product) Product {
	return Product{ID: p.ID, Name: p.Name, Price: database.DecimalFromNumeric(p.Price)}
}

// Line is one product in the cart. UnitPrice is what the order is charged;
// for lines seeded from an existing order it is the historical price, which
// may differ from DisplayPrice.
type Line struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	DisplayPrice decimal.Decimal `json:"display_price"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int32           `json:"quantity"`
	Notes        string          `json:"notes,omitempty"`
}

// Cart is the editing state for one table.
type Cart struct {
	TableID int64 `json:"table_id"`
	// ActiveOrderID is the order the cart was seeded from, 0 for a new order.
	ActiveOrderID int64  `json:"active_order_id"`
	Role          string `json:"role"`
	CanEdit       bool   `json:"can_edit"`
	Lines         []Line `json:"lines"`
}

// CanEdit reports whether role may change a table's order. A table without
// an active order is open to anyone; an existing ticket only to admins.
func CanEdit(hasActiveOrder bool, role string) bool {
	return !hasActiveOrder || role == enum.RoleAdmin
}

// Seed builds a cart for a table. Lines of active are mapped through catalog;
// products missing from it are dropped and repeated products merged,
// keeping the first line's unit price and joining distinct notes with "; ".
// A repeat that would push the merged line past the quantity cap stays a
// separate line.
func Seed(tableID int64, role string, active *service.OrderDetail, catalog map[int64]Product) *Cart {
	c := &Cart{
		TableID: tableID,
		Role:    role,
		CanEdit: CanEdit(active != nil, role),
		Lines:   []Line{},
	}
	if active == nil {
		return c
	}
	c.ActiveOrderID = active.Order.ID

	for _, it := range active.Items {
		p, ok := catalog[it.ProductID]
		if !ok {
			continue
		}
		if i := c.index(it.ProductID); i >= 0 && int64(c.Lines[i].Quantity)+int64(it.Quantity) <= service.MaxLineQuantity {
			c.Lines[i].Quantity += it.Quantity
			c.Lines[i].Notes = joinNotes(c.Lines[i].Notes, it.Notes.String)
			continue
		}
		c.Lines = append(c.Lines, Line{
			ProductID:    p.ID,
			Name:         p.Name,
			DisplayPrice: p.Price,
			UnitPrice:    database.DecimalFromNumeric(it.UnitPrice),
			Quantity:     it.Quantity,
			Notes:        it.Notes.String,
		})
	}
	return c
}

func joinNotes(a, b string) string {
	switch {
	case b == "" || slices.Contains(strings.Split(a, "; "), b):
		return a
	case a == "":
		return b
	default:
		return a + "; " + b
	}
}

func (c *Cart) index(productID int64) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Add increments the product's line, or appends it at quantity 1 priced
// from the catalog. A line already at the cap is rejected.
func (c *Cart) Add(p Product) error {
	if !c.CanEdit {
		return ErrReadOnly
	}
	if i := c.index(p.ID); i >= 0 {
		if c.Lines[i].Quantity >= service.MaxLineQuantity {
			return service.ErrInvalidQuantity
		}
		c.Lines[i].Quantity++
		return nil
	}
	c.Lines = append(c.Lines, Line{
		ProductID:    p.ID,
		Name:         p.Name,
		DisplayPrice: p.Price,
		UnitPrice:    p.Price,
		Quantity:     1,
	})
	return nil
}

// UpdateQuantity adjusts a line by delta and removes it at zero or below.
// Growing a line past the cap is rejected and leaves it unchanged.
func (c *Cart) UpdateQuantity(productID int64, delta int32) error {
	if !c.CanEdit {
		return ErrReadOnly
	}
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	q := int64(c.Lines[i].Quantity) + int64(delta)
	switch {
	case q <= 0:
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	case q > service.MaxLineQuantity:
		return service.ErrInvalidQuantity
	default:
		c.Lines[i].Quantity = int32(q)
	}
	return nil
}

// Total is Σ quantity × unit price.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)))
	}
	return total.Round(2)
}

func (c *Cart) TotalItems() int32 {
	var n int32
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Items returns the cart as order lines with explicit unit prices.
func (c *Cart) Items() []service.LineInput {
	out := make([]service.LineInput, len(c.Lines))
	for i, l := range c.Lines {
		out[i] = service.LineInput{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: decimal.NullDecimal{Decimal: l.UnitPrice, Valid: true},
			Notes:     l.Notes,
		}
	}
	return out
}
