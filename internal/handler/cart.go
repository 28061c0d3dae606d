package handler

import (
	"context"
	"net/http"

	"github.com/easyorder/api/internal/cart"
	"github.com/easyorder/api/internal/service"
	"github.com/go-chi/chi/v5"
)

// CartServicer defines the cart methods needed by cart handlers.
// Satisfied by *cart.Service; narrow interface for testability.
type CartServicer interface {
	Open(ctx context.Context, tableID int64, actor service.Actor) (*cart.Cart, error)
	Add(ctx context.Context, tableID int64, actor service.Actor, productID int64) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, tableID int64, actor service.Actor, productID int64, delta int32) (*cart.Cart, error)
	Submit(ctx context.Context, tableID int64, actor service.Actor) (*service.OrderDetail, error)
	Discard(ctx context.Context, tableID int64, actor service.Actor) error
}

// CartHandler exposes the per-user, per-table order editing session.
type CartHandler struct {
	svc CartServicer
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(svc CartServicer) *CartHandler {
	return &CartHandler{svc: svc}
}

// RegisterRoutes registers cart endpoints. Expected to be mounted at /tables.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/{id}/cart", func(r chi.Router) {
		r.Get("/", h.Open)
		r.Delete("/", h.Discard)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{productID}", h.UpdateItem)
		r.Post("/submit", h.Submit)
	})
}

type addCartItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

type updateCartItemRequest struct {
	Delta int32 `json:"delta" validate:"required,min=-999,max=999"`
}

type cartResponse struct {
	*cart.Cart
	Total      string `json:"total"`
	TotalItems int32  `json:"total_items"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	return cartResponse{Cart: c, Total: c.Total().StringFixed(2), TotalItems: c.TotalItems()}
}

// Open handles GET /tables/{id}/cart. It returns the caller's session,
// seeding it from the table's active order when needed.
func (h *CartHandler) Open(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	tableID, ok := int64Param(w, r, "id", "table ID")
	if !ok {
		return
	}
	c, err := h.svc.Open(r.Context(), tableID, actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// AddItem handles POST /tables/{id}/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	tableID, ok := int64Param(w, r, "id", "table ID")
	if !ok {
		return
	}
	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.Add(r.Context(), tableID, actor, req.ProductID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// UpdateItem handles PATCH /tables/{id}/cart/items/{productID}. A quantity
// that drops to zero removes the line.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	tableID, ok := int64Param(w, r, "id", "table ID")
	if !ok {
		return
	}
	productID, ok := int64Param(w, r, "productID", "product ID")
	if !ok {
		return
	}
	var req updateCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateQuantity(r.Context(), tableID, actor, productID, req.Delta)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// Submit handles POST /tables/{id}/cart/submit.
func (h *CartHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	tableID, ok := int64Param(w, r, "id", "table ID")
	if !ok {
		return
	}
	detail, err := h.svc.Submit(r.Context(), tableID, actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail, actor.Role))
}

// Discard handles DELETE /tables/{id}/cart.
func (h *CartHandler) Discard(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	tableID, ok := int64Param(w, r, "id", "table ID")
	if !ok {
		return
	}
	if err := h.svc.Discard(r.Context(), tableID, actor); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
