package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/easyorder/api/internal/cache"
	"github.com/easyorder/api/internal/logger"
	"github.com/easyorder/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error)
	ReplaceItems(ctx context.Context, req service.ReplaceItemsRequest) (*service.OrderDetail, error)
	TransitionStatus(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)
	GetOrder(ctx context.Context, id int64) (*service.OrderDetail, error)
	ListActiveOrders(ctx context.Context) ([]service.OrderDetail, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	views cache.Store
	ttl   time.Duration
}

// NewOrderHandler creates a new OrderHandler. The active order list is read
// through views for ttl.
func NewOrderHandler(svc OrderServicer, views cache.Store, ttl time.Duration) *OrderHandler {
	return &OrderHandler{svc: svc, views: views, ttl: ttl}
}

// RegisterRoutes registers order endpoints. Expected to be mounted at /orders.
// Role checks happen in the service, which knows the per-transition rules.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/active", h.ListActive)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/items", h.ReplaceItems)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request types ---

type orderLineRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int32  `json:"quantity" validate:"required,gt=0,max=999"`
	UnitPrice string `json:"unit_price"`
	Notes     string `json:"notes"`
}

type createOrderRequest struct {
	TableID int64              `json:"table_id" validate:"required,gt=0"`
	Items   []orderLineRequest `json:"items" validate:"dive"`
}

type replaceItemsRequest struct {
	Items []orderLineRequest `json:"items" validate:"dive"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// toLineInputs converts request lines. An omitted unit_price means the
// catalog price is captured.
func toLineInputs(lines []orderLineRequest) ([]service.LineInput, error) {
	out := make([]service.LineInput, len(lines))
	for i, l := range lines {
		in := service.LineInput{ProductID: l.ProductID, Quantity: l.Quantity, Notes: l.Notes}
		if l.UnitPrice != "" {
			d, err := decimal.NewFromString(l.UnitPrice)
			if err != nil {
				return nil, service.ErrInvalidUnitPrice
			}
			in.UnitPrice = decimal.NewNullDecimal(d)
		}
		out[i] = in
	}
	return out, nil
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	items, err := toLineInputs(req.Items)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	detail, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		TableID: req.TableID,
		Actor:   actor,
		Items:   items,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDetailResponse(detail, actor.Role))
}

// ListActive handles GET /orders/active, the kitchen and floor board.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	resp, err := cache.Remember(ctx, h.views, logger.FromContext(ctx), cache.KeyActiveOrders, h.ttl,
		func(ctx context.Context) ([]orderResponse, error) {
			orders, err := h.svc.ListActiveOrders(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]orderResponse, len(orders))
			for i, d := range orders {
				out[i] = toOrderResponse(d.Order, d.Items)
			}
			return out, nil
		})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// The cached view is shared by every role.
	for i := range resp {
		resp[i].NextStatuses = nextStatuses(resp[i].Status, actor.Role)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "id", "order ID")
	if !ok {
		return
	}
	detail, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail, actor.Role))
}

// ReplaceItems handles PUT /orders/{id}/items.
func (h *OrderHandler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "id", "order ID")
	if !ok {
		return
	}
	var req replaceItemsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	items, err := toLineInputs(req.Items)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	detail, err := h.svc.ReplaceItems(r.Context(), service.ReplaceItemsRequest{
		OrderID: id,
		Actor:   actor,
		Items:   items,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail, actor.Role))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "id", "order ID")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.TransitionStatus(r.Context(), service.TransitionRequest{
		OrderID: id,
		Actor:   actor,
		Status:  req.Status,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	order := toOrderResponse(res.Order, nil)
	order.NextStatuses = nextStatuses(order.Status, actor.Role)
	cascaded := res.CascadedOrderIDs
	if cascaded == nil {
		cascaded = []int64{}
	}
	writeJSON(w, http.StatusOK, transitionResponse{
		Order:            order,
		PreviousStatus:   res.PreviousStatus,
		Table:            toTableResponse(res.Table),
		CascadedOrderIDs: cascaded,
		TableReleased:    res.TableReleased,
	})
}
