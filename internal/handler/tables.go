package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/easyorder/api/internal/cache"
	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/logger"
	"github.com/easyorder/api/internal/service"
	"github.com/go-chi/chi/v5"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService; narrow interface for testability.
type TableServicer interface {
	ListTables(ctx context.Context) ([]database.Table, error)
	GetTable(ctx context.Context, id int64) (database.Table, error)
	ReleaseTable(ctx context.Context, tableID int64, actor service.Actor) (database.Table, error)
}

// TableHandler serves the floor plan.
type TableHandler struct {
	svc   TableServicer
	views cache.Store
	ttl   time.Duration
}

// NewTableHandler creates a new TableHandler. The table list is read through
// views for ttl; the change notification bridge drops it on every change.
func NewTableHandler(svc TableServicer, views cache.Store, ttl time.Duration) *TableHandler {
	return &TableHandler{svc: svc, views: views, ttl: ttl}
}

// RegisterRoutes registers table endpoints. Expected to be mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/release", h.Release)
}

// List handles GET /tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := cache.Remember(ctx, h.views, logger.FromContext(ctx), cache.KeyTables, h.ttl,
		func(ctx context.Context) ([]tableResponse, error) {
			tables, err := h.svc.ListTables(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]tableResponse, len(tables))
			for i, t := range tables {
				out[i] = toTableResponse(t)
			}
			return out, nil
		})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /tables/{id}. Single tables are always read fresh.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id", "table ID")
	if !ok {
		return
	}
	table, err := h.svc.GetTable(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Release handles POST /tables/{id}/release, the manual way to free a table
// left occupied without an active order.
func (h *TableHandler) Release(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "id", "table ID")
	if !ok {
		return
	}
	table, err := h.svc.ReleaseTable(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}
