package handler

import (
	"context"
	"net/http"

	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CatalogStore defines the database methods needed by catalog handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CatalogStore interface {
	ListCategories(ctx context.Context) ([]database.Category, error)
	ListActiveProducts(ctx context.Context) ([]database.Product, error)
}

// CatalogHandler serves the read-only menu.
type CatalogHandler struct {
	store CatalogStore
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// RegisterRoutes registers catalog endpoints on the given Chi router.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.ListCategories)
	r.Get("/products", h.ListProducts)
}

type categoryResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	SortOrder int32  `json:"sort_order"`
}

type productResponse struct {
	ID          int64   `json:"id"`
	CategoryID  *int64  `json:"category_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       string  `json:"price"`
}

// ListCategories handles GET /categories.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.ListCategories(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("list categories failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]categoryResponse, len(cats))
	for i, c := range cats {
		resp[i] = categoryResponse{ID: c.ID, Name: c.Name, Type: c.Type, SortOrder: c.SortOrder}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListProducts handles GET /products. Only active products are listed.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListActiveProducts(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("list products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = productResponse{
			ID:          p.ID,
			CategoryID:  int8Ptr(p.CategoryID),
			Name:        p.Name,
			Description: textPtr(p.Description),
			Price:       numericToString(p.Price),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
