package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/easyorder/api/internal/cache"
	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/enum"
	"github.com/easyorder/api/internal/handler"
	"github.com/easyorder/api/internal/middleware"
	"github.com/easyorder/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Mock TableServicer ---

type mockTableService struct {
	tables    []database.Table
	releaseFn func(ctx context.Context, tableID int64, actor service.Actor) (database.Table, error)
	listCalls int
}

func (m *mockTableService) ListTables(context.Context) ([]database.Table, error) {
	m.listCalls++
	return m.tables, nil
}

func (m *mockTableService) GetTable(_ context.Context, id int64) (database.Table, error) {
	for _, t := range m.tables {
		if t.ID == id {
			return t, nil
		}
	}
	return database.Table{}, service.ErrTableNotFound
}

func (m *mockTableService) ReleaseTable(ctx context.Context, tableID int64, actor service.Actor) (database.Table, error) {
	if m.releaseFn != nil {
		return m.releaseFn(ctx, tableID, actor)
	}
	return database.Table{}, errors.New("not implemented")
}

func testTables() []database.Table {
	return []database.Table{
		{ID: 1, Number: "T1", Capacity: 2, Status: enum.TableStatusAvailable},
		{ID: 2, Number: "T2", Capacity: 4, Status: enum.TableStatusOccupied, CurrentOrderID: pgtype.Int8{Int64: 9, Valid: true}},
	}
}

func setupTableRouter(t *testing.T, svc *mockTableService, views cache.Store) *chi.Mux {
	t.Helper()
	h := handler.NewTableHandler(svc, views, time.Minute)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/tables", h.RegisterRoutes)
	return r
}

func TestListTables_ServedFromCacheUntilInvalidated(t *testing.T) {
	svc := &mockTableService{tables: testTables()}
	views := newViewCache(t)
	r := setupTableRouter(t, svc, views)
	claims := testClaims(enum.RoleWaiter)

	rr := doAuthRequest(t, r, "GET", "/tables", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	list := decodeList(t, rr)
	if len(list) != 2 {
		t.Fatalf("tables: got %d, want 2", len(list))
	}
	if list[1]["current_order_id"] != float64(9) {
		t.Errorf("current_order_id: got %v, want 9", list[1]["current_order_id"])
	}
	if list[0]["current_order_id"] != nil {
		t.Errorf("available table should have null current_order_id, got %v", list[0]["current_order_id"])
	}

	doAuthRequest(t, r, "GET", "/tables", nil, claims)
	if svc.listCalls != 1 {
		t.Fatalf("service calls: got %d, want 1", svc.listCalls)
	}

	if err := views.Delete(context.Background(), cache.KeyTables); err != nil {
		t.Fatalf("delete view: %v", err)
	}
	doAuthRequest(t, r, "GET", "/tables", nil, claims)
	if svc.listCalls != 2 {
		t.Errorf("service calls after invalidation: got %d, want 2", svc.listCalls)
	}
}

func TestGetTable(t *testing.T) {
	r := setupTableRouter(t, &mockTableService{tables: testTables()}, newViewCache(t))

	rr := doAuthRequest(t, r, "GET", "/tables/2", nil, testClaims(enum.RoleKitchen))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp["number"] != "T2" {
		t.Errorf("number: got %v", resp["number"])
	}

	rr = doAuthRequest(t, r, "GET", "/tables/99", nil, testClaims(enum.RoleKitchen))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing table: got %d, want 404", rr.Code)
	}
}

func TestReleaseTable(t *testing.T) {
	tests := []struct {
		name string
		role string
		err  error
		want int
	}{
		{"released", enum.RoleWaiter, nil, http.StatusOK},
		{"kitchen forbidden", enum.RoleKitchen, service.ErrForbidden, http.StatusForbidden},
		{"still has orders", enum.RoleAdmin, service.ErrTableHasActiveOrders, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTableService{
				releaseFn: func(_ context.Context, tableID int64, actor service.Actor) (database.Table, error) {
					if tableID != 2 || actor.Role != tt.role {
						t.Errorf("args: table %d role %s", tableID, actor.Role)
					}
					if tt.err != nil {
						return database.Table{}, tt.err
					}
					return database.Table{ID: 2, Number: "T2", Status: enum.TableStatusAvailable}, nil
				},
			}
			r := setupTableRouter(t, svc, newViewCache(t))

			rr := doAuthRequest(t, r, "POST", "/tables/2/release", nil, testClaims(tt.role))
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

// --- Catalog ---

type mockCatalogStore struct {
	categories []database.Category
	products   []database.Product
}

func (m *mockCatalogStore) ListCategories(context.Context) ([]database.Category, error) {
	return m.categories, nil
}

func (m *mockCatalogStore) ListActiveProducts(context.Context) ([]database.Product, error) {
	return m.products, nil
}

func TestCatalog(t *testing.T) {
	store := &mockCatalogStore{
		categories: []database.Category{{ID: 1, Name: "Drinks", Type: "drink", SortOrder: 1}},
		products: []database.Product{{
			ID:         10,
			CategoryID: pgtype.Int8{Int64: 1, Valid: true},
			Name:       "Iced Tea",
			Price:      testNumeric("8000"),
			IsActive:   true,
		}},
	}
	h := handler.NewCatalogHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	h.RegisterRoutes(r)

	rr := doAuthRequest(t, r, "GET", "/categories", nil, testClaims(enum.RoleWaiter))
	if rr.Code != http.StatusOK {
		t.Fatalf("categories status: got %d", rr.Code)
	}
	if cats := decodeList(t, rr); len(cats) != 1 || cats[0]["name"] != "Drinks" {
		t.Errorf("categories: got %v", cats)
	}

	rr = doAuthRequest(t, r, "GET", "/products", nil, testClaims(enum.RoleWaiter))
	if rr.Code != http.StatusOK {
		t.Fatalf("products status: got %d", rr.Code)
	}
	products := decodeList(t, rr)
	if len(products) != 1 {
		t.Fatalf("products: got %d, want 1", len(products))
	}
	if products[0]["price"] != "8000.00" || products[0]["category_id"] != float64(1) {
		t.Errorf("product: got %v", products[0])
	}
	if products[0]["description"] != nil {
		t.Errorf("description should be null, got %v", products[0]["description"])
	}
}
