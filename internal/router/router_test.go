package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/easyorder/api/internal/auth"
	"github.com/easyorder/api/internal/cache"
	"github.com/easyorder/api/internal/cart"
	"github.com/easyorder/api/internal/config"
	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/enum"
	"github.com/easyorder/api/internal/realtime"
	"github.com/easyorder/api/internal/router"
	"github.com/easyorder/api/internal/service"
	"github.com/easyorder/api/internal/ws"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

const testSecret = "router-test-secret"

// --- Fakes ---

type fakeOrders struct{}

func (fakeOrders) CreateOrder(context.Context, service.CreateOrderRequest) (*service.OrderDetail, error) {
	return nil, service.ErrEmptyOrder
}

func (fakeOrders) ReplaceItems(context.Context, service.ReplaceItemsRequest) (*service.OrderDetail, error) {
	return nil, service.ErrForbidden
}

func (fakeOrders) TransitionStatus(context.Context, service.TransitionRequest) (*service.TransitionResult, error) {
	return nil, service.ErrInvalidTransition
}

func (fakeOrders) GetOrder(context.Context, int64) (*service.OrderDetail, error) {
	return nil, service.ErrOrderNotFound
}

func (fakeOrders) ListActiveOrders(context.Context) ([]service.OrderDetail, error) {
	return nil, nil
}

type fakeTables struct{}

func (fakeTables) ListTables(context.Context) ([]database.Table, error) {
	return []database.Table{{ID: 5, Number: "T5", Status: enum.TableStatusAvailable}}, nil
}

func (fakeTables) GetTable(_ context.Context, id int64) (database.Table, error) {
	return database.Table{ID: id, Number: "T5", Status: enum.TableStatusAvailable}, nil
}

func (fakeTables) ReleaseTable(context.Context, int64, service.Actor) (database.Table, error) {
	return database.Table{}, service.ErrTableHasActiveOrders
}

func (fakeTables) ListReservations(context.Context, service.ReservationFilter) ([]database.Reservation, error) {
	return nil, nil
}

func (fakeTables) CreateReservation(context.Context, service.CreateReservationRequest) (database.Reservation, error) {
	return database.Reservation{}, nil
}

func (fakeTables) UpdateReservationStatus(context.Context, int64, string) (database.Reservation, error) {
	return database.Reservation{}, nil
}

func (fakeTables) AssignReservation(context.Context, int64, int64, service.Actor) (*service.AssignResult, error) {
	return nil, service.ErrReservationNotFound
}

type fakeCart struct{}

func (fakeCart) Open(_ context.Context, tableID int64, actor service.Actor) (*cart.Cart, error) {
	return &cart.Cart{TableID: tableID, Role: actor.Role, CanEdit: true, Lines: []cart.Line{}}, nil
}

func (fakeCart) Add(context.Context, int64, service.Actor, int64) (*cart.Cart, error) {
	return nil, cart.ErrReadOnly
}

func (fakeCart) UpdateQuantity(context.Context, int64, service.Actor, int64, int32) (*cart.Cart, error) {
	return nil, cart.ErrLineNotFound
}

func (fakeCart) Submit(context.Context, int64, service.Actor) (*service.OrderDetail, error) {
	return nil, cart.ErrNoSession
}

func (fakeCart) Discard(context.Context, int64, service.Actor) error { return nil }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// --- Helpers ---

func newTestRouter(t *testing.T, db router.Pinger) http.Handler {
	t.Helper()
	views := cache.NewMemoryStore()
	t.Cleanup(func() { views.Close() })
	log := zaptest.NewLogger(t)

	bridge := realtime.NewBridge(views, log)
	return router.New(router.Deps{
		Config: &config.Config{
			JWTSecret:    testSecret,
			ViewCacheTTL: time.Minute,
			CORSOrigins:  []string{"http://localhost:5173"},
		},
		Logger:  log,
		Queries: database.New(nil),
		DB:      db,
		Orders:  fakeOrders{},
		Tables:  fakeTables{},
		Cart:    fakeCart{},
		Views:   views,
		Hub:     ws.NewHub(bridge, log),
	})
}

func do(t *testing.T, h http.Handler, method, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		token, err := auth.GenerateToken(testSecret, uuid.New(), role)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestHealthAndReady(t *testing.T) {
	h := newTestRouter(t, fakePinger{})
	if rr := do(t, h, "GET", "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health: got %d", rr.Code)
	}
	if rr := do(t, h, "GET", "/ready", ""); rr.Code != http.StatusOK {
		t.Errorf("ready: got %d", rr.Code)
	}

	down := newTestRouter(t, fakePinger{err: errors.New("connection refused")})
	if rr := do(t, down, "GET", "/ready", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with store down: got %d, want 503", rr.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t, nil)
	for _, path := range []string{"/tables", "/orders/active", "/products", "/reservations", "/tables/5/cart"} {
		if rr := do(t, h, "GET", path, ""); rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: got %d, want 401", path, rr.Code)
		}
	}
}

func TestReservationsAreFrontOfHouseOnly(t *testing.T) {
	h := newTestRouter(t, nil)
	tests := []struct {
		role string
		want int
	}{
		{enum.RoleKitchen, http.StatusForbidden},
		{enum.RoleWaiter, http.StatusOK},
		{enum.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			if rr := do(t, h, "GET", "/reservations", tt.role); rr.Code != tt.want {
				t.Errorf("got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestTableAndCartRoutesShareThePrefix(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := do(t, h, "GET", "/tables/5", enum.RoleKitchen)
	if rr.Code != http.StatusOK {
		t.Fatalf("table: got %d", rr.Code)
	}
	var table map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&table); err != nil {
		t.Fatalf("decode table: %v", err)
	}
	if table["number"] != "T5" {
		t.Errorf("table body: got %v", table)
	}

	rr = do(t, h, "GET", "/tables/5/cart", enum.RoleWaiter)
	if rr.Code != http.StatusOK {
		t.Fatalf("cart: got %d", rr.Code)
	}
	var c map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&c); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if c["table_id"] != float64(5) || c["total"] != "0.00" {
		t.Errorf("cart body: got %v", c)
	}

	if rr := do(t, h, "POST", "/tables/5/release", enum.RoleWaiter); rr.Code != http.StatusConflict {
		t.Errorf("release: got %d, want 409", rr.Code)
	}
	if rr := do(t, h, "POST", "/tables/5/cart/submit", enum.RoleWaiter); rr.Code != http.StatusNotFound {
		t.Errorf("submit without session: got %d, want 404", rr.Code)
	}
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	h := newTestRouter(t, nil)
	if rr := do(t, h, "GET", "/ws", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rr.Code)
	}
}
