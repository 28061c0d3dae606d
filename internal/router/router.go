package router

import (
	"context"
	"net/http"

	"github.com/easyorder/api/internal/cache"
	"github.com/easyorder/api/internal/config"
	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/enum"
	"github.com/easyorder/api/internal/handler"
	mw "github.com/easyorder/api/internal/middleware"
	"github.com/easyorder/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Pinger reports store reachability for the readiness probe.
// Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TableServicer covers both the floor plan and reservation endpoints.
// Satisfied by *service.TableService.
type TableServicer interface {
	handler.TableServicer
	handler.ReservationServicer
}

// Deps are the wired components the HTTP surface exposes.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Queries *database.Queries
	DB      Pinger
	Orders  handler.OrderServicer
	Tables  TableServicer
	Cart    handler.CartServicer
	Views   cache.Store
	Hub     *ws.Hub
}

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(d Deps) chi.Router {
	cfg := d.Config
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if d.DB != nil {
			if err := d.DB.Ping(r.Context()); err != nil {
				log.Warn("readiness check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`)) //nolint:errcheck
				return
			}
		}
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	authHandler := handler.NewAuthHandler(d.Queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		catalogHandler := handler.NewCatalogHandler(d.Queries)
		catalogHandler.RegisterRoutes(r)

		// Per-transition role rules live in the service layer.
		orderHandler := handler.NewOrderHandler(d.Orders, d.Views, cfg.ViewCacheTTL)
		r.Route("/orders", orderHandler.RegisterRoutes)

		tableHandler := handler.NewTableHandler(d.Tables, d.Views, cfg.ViewCacheTTL)
		cartHandler := handler.NewCartHandler(d.Cart)
		r.Route("/tables", func(r chi.Router) {
			tableHandler.RegisterRoutes(r)
			cartHandler.RegisterRoutes(r)
		})

		// Front-of-house only
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleWaiter, enum.RoleAdmin))
			reservationHandler := handler.NewReservationHandler(d.Tables)
			r.Route("/reservations", reservationHandler.RegisterRoutes)
		})
	})

	log.Debug("router initialized")
	return r
}
