package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/easyorder/api/internal/cache"
	"github.com/easyorder/api/internal/cart"
	"github.com/easyorder/api/internal/config"
	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/events"
	"github.com/easyorder/api/internal/logger"
	"github.com/easyorder/api/internal/realtime"
	"github.com/easyorder/api/internal/router"
	"github.com/easyorder/api/internal/service"
	"github.com/easyorder/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() && cfg.JWTSecret == "dev-secret-change-in-production" {
		return errors.New("JWT_SECRET must be set in production")
	}

	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			return err
		}
		log.Info("migrations applied", zap.String("source", cfg.MigrationsPath))
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	log.Info("connected to database")

	// Views and cart sessions share one store; Redis lets several API
	// instances see the same carts.
	var store cache.Store
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		store = cache.NewRedisStore(rdb, "pos:")
		log.Info("using redis cache")
	} else {
		mem := cache.NewMemoryStore()
		defer mem.Close()
		store = mem
		log.Info("using in-memory cache")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPub := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, nil, log)
		defer amqpPub.Close() //nolint:errcheck
		publisher = amqpPub
		log.Info("publishing domain events", zap.String("exchange", cfg.AMQPExchange))
	}

	// Change feed: Postgres NOTIFY -> bridge -> websocket hub.
	bridge := realtime.NewBridge(store, log)
	listener := realtime.NewPGListener(realtime.PoolConnector(pool, realtime.ChangeChannel), bridge, log)
	go listener.Run(ctx) //nolint:errcheck
	go bridge.RunReconciler(ctx, cfg.ReconcileInterval)

	hub := ws.NewHub(bridge, log)
	go hub.Run(ctx)

	opts := []service.Option{
		service.WithNotifier(bridge),
		service.WithPublisher(publisher),
		service.WithLogger(log),
	}
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, opts...)
	tableService := service.NewTableService(pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	}, opts...)

	queries := database.New(pool)
	cartService := cart.NewService(orderService, tableService, queries, store, cfg.CartTTL, log)

	r := router.New(router.Deps{
		Config:  cfg,
		Logger:  log,
		Queries: queries,
		DB:      pool,
		Orders:  orderService,
		Tables:  tableService,
		Cart:    cartService,
		Views:   store,
		Hub:     hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
