package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/easyorder/api/internal/config"
	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/enum"
	"github.com/easyorder/api/internal/logger"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type seedStaff struct {
	email, name, role string
}

var staff = []seedStaff{
	{"admin@easyorder.local", "Admin", enum.RoleAdmin},
	{"waiter@easyorder.local", "Waiter", enum.RoleWaiter},
	{"kitchen@easyorder.local", "Kitchen", enum.RoleKitchen},
}

type seedProduct struct {
	name  string
	price string
}

type seedCategory struct {
	name, kind string
	products   []seedProduct
}

var menu = []seedCategory{
	{"Mains", "food", []seedProduct{{"Nasi Bakar Ayam", "28000"}, {"Nasi Goreng", "25000"}, {"Mie Goreng", "23000"}}},
	{"Sides", "food", []seedProduct{{"Tempe Mendoan", "12000"}, {"Kerupuk", "5000"}}},
	{"Drinks", "drink", []seedProduct{{"Es Teh Manis", "8000"}, {"Es Jeruk", "10000"}, {"Kopi Tubruk", "12000"}}},
}

const tableCount = 10

func main() {
	password := flag.String("password", "password123", "Password for every seeded staff account")
	migrate := flag.Bool("migrate", true, "Apply migrations before seeding")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer log.Sync() //nolint:errcheck

	if *password == "password123" {
		log.Warn("using default password 'password123'. Change immediately in production!")
	}

	if err := run(context.Background(), cfg, log, *password, *migrate); err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("seed completed successfully")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, password string, migrate bool) error {
	if migrate {
		if err := database.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			return err
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	// Seed in a transaction (all or nothing)
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := database.New(tx)

	if err := seedStaffAccounts(ctx, q, log, password); err != nil {
		return err
	}

	// Tables and menu are only created on an empty floor plan, so reruns
	// never duplicate them.
	tables, err := q.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if len(tables) > 0 {
		log.Info("tables already exist, skipping floor plan and menu", zap.Int("tables", len(tables)))
	} else {
		if err := seedFloor(ctx, q, log); err != nil {
			return err
		}
		if err := seedMenu(ctx, q, log); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func seedStaffAccounts(ctx context.Context, q *database.Queries, log *zap.Logger, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	for _, s := range staff {
		st, err := q.UpsertStaff(ctx, database.UpsertStaffParams{
			Email:        s.email,
			FullName:     s.name,
			PasswordHash: string(hashed),
			Role:         s.role,
		})
		if err != nil {
			return fmt.Errorf("upsert staff %s: %w", s.email, err)
		}
		log.Info("staff ready", zap.String("email", st.Email), zap.String("role", st.Role), zap.Stringer("id", st.ID))
	}
	return nil
}

func seedFloor(ctx context.Context, q *database.Queries, log *zap.Logger) error {
	for i := 1; i <= tableCount; i++ {
		capacity := int32(4)
		if i > 8 {
			capacity = 8
		}
		if _, err := q.CreateTable(ctx, database.CreateTableParams{
			Number:   fmt.Sprintf("T%d", i),
			Capacity: capacity,
		}); err != nil {
			return fmt.Errorf("create table T%d: %w", i, err)
		}
	}
	log.Info("created tables", zap.Int("count", tableCount))
	return nil
}

func seedMenu(ctx context.Context, q *database.Queries, log *zap.Logger) error {
	for i, c := range menu {
		cat, err := q.CreateCategory(ctx, database.CreateCategoryParams{
			Name:      c.name,
			Type:      c.kind,
			SortOrder: int32(i + 1),
		})
		if err != nil {
			return fmt.Errorf("create category %s: %w", c.name, err)
		}
		for _, p := range c.products {
			if _, err := q.CreateProduct(ctx, database.CreateProductParams{
				CategoryID: pgtype.Int8{Int64: cat.ID, Valid: true},
				Name:       p.name,
				Price:      database.NumericFromDecimal(decimal.RequireFromString(p.price)),
			}); err != nil {
				return fmt.Errorf("create product %s: %w", p.name, err)
			}
		}
		log.Info("created category", zap.String("name", cat.Name), zap.Int("products", len(c.products)))
	}
	return nil
}
