package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Staff struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	SortOrder int32  `json:"sort_order"`
}

type Product struct {
	ID          int64          `json:"id"`
	CategoryID  pgtype.Int8    `json:"category_id"`
	Name        string         `json:"name"`
	Description pgtype.Text    `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	IsActive    bool           `json:"is_active"`
}

type Table struct {
	ID             int64       `json:"id"`
	Number         string      `json:"number"`
	Capacity       int32       `json:"capacity"`
	Status         string      `json:"status"`
	CurrentOrderID pgtype.Int8 `json:"current_order_id"`
	CreatedAt      time.Time   `json:"created_at"`
}

type Order struct {
	ID          int64          `json:"id"`
	TableID     int64          `json:"table_id"`
	ServerID    uuid.UUID      `json:"server_id"`
	Status      string         `json:"status"`
	TotalAmount pgtype.Numeric `json:"total_amount"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type OrderItem struct {
	ID        int64          `json:"id"`
	OrderID   int64          `json:"order_id"`
	ProductID int64          `json:"product_id"`
	Quantity  int32          `json:"quantity"`
	UnitPrice pgtype.Numeric `json:"unit_price"`
	Notes     pgtype.Text    `json:"notes"`
}

type Reservation struct {
	ID              int64       `json:"id"`
	TableID         pgtype.Int8 `json:"table_id"`
	CustomerName    string      `json:"customer_name"`
	Pax             int32       `json:"pax"`
	ReservationTime time.Time   `json:"reservation_time"`
	Shift           string      `json:"shift"`
	Status          string      `json:"status"`
	Notes           pgtype.Text `json:"notes"`
	CreatedAt       time.Time   `json:"created_at"`
}
