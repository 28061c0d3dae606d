package handler

import (
	"time"

	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Money is rendered as a fixed two-decimal string.
func numericToString(n pgtype.Numeric) string {
	return database.DecimalFromNumeric(n).StringFixed(2)
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func int8Ptr(i pgtype.Int8) *int64 {
	if !i.Valid {
		return nil
	}
	return &i.Int64
}

type tableResponse struct {
	ID             int64     `json:"id"`
	Number         string    `json:"number"`
	Capacity       int32     `json:"capacity"`
	Status         string    `json:"status"`
	CurrentOrderID *int64    `json:"current_order_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:             t.ID,
		Number:         t.Number,
		Capacity:       t.Capacity,
		Status:         t.Status,
		CurrentOrderID: int8Ptr(t.CurrentOrderID),
		CreatedAt:      t.CreatedAt,
	}
}

type orderItemResponse struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Quantity  int32   `json:"quantity"`
	UnitPrice string  `json:"unit_price"`
	Subtotal  string  `json:"subtotal"`
	Notes     *string `json:"notes"`
}

type orderResponse struct {
	ID          int64               `json:"id"`
	TableID     int64               `json:"table_id"`
	ServerID    uuid.UUID           `json:"server_id"`
	Status      string              `json:"status"`
	TotalAmount string              `json:"total_amount"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Items       []orderItemResponse `json:"items"`
	// NextStatuses lists the transitions open to the caller's role.
	NextStatuses []string `json:"next_statuses"`
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		TableID:     o.TableID,
		ServerID:    o.ServerID,
		Status:      o.Status,
		TotalAmount: numericToString(o.TotalAmount),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Items:       make([]orderItemResponse, len(items)),
	}
	for i, it := range items {
		unit := database.DecimalFromNumeric(it.UnitPrice)
		resp.Items[i] = orderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: unit.StringFixed(2),
			Subtotal:  unit.Mul(decimal.NewFromInt32(it.Quantity)).StringFixed(2),
			Notes:     textPtr(it.Notes),
		}
	}
	return resp
}

func toOrderDetailResponse(d *service.OrderDetail, role string) orderResponse {
	resp := toOrderResponse(d.Order, d.Items)
	resp.NextStatuses = nextStatuses(resp.Status, role)
	return resp
}

func nextStatuses(status, role string) []string {
	next := service.NextStatuses(status, role)
	if next == nil {
		return []string{}
	}
	return next
}

type transitionResponse struct {
	Order            orderResponse `json:"order"`
	PreviousStatus   string        `json:"previous_status"`
	Table            tableResponse `json:"table"`
	CascadedOrderIDs []int64       `json:"cascaded_order_ids"`
	TableReleased    bool          `json:"table_released"`
}

type reservationResponse struct {
	ID              int64     `json:"id"`
	TableID         *int64    `json:"table_id"`
	CustomerName    string    `json:"customer_name"`
	Pax             int32     `json:"pax"`
	ReservationTime time.Time `json:"reservation_time"`
	Shift           string    `json:"shift"`
	Status          string    `json:"status"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
}

func toReservationResponse(r database.Reservation) reservationResponse {
	return reservationResponse{
		ID:              r.ID,
		TableID:         int8Ptr(r.TableID),
		CustomerName:    r.CustomerName,
		Pax:             r.Pax,
		ReservationTime: r.ReservationTime,
		Shift:           r.Shift,
		Status:          r.Status,
		Notes:           textPtr(r.Notes),
		CreatedAt:       r.CreatedAt,
	}
}
