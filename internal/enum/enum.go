package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusCooking   = "cooking"
	OrderStatusReady     = "ready"
	OrderStatusDelivered = "delivered"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
)

const (
	ReservationStatusPending   = "pending"
	ReservationStatusConfirmed = "confirmed"
	ReservationStatusArrived   = "arrived"
	ReservationStatusCompleted = "completed"
	ReservationStatusCancelled = "cancelled"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	RoleAdmin   = "admin"
	RoleWaiter  = "waiter"
	RoleKitchen = "kitchen"
)

const (
	ShiftLunch  = "lunch"
	ShiftDinner = "dinner"
)

// ── Group B: Change-feed topics (no DB constraint) ──

const (
	TopicOrders     = "orders"
	TopicOrderItems = "order_items"
	TopicTables     = "tables"
)

// IsTerminalOrderStatus reports whether no further mutation is allowed.
func IsTerminalOrderStatus(s string) bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusCooking, OrderStatusReady,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func IsValidRole(s string) bool {
	return s == RoleAdmin || s == RoleWaiter || s == RoleKitchen
}

func IsValidShift(s string) bool {
	return s == ShiftLunch || s == ShiftDinner
}

func IsValidReservationStatus(s string) bool {
	switch s {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusArrived,
		ReservationStatusCompleted, ReservationStatusCancelled:
		return true
	}
	return false
}

func IsTerminalReservationStatus(s string) bool {
	return s == ReservationStatusCompleted || s == ReservationStatusCancelled
}
