package service

import "errors"

// Validation errors. Rejected before any write.
var (
	ErrEmptyOrder       = errors.New("order must contain at least one item")
	ErrInvalidQuantity  = errors.New("quantity must be between 1 and 999")
	ErrInvalidUnitPrice = errors.New("unit_price must be between 0 and 9999999999.99")
	ErrTotalTooLarge    = errors.New("order total exceeds 9999999999.99")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidShift     = errors.New("invalid shift")
	ErrInvalidPax       = errors.New("pax must be > 0")
	ErrCustomerRequired = errors.New("customer_name is required")
	ErrProductNotFound  = errors.New("product not found")
)

// Lookup errors.
var (
	ErrTableNotFound       = errors.New("table not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrReservationNotFound = errors.New("reservation not found")
)

// State errors. The stored state did not allow the requested change.
var (
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrOrderTerminal        = errors.New("order is completed or cancelled")
	ErrStatusConflict       = errors.New("order status changed concurrently")
	ErrTableNotAvailable    = errors.New("table is not available")
	ErrTableHasActiveOrders = errors.New("table has active orders")
	ErrReservationClosed    = errors.New("reservation is completed or cancelled")
)

// ErrForbidden is returned when the acting role may not perform the change.
var ErrForbidden = errors.New("role not permitted for this action")

var validationErrors = []error{
	ErrEmptyOrder, ErrInvalidQuantity, ErrInvalidUnitPrice, ErrTotalTooLarge, ErrInvalidStatus,
	ErrInvalidShift, ErrInvalidPax, ErrCustomerRequired, ErrProductNotFound,
}

// IsValidation reports whether err was caused by bad input.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err names a missing table, order or reservation.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrReservationNotFound)
}

// IsConflict reports whether err was caused by the current stored state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrOrderTerminal) ||
		errors.Is(err, ErrStatusConflict) ||
		errors.Is(err, ErrTableNotAvailable) ||
		errors.Is(err, ErrTableHasActiveOrders) ||
		errors.Is(err, ErrReservationClosed)
}
