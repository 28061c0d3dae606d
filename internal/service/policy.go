package service

import (
	"slices"

	"github.com/easyorder/api/internal/enum"
	"github.com/google/uuid"
)

// Actor is the authenticated staff member performing a change.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// allowedTransitions defines the order status graph. Terminal statuses have
// no entry.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusCooking, enum.OrderStatusCancelled},
	enum.OrderStatusCooking:   {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:     {enum.OrderStatusDelivered, enum.OrderStatusCancelled},
	enum.OrderStatusDelivered: {enum.OrderStatusCompleted},
}

// transitionRoles lists who may move an order into each target status.
var transitionRoles = map[string][]string{
	enum.OrderStatusCooking:   {enum.RoleKitchen, enum.RoleAdmin},
	enum.OrderStatusReady:     {enum.RoleKitchen, enum.RoleAdmin},
	enum.OrderStatusDelivered: {enum.RoleWaiter, enum.RoleAdmin},
	enum.OrderStatusCompleted: {enum.RoleWaiter, enum.RoleAdmin},
	enum.OrderStatusCancelled: {enum.RoleAdmin, enum.RoleWaiter, enum.RoleKitchen},
}

// CanTransition reports whether from → to is an edge of the status graph.
func CanTransition(from, to string) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// RoleMayTransition reports whether role may move an order into status to.
func RoleMayTransition(role, to string) bool {
	return slices.Contains(transitionRoles[to], role)
}

// NextStatuses returns the statuses role may move an order in status from
// into. Terminals use it to decide which buttons to show.
func NextStatuses(from, role string) []string {
	var out []string
	for _, to := range allowedTransitions[from] {
		if RoleMayTransition(role, to) {
			out = append(out, to)
		}
	}
	return out
}

func canOpenOrder(role string) bool {
	return role == enum.RoleWaiter || role == enum.RoleAdmin
}

// CanEditActiveOrder is the edit gate for an order that is already open on a
// table: only admins may change its items.
func CanEditActiveOrder(role string) bool {
	return role == enum.RoleAdmin
}

func canManageTables(role string) bool {
	return role == enum.RoleWaiter || role == enum.RoleAdmin
}
