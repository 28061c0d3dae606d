package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/easyorder/api/internal/database"
	"github.com/easyorder/api/internal/service"
	"github.com/go-chi/chi/v5"
)

// ReservationServicer defines the service methods needed by reservation
// handlers. Satisfied by *service.TableService.
type ReservationServicer interface {
	ListReservations(ctx context.Context, f service.ReservationFilter) ([]database.Reservation, error)
	CreateReservation(ctx context.Context, req service.CreateReservationRequest) (database.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id int64, status string) (database.Reservation, error)
	AssignReservation(ctx context.Context, reservationID, tableID int64, actor service.Actor) (*service.AssignResult, error)
}

// ReservationHandler handles reservation endpoints.
type ReservationHandler struct {
	svc ReservationServicer
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(svc ReservationServicer) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

// RegisterRoutes registers reservation endpoints. Expected to be mounted at
// /reservations behind a waiter/admin role check.
func (h *ReservationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/assign", h.Assign)
}

type createReservationRequest struct {
	CustomerName    string    `json:"customer_name" validate:"required"`
	Pax             int32     `json:"pax" validate:"required,gt=0"`
	ReservationTime time.Time `json:"reservation_time" validate:"required"`
	Shift           string    `json:"shift" validate:"required,oneof=lunch dinner"`
	Notes           string    `json:"notes"`
}

type updateReservationStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type assignReservationRequest struct {
	TableID int64 `json:"table_id" validate:"required,gt=0"`
}

type assignResponse struct {
	Reservation reservationResponse `json:"reservation"`
	Table       tableResponse       `json:"table"`
}

// parseTimeParam accepts an RFC 3339 timestamp or a plain date.
func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

// List handles GET /reservations with optional shift, from and to filters.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := service.ReservationFilter{Shift: q.Get("shift")}
	if v := q.Get("from"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from: use RFC3339 or YYYY-MM-DD")
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: use RFC3339 or YYYY-MM-DD")
			return
		}
		f.To = t
	}

	res, err := h.svc.ListReservations(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]reservationResponse, len(res))
	for i, rv := range res {
		resp[i] = toReservationResponse(rv)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.CreateReservation(r.Context(), service.CreateReservationRequest{
		CustomerName:    req.CustomerName,
		Pax:             req.Pax,
		ReservationTime: req.ReservationTime,
		Shift:           req.Shift,
		Notes:           req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

// UpdateStatus handles PATCH /reservations/{id}/status.
func (h *ReservationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id", "reservation ID")
	if !ok {
		return
	}
	var req updateReservationStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.UpdateReservationStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

// Assign handles POST /reservations/{id}/assign, seating the party.
func (h *ReservationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "id", "reservation ID")
	if !ok {
		return
	}
	var req assignReservationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.AssignReservation(r.Context(), id, req.TableID, actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignResponse{
		Reservation: toReservationResponse(res.Reservation),
		Table:       toTableResponse(res.Table),
	})
}
