package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/easyorder/api/internal/cart"
	"github.com/easyorder/api/internal/logger"
	"github.com/easyorder/api/internal/middleware"
	"github.com/easyorder/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON body into dst and runs its validate tags.
// On failure it writes a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+fe.Param())
		case "gt":
			msgs = append(msgs, field+" must be greater than "+fe.Param())
		case "gte", "min":
			msgs = append(msgs, field+" must be at least "+fe.Param())
		case "lte", "max":
			msgs = append(msgs, field+" must be at most "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// writeServiceError maps lifecycle errors onto HTTP statuses. Unknown
// errors are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case service.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, cart.ErrReadOnly):
		writeError(w, http.StatusForbidden, err.Error())
	case service.IsValidation(err), errors.Is(err, cart.ErrLineNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	case service.IsConflict(err), errors.Is(err, cart.ErrStaleCart):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, cart.ErrNoSession):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logger.FromContext(r.Context()).Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// actorFromRequest returns the authenticated caller. It writes a 401 and
// returns false when the request carries no claims.
func actorFromRequest(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role}, true
}

// int64Param parses a positive integer URL parameter. It writes a 400 and
// returns false when the value is not one.
func int64Param(w http.ResponseWriter, r *http.Request, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+label)
		return 0, false
	}
	return id, true
}
