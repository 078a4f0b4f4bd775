package transport

import (
	"errors"
	"net/http"

	"sweet-shop/internal/middleware"
	"sweet-shop/internal/service"

	"go.uber.org/zap"
)

// respondServiceError translates service sentinels into HTTP statuses.
// Anything unrecognised is logged and reported as 500.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	switch {
	case errors.Is(err, service.ErrSweetNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "sweet not found")
	case errors.Is(err, service.ErrInsufficientStock):
		middleware.RespondWithError(w, http.StatusBadRequest, "insufficient stock")
	case errors.Is(err, service.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, "quantity must be greater than zero")
	case errors.Is(err, service.ErrValueOutOfRange):
		middleware.RespondWithError(w, http.StatusBadRequest, "value out of range")
	case errors.Is(err, service.ErrDuplicateEmail):
		middleware.RespondWithError(w, http.StatusBadRequest, "email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// decodeBody decodes and validates a JSON body, writing the 400 itself on failure
func decodeBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
