package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the HTTP status text as Code and a human readable Message
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

func RespondWithError(w http.ResponseWriter, status int, message string) {
	RespondWithErrorDetails(w, status, message, nil)
}

func RespondWithErrorDetails(w http.ResponseWriter, status int, message string, details map[string]any) {
	RespondWithJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:      http.StatusText(status),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// RespondWithValidationErrors sends a 400 whose message joins every field error
func RespondWithValidationErrors(w http.ResponseWriter, errs []ValidationError) {
	message := ValidationMessage(errs)
	if message == "" {
		message = "validation failed"
	}
	RespondWithErrorDetails(w, http.StatusBadRequest, message, map[string]any{
		"validation_errors": errs,
	})
}

// RespondWithJSON writes payload as the JSON body with the given status
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ErrorHandlingMiddleware turns handler panics into a 500 envelope.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("Recovered from handler panic",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)
				RespondWithError(w, http.StatusInternalServerError, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
