package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errorStatuses = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusServiceUnavailable,
}

func parseErrorBody(w *httptest.ResponseRecorder) (ErrorResponse, bool) {
	var response ErrorResponse
	if w.Header().Get("Content-Type") != "application/json" {
		return response, false
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		return response, false
	}
	return response, true
}

// Every error body carries the status text, the message and an RFC3339 timestamp
func TestProperty_ErrorEnvelopeIsConsistent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("error envelope mirrors status and message", prop.ForAll(
		func(statusIndex int, message string) bool {
			status := errorStatuses[statusIndex]

			w := httptest.NewRecorder()
			RespondWithError(w, status, message)

			response, ok := parseErrorBody(w)
			if !ok || w.Code != status {
				return false
			}
			if response.Error.Code != http.StatusText(status) || response.Error.Message != message {
				return false
			}
			if response.Error.Details != nil {
				return false
			}
			_, err := time.Parse(time.RFC3339, response.Error.Timestamp)
			return err == nil
		},
		gen.IntRange(0, len(errorStatuses)-1),
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ValidationMessageListsEveryField(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("joined message has one entry per field error", prop.ForAll(
		func(fields []string) bool {
			errs := make([]ValidationError, 0, len(fields))
			for _, f := range fields {
				errs = append(errs, ValidationError{Field: f, Message: "Invalid value"})
			}

			w := httptest.NewRecorder()
			RespondWithValidationErrors(w, errs)

			response, ok := parseErrorBody(w)
			if !ok || w.Code != http.StatusBadRequest {
				return false
			}
			if len(fields) == 0 {
				return response.Error.Message == "validation failed"
			}

			listed, ok := response.Error.Details["validation_errors"].([]interface{})
			return ok && len(listed) == len(fields) && response.Error.Message == ValidationMessage(errs)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRespondWithValidationErrors_JoinsMessages(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithValidationErrors(w, []ValidationError{
		{Field: "name", Message: "This field is required"},
		{Field: "price", Message: "Value must be greater than or equal to 0"},
	})

	response, ok := parseErrorBody(w)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name: This field is required; price: Value must be greater than or equal to 0", response.Error.Message)
}

func TestRespondWithErrorDetails(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithErrorDetails(w, http.StatusNotFound, "sweet not found", map[string]interface{}{"id": "abc"})

	response, ok := parseErrorBody(w)
	require.True(t, ok)
	assert.Equal(t, "Not Found", response.Error.Code)
	assert.Equal(t, "abc", response.Error.Details["id"])
}

func TestRespondWithJSON(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithJSON(w, http.StatusCreated, map[string]interface{}{"name": "Fudge", "quantity": nil})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"name":"Fudge","quantity":null}`, w.Body.String())
}

func TestErrorHandlingMiddleware_RecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	response, ok := parseErrorBody(w)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", response.Error.Message)
}
