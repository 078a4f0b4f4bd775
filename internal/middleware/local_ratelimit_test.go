package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newLocalLimited(limit int) http.Handler {
	limiter := NewLocalRateLimiter(RateLimitConfig{RequestsPerWindow: limit, Window: time.Hour}, zap.NewNop())
	return limiter.Handler(okHandler())
}

func TestProperty_LocalLimiterAllowsExactlyTheBurst(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a burst beyond the budget is rejected with 429", prop.ForAll(
		func(limit int, excess int) bool {
			handler := newLocalLimited(limit)

			allowed, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				switch hit(handler, "10.1.1.1:5555").Code {
				case http.StatusOK:
					allowed++
				case http.StatusTooManyRequests:
					blocked++
				}
			}
			return allowed == limit && blocked == excess
		},
		gen.IntRange(1, 30),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestLocalLimiter_ClientsHaveSeparateBudgets(t *testing.T) {
	handler := newLocalLimited(1)

	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:1").Code)

	w := hit(handler, "10.0.0.1:2")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
}
