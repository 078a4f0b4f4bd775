package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter table; it is reset when exceeded
const maxTrackedClients = 10000

// LocalRateLimiter is an in-process token bucket per client, used when no
// Redis server is configured. Limits are not shared between replicas.
type LocalRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	logger   *zap.Logger
}

// NewLocalRateLimiter allows config.RequestsPerWindow requests per window,
// refilled evenly across the window
func NewLocalRateLimiter(config RateLimitConfig, logger *zap.Logger) *LocalRateLimiter {
	burst := config.RequestsPerWindow
	if burst < 1 {
		burst = 1
	}
	window := config.Window
	if window <= 0 {
		window = time.Minute
	}

	return &LocalRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(window / time.Duration(burst)),
		burst:    burst,
		logger:   logger,
	}
}

func (rl *LocalRateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		if len(rl.limiters) >= maxTrackedClients {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}

	return limiter
}

// Handler rejects a client with 429 once its bucket is empty
func (rl *LocalRateLimiter) Handler(next http.Handler) http.Handler {
	limit := strconv.Itoa(rl.burst)
	refill := time.Duration(float64(time.Second) / float64(rl.limit))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := rateLimitClient(r)
		w.Header().Set("X-RateLimit-Limit", limit)

		if !rl.getLimiter(client).Allow() {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client", client),
				zap.String("path", r.URL.Path),
				zap.Int("limit", rl.burst),
			)
			rejectRateLimited(w, refill)
			return
		}

		next.ServeHTTP(w, r)
	})
}
