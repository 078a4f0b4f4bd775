package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sweet-shop/internal/config"
	"sweet-shop/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "test", AllowedOrigins: []string{"http://localhost:3000"}},
		Redis:  config.RedisConfig{RequestsPerWindow: 2, Window: time.Minute},
		JWT:    config.JWTConfig{Secret: "test-secret", AccessExpiry: 60},
	}
}

func newTestServer(t *testing.T, redisClient *redis.Client) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewServer(testConfig(), zap.NewNop(), database.FromDB(db), redisClient), mock
}

func serve(s *Server, method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, mock := newTestServer(t, nil)

	mock.ExpectPing()
	w := serve(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "up", body["database"])

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	w = serve(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutesAreMounted(t *testing.T) {
	s, mock := newTestServer(t, nil)

	mock.ExpectQuery("SELECT (.+) FROM sweets").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "price", "quantity", "created_at", "updated_at"}))

	w := serve(s, http.MethodGet, "/api/sweets", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodPost, "/api/sweets", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodPost, "/api/auth/login", `{}`).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	serve(s, http.MethodPost, "/api/auth/login", `{}`)
	w := serve(s, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `sweet_shop_http_requests_total{method="POST",route="/api/auth/login",status="400"} 1`)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s, _ := newTestServer(t, redisClient)
	defer s.Close()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(s, http.MethodPost, "/api/auth/login", `{}`).Code)
	}

	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)

	// Catalog routes share no budget with auth
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodPost, "/api/sweets/not-a-uuid/purchase?quantity=1", "").Code)
}

func TestAuthRoutesFallBackToLocalLimiter(t *testing.T) {
	s, _ := newTestServer(t, nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(s, http.MethodPost, "/api/auth/register", `{}`).Code)
	}

	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}
