package server

import (
	"fmt"
	"net/http"
	"time"

	"sweet-shop/internal/config"
	"sweet-shop/internal/database"
	"sweet-shop/internal/metrics"
	custommiddleware "sweet-shop/internal/middleware"
	"sweet-shop/internal/repository"
	"sweet-shop/internal/service"
	"sweet-shop/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config      *config.Config
	logger      *zap.Logger
	db          database.Service
	redis       *redis.Client
	credentials service.CredentialService
	metrics     *metrics.Collector
}

// NewServer wires repositories, services and handlers onto one router.
// redisClient may be nil, in which case /api/auth is limited per process.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	collector := metrics.NewCollector("sweet_shop")

	// Create router
	router := chi.NewRouter()
	for _, mw := range custommiddleware.DefaultMiddlewareStack(logger) {
		router.Use(mw)
	}
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(collector.InstrumentHandler)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB())
	sweetRepo := repository.NewSweetRepository(db.DB())

	// Initialize services
	credentials := service.NewCredentialService(userRepo, cfg.JWT.Secret, cfg.JWT.AccessTokenTTL())
	sweetService := service.NewSweetService(sweetRepo, collector)

	// Initialize handlers
	authHandler := transport.NewAuthHandler(credentials, logger)
	sweetHandler := transport.NewSweetHandler(sweetService, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(credentials, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	limitConfig := custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.Redis.RequestsPerWindow,
		Window:            cfg.Redis.Window,
		KeyPrefix:         "rate_limit:auth",
	}
	var limiter func(http.Handler) http.Handler
	if redisClient != nil {
		limiter = custommiddleware.RateLimitMiddleware(redisClient, limitConfig, logger)
	} else {
		logger.Warn("Redis not configured, auth endpoints use a per-process rate limit")
		limiter = custommiddleware.NewLocalRateLimiter(limitConfig, logger).Handler
	}

	// Register routes
	router.Get("/health", healthHandler(db))
	router.Handle("/metrics", collector.Handler())
	authHandler.RegisterRoutes(router, limiter)
	sweetHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:      cfg,
		logger:      logger,
		db:          db,
		redis:       redisClient,
		credentials: credentials,
		metrics:     collector,
	}

	return server
}

// Credentials exposes the credential service for startup tasks such as seeding the admin
func (s *Server) Credentials() service.CredentialService {
	return s.credentials
}

func healthHandler(db database.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())

		status := http.StatusOK
		body := map[string]string{"status": "ok", "database": health["status"]}
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		custommiddleware.RespondWithJSON(w, status, body)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
