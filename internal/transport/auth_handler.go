package transport

import (
	"net/http"

	"sweet-shop/internal/middleware"
	"sweet-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"` // bcrypt input limit
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserSummary is the public view of a registered account
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// AuthHandler handles registration and login
type AuthHandler struct {
	credentials service.CredentialService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(credentials service.CredentialService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		logger:      logger,
	}
}

// RegisterRoutes registers the auth routes. limiter wraps both endpoints and may be nil.
func (h *AuthHandler) RegisterRoutes(r chi.Router, limiter func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter)
		}
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	user, err := h.credentials.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Registration failed", zap.String("email", req.Email), zap.Error(err))
		respondServiceError(w, h.logger, err, "register user")
		return
	}

	h.logger.Info("User registered successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, UserSummary{
		ID:    user.ID.String(),
		Email: user.Email,
	})
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	result, err := h.credentials.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		respondServiceError(w, h.logger, err, "login")
		return
	}

	h.logger.Info("User logged in successfully", zap.String("email", result.Email))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		Email: result.Email,
		Token: result.Token,
	})
}
