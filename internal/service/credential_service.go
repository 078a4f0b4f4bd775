package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sweet-shop/internal/domain"
	"sweet-shop/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// DefaultTokenExpiration applies when the configured expiry is not positive
	DefaultTokenExpiration = time.Hour
)

var (
	ErrDuplicateEmail     = repository.ErrUserAlreadyExists
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// CredentialService registers accounts and issues bearer tokens
type CredentialService interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	ValidateToken(tokenString string) (*Claims, error)
	EnsureAdmin(ctx context.Context, email, password string) (created bool, err error)
}

// LoginResult is what a successful login hands back to the client
type LoginResult struct {
	Email string
	Token string
}

// Claims represents the JWT claims. Subject carries the user id.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type credentialService struct {
	userRepo    repository.UserRepository
	jwtSecret   []byte
	tokenExpiry time.Duration
	now         func() time.Time
}

// NewCredentialService creates a new instance of CredentialService
func NewCredentialService(userRepo repository.UserRepository, jwtSecret string, tokenExpiry time.Duration) CredentialService {
	if tokenExpiry <= 0 {
		tokenExpiry = DefaultTokenExpiration
	}
	return &credentialService{
		userRepo:    userRepo,
		jwtSecret:   []byte(jwtSecret),
		tokenExpiry: tokenExpiry,
		now:         time.Now,
	}
}

// Register creates a USER account with a bcrypt-hashed password
func (s *credentialService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	return s.createUser(ctx, email, password, domain.RoleUser)
}

// Login verifies the password and issues a signed token. Unknown email and wrong
// password fail identically.
func (s *credentialService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResult{Email: user.Email, Token: token}, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *credentialService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Email == "" {
		return nil, ErrInvalidToken
	}

	if claims.Role == "" {
		claims.Role = domain.RoleUser
	}

	return claims, nil
}

// EnsureAdmin creates an ADMIN account unless the email is already registered
func (s *credentialService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	_, err := s.createUser(ctx, email, password, domain.RoleAdmin)
	if errors.Is(err, ErrDuplicateEmail) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *credentialService) createUser(ctx context.Context, email, password string, role domain.Role) (*domain.User, error) {
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}

	// A concurrent registration can still trip the unique constraint
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *credentialService) generateToken(user *domain.User) (string, error) {
	role := user.Role
	if role == "" {
		role = domain.RoleUser
	}

	now := s.now()
	claims := &Claims{
		Email: user.Email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
