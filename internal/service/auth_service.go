package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// --- Error Definitions ---
var (
	ErrTokenGeneration = errors.New("failed to generate authentication token")
)

// Visitor is the anonymous identity a login issues. There are no stored
// accounts and no credentials; the token only scopes API access.
type Visitor struct {
	ID   string
	Name string
}

// --- Service Interface ---
type AuthService interface {
	// Login mints a fresh visitor identity and its access token. The name
	// is display-only and never verified.
	Login(ctx context.Context, name string) (token string, visitor *Visitor, err error)
	GetJWTSecret() string
}

// authService implements the AuthService interface.
type authService struct {
	jwtSecret     string
	jwtExpiration time.Duration
}

// NewAuthService creates a new instance of authService.
func NewAuthService(jwtSecret string, jwtExpiration time.Duration) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if jwtExpiration <= 0 {
		jwtExpiration = 12 * time.Hour
	}
	return &authService{
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

// Login issues a visitor token. Every login is a new visitor.
func (s *authService) Login(ctx context.Context, name string) (string, *Visitor, error) {
	if name == "" {
		name = "Visitor"
	}
	visitor := &Visitor{
		ID:   "VISITOR_" + uuid.NewString(),
		Name: name,
	}
	log.Printf("INFO: User logged in as %s (%s)", visitor.Name, visitor.ID)

	token, err := s.generateJWT(visitor)
	if err != nil {
		return "", nil, ErrTokenGeneration
	}
	return token, visitor, nil
}

// --- JWT Helper ---

// VisitorClaims defines the structure of the JWT payload. The API
// middleware parses the same shape.
type VisitorClaims struct {
	UserID   string `json:"uid"`
	UserName string `json:"name"`
	jwt.RegisteredClaims
}

// generateJWT creates a new JWT token for the given visitor.
func (s *authService) generateJWT(visitor *Visitor) (string, error) {
	expirationTime := time.Now().Add(s.jwtExpiration)
	claims := &VisitorClaims{
		UserID:   visitor.ID,
		UserName: visitor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   visitor.ID,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "gymtrack",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// GetJWTSecret returns the JWT secret for middleware authentication
func (s *authService) GetJWTSecret() string {
	return s.jwtSecret
}
