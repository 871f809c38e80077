package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/praxislearn/assess-backend/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for unknown email or wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSessionRevoked is returned when a structurally valid token no longer
// matches the learner's active login (logged out, or superseded by a newer
// login on another device).
var ErrSessionRevoked = errors.New("login session revoked")

// Claims extends JWT standard claims with the learner identity. The
// learner ID in the token is the only source of ownerId for session calls;
// request bodies never carry it.
type Claims struct {
	jwt.RegisteredClaims
	LearnerID int `json:"learner_id"`
}

// LoginStore tracks the active login jti per learner. One jti per learner:
// Save overwrites, so a new login revokes the previous token.
type LoginStore interface {
	Save(ctx context.Context, learnerID int, jti string, ttl time.Duration) error
	Get(ctx context.Context, learnerID int) (string, error)
	Drop(ctx context.Context, learnerID int) error
}

// AuthService handles password checks and JWT issuance/validation.
type AuthService struct {
	cfg    *config.Config
	logins LoginStore
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, logins LoginStore) *AuthService {
	return &AuthService{cfg: cfg, logins: logins}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateToken creates a JWT for a learner and registers its jti as the
// learner's active login with the same expiry. A new login replaces the
// previous registration, so the older token fails ValidateSession on its
// next request.
func (s *AuthService) GenerateToken(ctx context.Context, learnerID int) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(learnerID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		LearnerID: learnerID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if err := s.logins.Save(ctx, learnerID, jti, s.cfg.JWTExpiry); err != nil {
		return "", fmt.Errorf("store login: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and verifies a JWT, returning its claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateSession checks a token's jti against the learner's registered
// login. Signature validity alone is not enough to accept a request.
func (s *AuthService) ValidateSession(ctx context.Context, claims *Claims) error {
	active, err := s.logins.Get(ctx, claims.LearnerID)
	if err != nil {
		return fmt.Errorf("read login: %w", err)
	}
	if active == "" || active != claims.ID {
		return ErrSessionRevoked
	}
	return nil
}

// Logout drops the learner's login registration, revoking the active token.
func (s *AuthService) Logout(ctx context.Context, learnerID int) error {
	if err := s.logins.Drop(ctx, learnerID); err != nil {
		return fmt.Errorf("drop login: %w", err)
	}
	return nil
}
