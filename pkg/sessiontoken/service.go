package sessiontoken

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiry is the fixed offset between issuance and expiry.
const DefaultExpiry = 18000 * time.Second

var (
	// ErrTokenExpired is returned when a token's expiry is in the past
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken is returned when a token fails signature or claim checks
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carries the signed token payload: user ID plus issued-at and expiry.
type Claims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

// Token is an issued session token. It is never persisted server-side;
// validity is proven by signature and expiry alone.
type Token struct {
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	Token     string `json:"token"`
}

// Service issues and verifies HS256-signed session tokens
type Service struct {
	secret string
	expiry time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithExpiry sets the token lifetime
func WithExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		s.expiry = expiry
	}
}

// New creates a new session token service
func New(secret string, opts ...Option) *Service {
	service := &Service{
		secret: secret,
		expiry: DefaultExpiry,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Issue creates a signed token for the given user ID
func (s *Service) Issue(userID int64) (*Token, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.expiry)

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   strconv.FormatInt(userID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		slog.Error("Failed to sign session token", "err", err)
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
		Token:     signed,
	}, nil
}

// Parse verifies the signature and returns the claims. Expiry is re-checked
// against the wall clock even though the JWT library enforces it, so callers
// do not depend on library behavior for the expiry guarantee.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		slog.Error("Failed to parse session token", "err", err)
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt == nil || time.Now().UTC().After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}
