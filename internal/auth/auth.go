package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/testgen/pkg/models"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const SubjectContextKey ContextKey = "subject"

// CookieName is checked when no Authorization header is present.
const CookieName = "auth_token"

const DefaultTTL = 24 * time.Hour

var ErrAuthNotConfigured = errors.New("auth not configured")

type Claims struct {
	jwt.RegisteredClaims
}

// Guard issues and checks HS256 tokens. A disabled guard lets every request
// through.
type Guard struct {
	Secret  []byte
	Enabled bool
	TTL     time.Duration
}

func NewGuard(secret string, enabled bool, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{
		Secret:  []byte(secret),
		Enabled: enabled,
		TTL:     ttl,
	}
}

// Issue signs a token for subject. A zero ttl uses the guard's TTL.
func (g *Guard) Issue(subject string, ttl time.Duration) (string, error) {
	if g == nil || len(g.Secret) == 0 {
		return "", ErrAuthNotConfigured
	}
	if ttl <= 0 {
		ttl = g.TTL
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.Secret)
}

// Validate parses tokenString and returns its subject.
func (g *Guard) Validate(tokenString string) (string, error) {
	if g == nil || len(g.Secret) == 0 {
		return "", ErrAuthNotConfigured
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return g.Secret, nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.Subject, nil
	}
	return "", fmt.Errorf("invalid token")
}

// Middleware requires a valid token when the guard is enabled.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If auth is disabled, just pass through
		if g == nil || !g.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			unauthorized(w, "Authentication required")
			return
		}

		subject, err := g.Validate(tokenString)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("rejected token")
			unauthorized(w, "Invalid authentication token")
			return
		}

		ctx := context.WithValue(r.Context(), SubjectContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(SubjectContextKey).(string); ok {
		return s
	}
	return ""
}

func tokenFromRequest(r *http.Request) string {
	// Try Authorization header first
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:      msg,
		StatusCode: http.StatusUnauthorized,
	})
}
