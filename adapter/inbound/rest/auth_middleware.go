package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ajkula/logwatcher/domain/port/outbound"
)

type contextKey string

const SubjectContextKey contextKey = "subject"

const loginRoute = "/api/login"

var ErrInvalidToken = errors.New("invalid token")

// AuthMiddleware requires a HS256 bearer token signed with the configured
// secret on every non-public route
type AuthMiddleware struct {
	secret  []byte
	logger  outbound.Logger
	enabled bool
}

func NewAuthMiddleware(secret string, enabled bool, logger outbound.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret:  []byte(secret),
		logger:  logger,
		enabled: enabled,
	}
}

func (m *AuthMiddleware) SetEnabled(enabled bool) {
	m.enabled = enabled
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled || m.isPublicRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := m.extractToken(r)
		if token == "" {
			m.unauthorized(w, "missing token")
			return
		}

		subject, err := m.validateToken(token)
		if err != nil {
			m.unauthorized(w, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), SubjectContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) validateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidToken
	}

	return subject, nil
}

// IssueToken signs a token for subject valid for ttl
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (m *AuthMiddleware) isPublicRoute(path string) bool {
	return path == "/health" || path == loginRoute
}

// the websocket endpoint also accepts ?token= since browsers cannot set
// headers on the upgrade request
func (m *AuthMiddleware) extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return r.URL.Query().Get("token")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}

func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, message string) {
	m.logger.Warn("Unauthorized access", "message", message)
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
