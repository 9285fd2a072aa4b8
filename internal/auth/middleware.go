// internal/auth/middleware.go

package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sonuprasad23/spark/internal/common/apperr"
	"github.com/sonuprasad23/spark/internal/common/utils"
)

type contextKey string

const userIDKey contextKey = "userID"

// TokenVerifier turns a bearer token into the caller's user id
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// Middleware provides authentication middleware
type Middleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(verifier TokenVerifier, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{verifier: verifier, logger: logger.Named("auth")}
}

// Authenticate verifies the bearer token and puts the user id in the request context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			utils.RespondWithError(w, apperr.Unauthenticated("missing or invalid authorization header"))
			return
		}

		userID, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil || userID == "" {
			m.logger.Debug("rejected token", zap.Error(err))
			utils.RespondWithError(w, apperr.Unauthenticated("invalid or expired token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// extractToken supports the "Bearer <token>" format
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WithUserID returns a context carrying an authenticated user id
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user id
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// RequireUserID returns the caller or an Unauthenticated error
func RequireUserID(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", apperr.Unauthenticated("authentication required")
	}
	return userID, nil
}
