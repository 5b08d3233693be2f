package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pk55-api/logger"
	"pk55-api/models"
	"pk55-api/services/auth"
	"pk55-api/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware rejects requests without a valid "Bearer <token>" header and
// stores the token's user in the request context.
func AuthMiddleware(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing Authorization header", zap.String("remote", r.RemoteAddr))
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				logger.Debug("Invalid Authorization header format", zap.String("remote", r.RemoteAddr))
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			user, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				logger.Info("Token validation failed", zap.String("remote", r.RemoteAddr), zap.Error(err))

				message := "Invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					message = "Token expired"
				}
				utils.SendErrorResponse(w, http.StatusUnauthorized, message)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext returns the authenticated user, or nil.
func GetUserFromContext(ctx context.Context) *models.AuthUser {
	user, ok := ctx.Value(UserContextKey).(*models.AuthUser)
	if !ok {
		return nil
	}
	return user
}
