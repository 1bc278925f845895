package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ahis-social/server/internal/auth"
	"github.com/ahis-social/server/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Verifier resolves a bearer token to an approved principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Principal, error)
}

func Auth(verifier Verifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token")
				return
			}

			principal, err := verifier.Verify(r.Context(), strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrNotApproved):
					writeError(w, http.StatusForbidden, "NOT_APPROVED", "User not approved")
				case errors.Is(err, auth.ErrTokenRequired), errors.Is(err, auth.ErrInvalidToken):
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
				default:
					log.Error("verifying token", zap.Error(err))
					writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
				}
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, principal.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) uuid.UUID {
	return ctx.Value(UserIDKey).(uuid.UUID)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
