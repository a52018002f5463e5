package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

type contextKey struct{}

func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(contextKey{}).(domain.User)
	return user, ok
}

type Middleware struct {
	verifier *Verifier
	users    UserLookup
	logger   *slog.Logger
}

func NewMiddleware(verifier *Verifier, users UserLookup, logger *slog.Logger) *Middleware {
	return &Middleware{
		verifier: verifier,
		users:    users,
		logger:   logger,
	}
}

// Require resolves the bearer token to an active user whose role is in
// allowed, and stores the user in the request context. No roles admits any user.
func (m *Middleware) Require(next http.HandlerFunc, allowed ...domain.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := m.verifier.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := m.users.GetUser(r.Context(), userID)
		if err != nil {
			m.logger.Error("failed to load user", "error", err, "user_id", userID)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if user == nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if !user.Active {
			writeError(w, http.StatusForbidden, "inactive user")
			return
		}
		if !user.Role.In(allowed...) {
			m.logger.Warn("role not allowed", "user_id", user.ID, "role", user.Role, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), *user)))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
