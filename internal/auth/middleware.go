package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/obs"
)

type contextKey string

const userKey contextKey = "user"

// Middleware guards pages that need a signed-in user.
type Middleware struct {
	sessions *SessionService
	users    *UserService
	loginURL string
}

// NewMiddleware creates a middleware that sends anonymous requests to
// loginURL.
func NewMiddleware(sessions *SessionService, users *UserService, loginURL string) *Middleware {
	return &Middleware{
		sessions: sessions,
		users:    users,
		loginURL: loginURL,
	}
}

// RequireSession redirects to the login page unless the request carries a
// valid session. Protected responses are marked no-store so the browser
// back button cannot show them after logout.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		user, err := m.userFromRequest(r)
		if err != nil {
			obs.From(r.Context()).Debug("session rejected", zap.String("path", r.URL.Path), zap.Error(err))
			http.Redirect(w, r, m.loginURL, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (m *Middleware) userFromRequest(r *http.Request) (*User, error) {
	sessionID, err := GetFromRequest(r)
	if err != nil {
		return nil, err
	}
	userID, err := m.sessions.Validate(r.Context(), sessionID)
	if err != nil {
		return nil, err
	}
	return m.users.FindByID(r.Context(), userID)
}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// GetUser returns the signed-in user, or nil.
func GetUser(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}

// IsAuthenticated checks if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUser(ctx) != nil
}
