package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"staffdesk/internal/logs"
	"staffdesk/internal/models"
)

type ctxKey struct{}

type principal struct {
	user      *models.User
	sessionID string
}

// UserFromContext returns the authenticated user placed by RequireAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	p, ok := ctx.Value(ctxKey{}).(*principal)
	if !ok || p.user == nil {
		return nil, false
	}
	return p.user, true
}

func sessionIDFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(ctxKey{}).(*principal); ok {
		return p.sessionID
	}
	return ""
}

// WithUser is used by tests and internal callers to act as u.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, &principal{user: u})
}

// Route names reachable while a password change is pending.
const (
	routeMe             = "auth.me"
	routeChangePassword = "auth.change-password"
)

func rotationRoute(r *http.Request) bool {
	route := mux.CurrentRoute(r)
	if route == nil {
		return false
	}
	name := route.GetName()
	return name == routeMe || name == routeChangePassword
}

// RequireAuth rejects requests without a valid session with 401. Users that
// must change their password get 403 everywhere but /user and /user/change-password.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Resolve(r)
		if err != nil {
			if err != ErrNoSession {
				logs.Logger.Errorf("session lookup: %v", err)
			}
			models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "authentication required", nil)
			return
		}
		u := sess.User
		if u.RequirePasswordChange && !rotationRoute(r) {
			models.WriteProblem(w, http.StatusForbidden, "Forbidden", "password change required", map[string]bool{"requirePasswordChange": true})
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, &principal{user: &u, sessionID: sess.ID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets through only users whose role is listed; 403 otherwise.
func RequireRole(roles ...models.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "authentication required", nil)
				return
			}
			for _, role := range roles {
				if u.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			models.WriteProblem(w, http.StatusForbidden, "Forbidden", "insufficient role", nil)
		})
	}
}

// RequireStaff is RequireRole(admin, hr).
func RequireStaff() mux.MiddlewareFunc { return RequireRole(models.RoleAdmin, models.RoleHR) }
