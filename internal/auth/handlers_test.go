package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

func newRouter(t *testing.T) (*mux.Router, *fixture, *Sessions) {
	t.Helper()
	f := newFixture(t)
	sessions := NewSessions(repo.NewSessionStore(f.db), "test-session-secret", time.Hour, false)
	h := NewHandler(f.svc, sessions)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(sessions.RequireAuth)
	h.RegisterRoutes(api, authed)

	staff := r.PathPrefix("/api/staff").Subrouter()
	staff.Use(sessions.RequireAuth, RequireStaff())
	staff.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return r, f, sessions
}

func do(t *testing.T, h http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestHTTP_RegisterSessionLogout(t *testing.T) {
	t.Parallel()
	r, f, _ := newRouter(t)
	f.invite(t, "httptok", time.Hour, nil)

	rec := do(t, r, http.MethodPost, "/api/register", registerInput("httptok", "webuser", "web@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	rec = do(t, r, http.MethodGet, "/api/user", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Username string           `json:"username"`
		Employee *models.Employee `json:"employee"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, "webuser", me.Username)
	require.NotNil(t, me.Employee)

	// second redemption of the same token
	rec = do(t, r, http.MethodPost, "/api/register", registerInput("httptok", "webuser2", "web2@example.com"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/logout", nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, r, http.MethodGet, "/api/user", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTP_Unauthenticated(t *testing.T) {
	t.Parallel()
	r, _, _ := newRouter(t)

	rec := do(t, r, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged := &http.Cookie{Name: CookieName, Value: "eyJhbGciOiJIUzI1NiJ9.e30.bad"}
	rec = do(t, r, http.MethodGet, "/api/user", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTP_LoginAndRoles(t *testing.T) {
	t.Parallel()
	r, f, _ := newRouter(t)
	hash, err := HashPassword("viewer-pass")
	require.NoError(t, err)
	require.NoError(t, f.users.Create(t.Context(), &models.User{Username: "viewer", PasswordHash: hash, Role: models.RoleViewer}))

	rec := do(t, r, http.MethodPost, "/api/login", loginRequest{Username: "viewer", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/login", loginRequest{Username: "viewer", Password: "viewer-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	rec = do(t, r, http.MethodGet, "/api/staff/ping", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHTTP_PendingPasswordChangeBlocksOtherRoutes(t *testing.T) {
	t.Parallel()
	r, f, _ := newRouter(t)
	hash, err := HashPassword("first-pass")
	require.NoError(t, err)
	require.NoError(t, f.users.Create(t.Context(), &models.User{
		Username: "root", PasswordHash: hash, Role: models.RoleAdmin, RequirePasswordChange: true,
	}))

	rec := do(t, r, http.MethodPost, "/api/login", loginRequest{Username: "root", Password: "first-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	rec = do(t, r, http.MethodGet, "/api/staff/ping", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "password change required")
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/user", nil, cookie).Code)

	rec = do(t, r, http.MethodPost, "/api/user/change-password",
		changePasswordRequest{CurrentPassword: "first-pass", NewPassword: "second-pass"}, cookie)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/staff/ping", nil, cookie).Code)
}
