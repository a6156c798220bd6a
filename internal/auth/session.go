package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

// CookieName is the session cookie.
const CookieName = "staffdesk_session"

var ErrNoSession = errors.New("auth: no valid session")

// Sessions issues and resolves login sessions. The row in the sessions table is
// authoritative; the cookie carries an HS256 token naming that row, signed with
// SESSION_SECRET, so forged or foreign ids are rejected before touching the db.
type Sessions struct {
	store  *repo.SessionStore
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessions(store *repo.SessionStore, secret string, ttl time.Duration, secure bool) *Sessions {
	return &Sessions{store: store, secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Issue creates a session for u and writes the cookie.
func (s *Sessions) Issue(ctx context.Context, w http.ResponseWriter, r *http.Request, u *models.User) (*models.Session, error) {
	id, err := randomHex(32)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &models.Session{
		ID:        id,
		UserID:    u.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		UserAgent: truncate(r.UserAgent(), 255),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("auth: create session: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{jwt.RegisteredClaims{
		ID:        id,
		Subject:   strconv.FormatUint(uint64(u.ID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

// Resolve returns the session (with user) referenced by the request cookie.
func (s *Sessions) Resolve(r *http.Request) (*models.Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	var claims sessionClaims
	_, err = jwt.ParseWithClaims(c.Value, &claims, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || claims.ID == "" {
		return nil, ErrNoSession
	}
	sess, err := s.store.GetActive(r.Context(), claims.ID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	if strconv.FormatUint(uint64(sess.UserID), 10) != claims.Subject {
		return nil, ErrNoSession
	}
	return sess, nil
}

// Destroy deletes the current session row (if any) and expires the cookie.
func (s *Sessions) Destroy(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.Resolve(r); err == nil {
		_ = s.store.Delete(r.Context(), sess.ID)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Purge drops expired rows; run periodically.
func (s *Sessions) Purge(ctx context.Context) (int64, error) {
	return s.store.PurgeExpired(ctx, s.now().UTC())
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
