// Package bootstrap creates the first administrator. There is no built-in
// default account: an admin comes from the setup-admin command or from the
// bootstrap.admin_* settings, and always has to rotate its password on first login.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"staffdesk/internal/auth"
	"staffdesk/internal/logs"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

var ErrUsersExist = errors.New("bootstrap: users already exist")

type Admin struct {
	Username string
	Password string
	Email    string
}

func (a *Admin) normalize() error {
	a.Username = strings.TrimSpace(a.Username)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	switch {
	case a.Username == "":
		return models.NewFieldError("username", "username is required")
	case len(a.Password) < auth.MinPasswordLen:
		return models.NewFieldError("password", "password must be at least %d characters", auth.MinPasswordLen)
	}
	if a.Email != "" {
		if _, err := mail.ParseAddress(a.Email); err != nil {
			return models.NewFieldError("email", "email is not a valid address")
		}
	}
	return nil
}

type Setup struct {
	users *repo.UserStore
	tx    *repo.Transactor
}

func New(users *repo.UserStore, tx *repo.Transactor) *Setup {
	return &Setup{users: users, tx: tx}
}

// CreateAdmin inserts the first admin. It refuses once any user exists.
func (s *Setup) CreateAdmin(ctx context.Context, a Admin) (*models.User, error) {
	if err := a.normalize(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(a.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Username:              a.Username,
		PasswordHash:          hash,
		Role:                  models.RoleAdmin,
		Email:                 a.Email,
		RequirePasswordChange: true,
	}
	err = s.tx.Within(ctx, func(ctx context.Context) error {
		n, err := s.users.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrUsersExist
		}
		return s.users.Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	logs.Component("bootstrap").WithField("username", u.Username).Info("initial admin created")
	return u, nil
}

// FromConfig creates the admin from configured credentials when both are set
// and the user table is empty. It reports whether an account was created.
func (s *Setup) FromConfig(ctx context.Context, a Admin) (bool, error) {
	if a.Username == "" || a.Password == "" {
		return false, nil
	}
	_, err := s.CreateAdmin(ctx, a)
	if errors.Is(err, ErrUsersExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bootstrap: configured admin: %w", err)
	}
	return true, nil
}

// Report describes the account state found at startup.
type Report struct {
	Users int64
	// Malformed lists admins whose stored hash can never match a password.
	Malformed []string
}

// Inspect counts users and flags admin hashes that do not parse. Nothing is rewritten.
func (s *Setup) Inspect(ctx context.Context) (*Report, error) {
	list, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	rep := &Report{Users: int64(len(list))}
	for _, u := range list {
		if u.Role == models.RoleAdmin && !auth.WellFormedHash(u.PasswordHash) {
			rep.Malformed = append(rep.Malformed, u.Username)
		}
	}
	return rep, nil
}

// Check runs Inspect and logs what an operator has to act on.
func (s *Setup) Check(ctx context.Context) error {
	rep, err := s.Inspect(ctx)
	if err != nil {
		return err
	}
	log := logs.Component("bootstrap")
	if rep.Users == 0 {
		log.Warn("no users exist; run `staffdesk setup-admin` to create the first administrator")
	}
	for _, name := range rep.Malformed {
		log.WithField("username", name).Error("admin password hash is malformed; reset it with setup-admin --reset")
	}
	return nil
}

// ResetPassword sets a new password for an existing admin and forces rotation.
// It is the only path that replaces a stored admin hash.
func (s *Setup) ResetPassword(ctx context.Context, a Admin) error {
	if err := a.normalize(); err != nil {
		return err
	}
	u, err := s.users.GetByUsername(ctx, a.Username)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("bootstrap: user %q not found", a.Username)
	}
	if err != nil {
		return err
	}
	if u.Role != models.RoleAdmin {
		return fmt.Errorf("bootstrap: user %q is not an admin", a.Username)
	}
	hash, err := auth.HashPassword(a.Password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash, true); err != nil {
		return err
	}
	logs.Component("bootstrap").WithField("username", u.Username).Warn("admin password reset")
	return nil
}
