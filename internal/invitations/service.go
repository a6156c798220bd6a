// Package invitations manages the single-use tokens that gate self-registration.
package invitations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"staffdesk/internal/logs"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

var (
	ErrNotFound   = errors.New("invitations: not found")
	ErrInvalid    = errors.New("invitations: invalid or expired invitation")
	ErrNotPending = errors.New("invitations: invitation is no longer pending")
	ErrRegistered = errors.New("invitations: invitation was already used")
)

const (
	DefaultExpiryDays = 7
	maxExpiryDays     = 90
	tokenBytes        = 32
)

type Service struct {
	invitations *repo.InvitationStore
	employees   *repo.EmployeeStore
	baseURL     string
	now         func() time.Time
}

func NewService(invitations *repo.InvitationStore, employees *repo.EmployeeStore, baseURL string) *Service {
	return &Service{invitations: invitations, employees: employees, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

type CreateInput struct {
	Email         string      `json:"email"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	IntendedRole  models.Role `json:"intendedRole"`
	EmployeeID    *uint       `json:"employeeId"`
	ExpiresInDays int         `json:"expiresInDays"`
}

func (in *CreateInput) normalize() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.IntendedRole == "" {
		in.IntendedRole = models.RoleProspective
	}
	if in.ExpiresInDays == 0 {
		in.ExpiresInDays = DefaultExpiryDays
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return models.NewFieldError("email", "a valid email is required")
	}
	if !in.IntendedRole.Valid() {
		return models.NewFieldError("intendedRole", "unknown role %q", in.IntendedRole)
	}
	if in.ExpiresInDays < 1 || in.ExpiresInDays > maxExpiryDays {
		return models.NewFieldError("expiresInDays", "must be between 1 and %d", maxExpiryDays)
	}
	return nil
}

// Create issues a pending invitation with a fresh token.
func (s *Service) Create(ctx context.Context, in CreateInput, invitedBy uint) (*models.Invitation, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if in.EmployeeID != nil {
		emp, err := s.employees.GetByID(ctx, *in.EmployeeID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, models.NewFieldError("employeeId", "employee %d does not exist", *in.EmployeeID)
		}
		if err != nil {
			return nil, err
		}
		if emp.UserID != nil {
			return nil, models.NewFieldError("employeeId", "employee already has an account")
		}
		if in.FirstName == "" {
			in.FirstName = emp.FirstName
		}
		if in.LastName == "" {
			in.LastName = emp.LastName
		}
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	inv := &models.Invitation{
		Token:        token,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IntendedRole: in.IntendedRole,
		Status:       models.InvitationPending,
		ExpiresAt:    s.now().UTC().AddDate(0, 0, in.ExpiresInDays),
		EmployeeID:   in.EmployeeID,
	}
	if invitedBy != 0 {
		inv.InvitedBy = &invitedBy
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	logs.Logger.WithFields(map[string]any{"invitation_id": inv.ID, "role": inv.IntendedRole}).Info("invitation created")
	return inv, nil
}

func (s *Service) List(ctx context.Context, status models.InvitationStatus) ([]models.Invitation, error) {
	return s.invitations.List(ctx, status)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Invitation, error) {
	inv, err := s.invitations.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return inv, err
}

// Validate returns the invitation behind token if it can still be redeemed.
func (s *Service) Validate(ctx context.Context, token string) (*models.Invitation, error) {
	inv, err := s.invitations.GetByToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalid
	}
	if err != nil {
		return nil, err
	}
	if !inv.Redeemable(s.now().UTC()) {
		return nil, ErrInvalid
	}
	return inv, nil
}

// Revoke expires a pending invitation immediately.
func (s *Service) Revoke(ctx context.Context, id uint) (*models.Invitation, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != models.InvitationPending {
		return nil, ErrNotPending
	}
	inv.Status = models.InvitationExpired
	inv.ExpiresAt = s.now().UTC()
	if err := s.invitations.Save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Resend rotates the token and pushes the expiry out. The old token stops working.
func (s *Service) Resend(ctx context.Context, id uint, days int) (*models.Invitation, error) {
	if days == 0 {
		days = DefaultExpiryDays
	}
	if days < 1 || days > maxExpiryDays {
		return nil, models.NewFieldError("expiresInDays", "must be between 1 and %d", maxExpiryDays)
	}
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvitationRegistered {
		return nil, ErrRegistered
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	inv.Token = token
	inv.Status = models.InvitationPending
	inv.ExpiresAt = s.now().UTC().AddDate(0, 0, days)
	if err := s.invitations.Save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ExpireStale marks overdue pending invitations expired; run periodically.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	return s.invitations.ExpireStale(ctx, s.now().UTC())
}

// Link is the registration URL handed to the invitee.
func (s *Service) Link(inv *models.Invitation) string {
	return s.baseURL + "/register/" + inv.Token
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("invitations: token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
