package auth

import (
	"context"
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
	ErrInvalidInvitation  = errors.New("auth: invalid or expired invitation")
	ErrInvalidCredentials = errors.New("auth: invalid username or password")
	ErrAlreadyLinked      = errors.New("auth: employee is already linked to another user")
)

// MinPasswordLen applies to every password set through the API or the CLI.
const MinPasswordLen = 8

// FormDispatcher sends the onboarding e-signature forms for a freshly registered employee.
type FormDispatcher interface {
	DispatchOnboarding(ctx context.Context, emp *models.Employee) error
}

type Service struct {
	users       *repo.UserStore
	employees   *repo.EmployeeStore
	invitations *repo.InvitationStore
	tx          *repo.Transactor
	forms       FormDispatcher
	now         func() time.Time
}

func NewService(users *repo.UserStore, employees *repo.EmployeeStore, invitations *repo.InvitationStore,
	tx *repo.Transactor, forms FormDispatcher) *Service {
	return &Service{users: users, employees: employees, invitations: invitations, tx: tx, forms: forms, now: time.Now}
}

type RegisterInput struct {
	Token     string  `json:"token"`
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	WorkEmail *string `json:"workEmail"`
}

func (in *RegisterInput) normalize() error {
	in.Token = strings.TrimSpace(in.Token)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.WorkEmail != nil {
		we := strings.ToLower(strings.TrimSpace(*in.WorkEmail))
		if we == "" {
			in.WorkEmail = nil
		} else {
			in.WorkEmail = &we
		}
	}
	switch {
	case in.Token == "":
		return models.NewFieldError("token", "invitation token is required")
	case len(in.Username) < 3:
		return models.NewFieldError("username", "username must be at least 3 characters")
	case len(in.Password) < MinPasswordLen:
		return models.NewFieldError("password", "password must be at least %d characters", MinPasswordLen)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return models.NewFieldError("email", "a valid email is required")
	}
	if in.WorkEmail != nil {
		if _, err := mail.ParseAddress(*in.WorkEmail); err != nil {
			return models.NewFieldError("workEmail", "work email is not a valid address")
		}
	}
	return nil
}

// Register redeems an invitation. User creation, employee linking and the
// invitation transition commit together or not at all.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, *models.Employee, error) {
	if err := in.normalize(); err != nil {
		return nil, nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	var (
		user *models.User
		emp  *models.Employee
	)
	err = s.tx.Within(ctx, func(ctx context.Context) error {
		now := s.now().UTC()
		inv, err := s.invitations.GetByToken(ctx, in.Token)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidInvitation
		}
		if err != nil {
			return err
		}
		if !inv.Redeemable(now) {
			return ErrInvalidInvitation
		}

		if err := s.checkDuplicates(ctx, in, inv); err != nil {
			return err
		}

		role := inv.IntendedRole
		if !role.Valid() {
			role = models.RoleProspective
		}
		user = &models.User{Username: in.Username, PasswordHash: hash, Role: role, Email: in.Email}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return models.NewFieldError("username", "username already exists")
			}
			return fmt.Errorf("create user: %w", err)
		}

		emp, err = s.linkEmployee(ctx, in, inv, user)
		if err != nil {
			return err
		}

		if err := s.invitations.MarkRegistered(ctx, inv.ID, user.ID, now); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ErrInvalidInvitation
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.forms != nil {
		if derr := s.forms.DispatchOnboarding(ctx, emp); derr != nil {
			logs.Logger.WithFields(map[string]any{"employee_id": emp.ID, "user_id": user.ID}).
				Warnf("onboarding forms not dispatched: %v", derr)
		}
	}
	return user, emp, nil
}

func (s *Service) checkDuplicates(ctx context.Context, in RegisterInput, inv *models.Invitation) error {
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return models.NewFieldError("username", "username already exists")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return models.NewFieldError("email", "an account with this email already exists")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if in.WorkEmail != nil {
		existing, err := s.employees.FindByWorkEmail(ctx, *in.WorkEmail)
		switch {
		case err == nil && (inv.EmployeeID == nil || existing.ID != *inv.EmployeeID):
			return models.NewFieldError("workEmail", "work email is already used by another employee")
		case err != nil && !errors.Is(err, repo.ErrNotFound):
			return err
		}
	}
	return nil
}

func (s *Service) linkEmployee(ctx context.Context, in RegisterInput, inv *models.Invitation, user *models.User) (*models.Employee, error) {
	invID := inv.ID
	if inv.EmployeeID != nil {
		emp, err := s.employees.GetByID(ctx, *inv.EmployeeID)
		if err != nil {
			return nil, fmt.Errorf("load invited employee: %w", err)
		}
		if emp.UserID != nil && *emp.UserID != user.ID {
			return nil, ErrAlreadyLinked
		}
		emp.UserID = &user.ID
		emp.InvitationID = &invID
		if emp.OnboardingStatus != models.OnboardingCompleted {
			emp.OnboardingStatus = models.OnboardingInProgress
		}
		if in.WorkEmail != nil {
			emp.WorkEmail = in.WorkEmail
		}
		if err := s.employees.Save(ctx, emp); err != nil {
			return nil, s.employeeErr(err)
		}
		return emp, nil
	}

	emp := &models.Employee{
		FirstName:        firstNonEmpty(in.FirstName, inv.FirstName),
		LastName:         firstNonEmpty(in.LastName, inv.LastName),
		Email:            in.Email,
		WorkEmail:        in.WorkEmail,
		Status:           models.EmployeePending,
		OnboardingStatus: models.OnboardingInProgress,
		UserID:           &user.ID,
		InvitationID:     &invID,
	}
	if emp.FirstName == "" || emp.LastName == "" {
		return nil, models.NewFieldError("firstName", "first and last name are required")
	}
	if err := s.employees.Create(ctx, emp); err != nil {
		return nil, s.employeeErr(err)
	}
	return emp, nil
}

func (s *Service) employeeErr(err error) error {
	if errors.Is(err, repo.ErrDuplicate) {
		return models.NewFieldError("workEmail", "work email is already used by another employee")
	}
	return fmt.Errorf("link employee: %w", err)
}

// Login verifies credentials. Unknown users and bad passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		// burn comparable time so user enumeration by timing is harder
		ComparePasswords(password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !ComparePasswords(password, u.PasswordHash) {
		if !WellFormedHash(u.PasswordHash) {
			logs.Logger.WithField("user_id", u.ID).Error("stored password hash is malformed; reset it with setup-admin --reset")
		}
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword checks the current password, stores the new one and clears the forced-rotation flag.
func (s *Service) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !ComparePasswords(current, u.PasswordHash) {
		return models.NewFieldError("currentPassword", "current password is incorrect")
	}
	if len(next) < MinPasswordLen {
		return models.NewFieldError("newPassword", "password must be at least %d characters", MinPasswordLen)
	}
	if next == current {
		return models.NewFieldError("newPassword", "new password must differ from the current one")
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash, false)
}

// EmployeeFor returns the employee linked to a user, if any.
func (s *Service) EmployeeFor(ctx context.Context, userID uint) (*models.Employee, error) {
	e, err := s.employees.GetByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var dummyHash = func() string {
	h, err := HashPassword("staffdesk-dummy")
	if err != nil {
		panic(err)
	}
	return h
}()
