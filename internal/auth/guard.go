package auth

import (
	"context"
	"errors"
	"net/http"

	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

var ErrForbidden = errors.New("auth: forbidden")

// Guard decides whether the current user may act on one employee's records.
// Admin and HR may do anything, viewers may read, and employees (including
// prospective ones mid-onboarding) may read and write only their own records.
type Guard struct {
	employees *repo.EmployeeStore
}

func NewGuard(employees *repo.EmployeeStore) *Guard { return &Guard{employees: employees} }

func (g *Guard) Check(ctx context.Context, employeeID uint, write bool) error {
	u, ok := UserFromContext(ctx)
	if !ok {
		return ErrForbidden
	}
	switch u.Role {
	case models.RoleAdmin, models.RoleHR:
		return nil
	case models.RoleViewer:
		if write {
			return ErrForbidden
		}
		return nil
	}
	e, err := g.employees.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if e.UserID == nil || *e.UserID != u.ID {
		return ErrForbidden
	}
	return nil
}

// Deny writes the response for a failed Check and reports whether it did.
func Deny(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrForbidden):
		models.WriteProblem(w, http.StatusForbidden, "Forbidden", "not allowed for this employee", nil)
	default:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "access check failed", nil)
	}
	return true
}
