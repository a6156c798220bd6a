// Package licenses serves state licenses, DEA registrations and board certifications.
// The three kinds share one generic implementation over repo.LicenseStore.
package licenses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staffdesk/internal/expiry"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

var ErrNotFound = errors.New("licenses: not found")

// Explicit statuses a user may store; empty means derive from the expiration date.
var explicitStatuses = map[string]bool{
	"": true, "active": true, "expiring_soon": true, "expired": true,
	"pending": true, "suspended": true, "revoked": true, "inactive": true,
}

// Input is the create/update body for every kind; fields that do not apply are ignored.
type Input struct {
	LicenseNumber  *string `json:"licenseNumber"`
	State          *string `json:"state"`
	IssueDate      *string `json:"issueDate"`
	ExpirationDate *string `json:"expirationDate"`
	Status         *string `json:"status"`
	Notes          *string `json:"notes"`
	LicenseType    *string `json:"licenseType"`
	Schedules      *string `json:"schedules"`
	BoardName      *string `json:"boardName"`
	Specialty      *string `json:"specialty"`
}

func (in Input) apply(c *models.Credential) error {
	if in.LicenseNumber != nil {
		c.LicenseNumber = strings.TrimSpace(*in.LicenseNumber)
	}
	if in.State != nil {
		c.State = strings.ToUpper(strings.TrimSpace(*in.State))
	}
	if in.Notes != nil {
		c.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.Status != nil {
		st := strings.ToLower(strings.TrimSpace(*in.Status))
		if !explicitStatuses[st] {
			return models.NewFieldError("status", "unknown status %q", st)
		}
		c.Status = st
	}
	var err error
	if in.IssueDate != nil {
		if c.IssueDate, err = models.ParseDate(*in.IssueDate); err != nil {
			return models.NewFieldError("issueDate", "%v", err)
		}
	}
	if in.ExpirationDate != nil {
		if c.ExpirationDate, err = models.ParseDate(*in.ExpirationDate); err != nil {
			return models.NewFieldError("expirationDate", "%v", err)
		}
	}
	if c.LicenseNumber == "" {
		return models.NewFieldError("licenseNumber", "license number is required")
	}
	if c.IssueDate != nil && c.ExpirationDate != nil && c.ExpirationDate.Before(*c.IssueDate) {
		return models.NewFieldError("expirationDate", "expiration date is before issue date")
	}
	return nil
}

func trimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// Deriver annotates credentials with their effective status at the current time.
type Deriver struct {
	Thresholds expiry.Thresholds
	Now        func() time.Time
}

func (d Deriver) Annotate(c *models.Credential) {
	r := expiry.Derive(c.ExpirationDate, d.Now(), d.Thresholds)
	c.EffectiveStatus = expiry.EffectiveStatus(c.Status, c.ExpirationDate, d.Now(), d.Thresholds)
	c.Priority = string(r.Priority)
	c.DaysRemaining = nil
	if c.ExpirationDate != nil {
		days := r.DaysRemaining
		c.DaysRemaining = &days
	}
}

// Kind is one credential table with its URL segment and kind-specific fields.
type Kind[T repo.License, P interface {
	*T
	models.Licensed
}] struct {
	Path      string
	Label     string
	store     *repo.LicenseStore[T]
	employees *repo.EmployeeStore
	deriver   Deriver
	extra     func(P, Input)
}

func (k *Kind[T, P]) List(ctx context.Context, employeeID uint) ([]T, error) {
	list, err := k.store.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		k.deriver.Annotate(P(&list[i]).Cred())
	}
	return list, nil
}

func (k *Kind[T, P]) Get(ctx context.Context, id uint) (P, error) {
	v, err := k.store.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := P(v)
	k.deriver.Annotate(p.Cred())
	return p, nil
}

func (k *Kind[T, P]) Create(ctx context.Context, employeeID uint, in Input) (P, error) {
	if _, err := k.employees.GetByID(ctx, employeeID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, models.NewFieldError("employeeId", "employee %d does not exist", employeeID)
		}
		return nil, err
	}
	p := P(new(T))
	p.SetOwner(employeeID)
	if err := in.apply(p.Cred()); err != nil {
		return nil, err
	}
	if k.extra != nil {
		k.extra(p, in)
	}
	if err := k.store.Create(ctx, (*T)(p)); err != nil {
		return nil, fmt.Errorf("create %s: %w", k.Label, err)
	}
	k.deriver.Annotate(p.Cred())
	return p, nil
}

func (k *Kind[T, P]) Update(ctx context.Context, id uint, in Input) (P, error) {
	p, err := k.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(p.Cred()); err != nil {
		return nil, err
	}
	if k.extra != nil {
		k.extra(p, in)
	}
	if err := k.store.Save(ctx, (*T)(p)); err != nil {
		return nil, fmt.Errorf("update %s: %w", k.Label, err)
	}
	k.deriver.Annotate(p.Cred())
	return p, nil
}

func (k *Kind[T, P]) Delete(ctx context.Context, id uint) error {
	err := k.store.Delete(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Service bundles the three credential kinds.
type Service struct {
	State *Kind[models.StateLicense, *models.StateLicense]
	DEA   *Kind[models.DEALicense, *models.DEALicense]
	Board *Kind[models.BoardCertification, *models.BoardCertification]
}

func NewService(
	state *repo.LicenseStore[models.StateLicense],
	dea *repo.LicenseStore[models.DEALicense],
	board *repo.LicenseStore[models.BoardCertification],
	employees *repo.EmployeeStore,
	d Deriver,
) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		State: &Kind[models.StateLicense, *models.StateLicense]{
			Path: "state-licenses", Label: "state license", store: state, employees: employees, deriver: d,
			extra: func(l *models.StateLicense, in Input) { trimmed(&l.LicenseType, in.LicenseType) },
		},
		DEA: &Kind[models.DEALicense, *models.DEALicense]{
			Path: "dea-licenses", Label: "DEA license", store: dea, employees: employees, deriver: d,
			extra: func(l *models.DEALicense, in Input) { trimmed(&l.Schedules, in.Schedules) },
		},
		Board: &Kind[models.BoardCertification, *models.BoardCertification]{
			Path: "board-certifications", Label: "board certification", store: board, employees: employees, deriver: d,
			extra: func(l *models.BoardCertification, in Input) {
				trimmed(&l.BoardName, in.BoardName)
				trimmed(&l.Specialty, in.Specialty)
			},
		},
	}
}
