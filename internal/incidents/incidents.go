// Package incidents records workplace incidents per employee.
package incidents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

var ErrNotFound = errors.New("incidents: not found")

var severities = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

type Input struct {
	IncidentDate *string `json:"incidentDate"`
	IncidentType *string `json:"incidentType"`
	Severity     *string `json:"severity"`
	Description  *string `json:"description"`
	Resolution   *string `json:"resolution"`
}

func (in Input) apply(l *models.IncidentLog) error {
	if in.IncidentDate != nil {
		d, err := models.ParseDate(*in.IncidentDate)
		if err != nil {
			return models.NewFieldError("incidentDate", "%v", err)
		}
		if d == nil {
			return models.NewFieldError("incidentDate", "incident date is required")
		}
		l.IncidentDate = *d
	}
	if in.IncidentType != nil {
		l.IncidentType = strings.TrimSpace(*in.IncidentType)
	}
	if in.Severity != nil {
		l.Severity = strings.ToLower(strings.TrimSpace(*in.Severity))
	}
	if in.Description != nil {
		l.Description = strings.TrimSpace(*in.Description)
	}
	if in.Resolution != nil {
		l.Resolution = strings.TrimSpace(*in.Resolution)
	}
	switch {
	case l.IncidentDate.IsZero():
		return models.NewFieldError("incidentDate", "incident date is required")
	case l.IncidentType == "":
		return models.NewFieldError("incidentType", "incident type is required")
	case !severities[l.Severity]:
		return models.NewFieldError("severity", "severity must be low, medium, high or critical")
	case l.Description == "":
		return models.NewFieldError("description", "description is required")
	}
	return nil
}

type Service struct {
	store     *repo.IncidentStore
	employees *repo.EmployeeStore
	now       func() time.Time
}

func NewService(store *repo.IncidentStore, employees *repo.EmployeeStore) *Service {
	return &Service{store: store, employees: employees, now: time.Now}
}

func (s *Service) List(ctx context.Context, employeeID uint) ([]models.IncidentLog, error) {
	return s.store.ListByEmployee(ctx, employeeID)
}

func (s *Service) Create(ctx context.Context, employeeID uint, in Input, reportedBy uint) (*models.IncidentLog, error) {
	if _, err := s.employees.GetByID(ctx, employeeID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, models.NewFieldError("employeeId", "employee %d does not exist", employeeID)
		}
		return nil, err
	}
	l := &models.IncidentLog{EmployeeID: employeeID}
	if err := in.apply(l); err != nil {
		return nil, err
	}
	if l.IncidentDate.After(s.now()) {
		return nil, models.NewFieldError("incidentDate", "incident date is in the future")
	}
	if reportedBy != 0 {
		l.ReportedBy = &reportedBy
	}
	if err := s.store.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	return l, nil
}

func (s *Service) Update(ctx context.Context, id uint, in Input) (*models.IncidentLog, error) {
	l, err := s.store.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := in.apply(l); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, l); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}
	return l, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
