package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staffdesk/internal/models"
)

type EmployeeStore struct{ db *gorm.DB }

func NewEmployeeStore(db *gorm.DB) *EmployeeStore { return &EmployeeStore{db: db} }

// EmployeeFilter narrows List. Zero values mean "any".
type EmployeeFilter struct {
	Status           models.EmployeeStatus
	OnboardingStatus models.OnboardingStatus
	Search           string
	Limit            int
	Offset           int
}

func (s *EmployeeStore) Create(ctx context.Context, e *models.Employee) error {
	return translate(conn(ctx, s.db).Omit(clause.Associations).Create(e).Error)
}

func (s *EmployeeStore) Save(ctx context.Context, e *models.Employee) error {
	return translate(conn(ctx, s.db).Omit(clause.Associations).Save(e).Error)
}

func (s *EmployeeStore) GetByID(ctx context.Context, id uint) (*models.Employee, error) {
	var e models.Employee
	if err := conn(ctx, s.db).First(&e, id).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

// GetDetail loads the employee with every owned collection.
func (s *EmployeeStore) GetDetail(ctx context.Context, id uint) (*models.Employee, error) {
	var e models.Employee
	err := conn(ctx, s.db).
		Preload("StateLicenses").
		Preload("DEALicenses").
		Preload("BoardCertifications").
		Preload("Documents").
		Preload("Incidents").
		Preload("Submissions").
		First(&e, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *EmployeeStore) GetByUserID(ctx context.Context, userID uint) (*models.Employee, error) {
	var e models.Employee
	if err := conn(ctx, s.db).Where("user_id = ?", userID).First(&e).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *EmployeeStore) FindByWorkEmail(ctx context.Context, email string) (*models.Employee, error) {
	var e models.Employee
	err := conn(ctx, s.db).Where("LOWER(work_email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&e).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *EmployeeStore) FindByEmail(ctx context.Context, email string) (*models.Employee, error) {
	var e models.Employee
	err := conn(ctx, s.db).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&e).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *EmployeeStore) List(ctx context.Context, f EmployeeFilter) ([]models.Employee, int64, error) {
	q := conn(ctx, s.db).Model(&models.Employee{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OnboardingStatus != "" {
		q = q.Where("onboarding_status = ?", f.OnboardingStatus)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR npi_number LIKE ?",
			like, like, like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var out []models.Employee
	if err := q.Order("last_name asc, first_name asc, id asc").Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

func (s *EmployeeStore) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var out []StatusCount
	err := conn(ctx, s.db).Model(&models.Employee{}).
		Select("status as status, count(*) as count").
		Group("status").Order("status").Scan(&out).Error
	return out, err
}

func (s *EmployeeStore) CountByOnboarding(ctx context.Context) ([]StatusCount, error) {
	var out []StatusCount
	err := conn(ctx, s.db).Model(&models.Employee{}).
		Select("onboarding_status as status, count(*) as count").
		Group("onboarding_status").Order("onboarding_status").Scan(&out).Error
	return out, err
}
