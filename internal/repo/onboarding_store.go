package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staffdesk/internal/models"
)

type OnboardingStore struct{ db *gorm.DB }

func NewOnboardingStore(db *gorm.DB) *OnboardingStore { return &OnboardingStore{db: db} }

// GetOrCreate loads the progress row of an employee, creating an empty one on first access.
func (s *OnboardingStore) GetOrCreate(ctx context.Context, employeeID uint) (*models.OnboardingProgress, error) {
	c := conn(ctx, s.db)
	var p models.OnboardingProgress
	err := c.Where("employee_id = ?", employeeID).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p = models.OnboardingProgress{EmployeeID: employeeID, Data: map[string]any{}}
	if err := c.Create(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *OnboardingStore) Save(ctx context.Context, p *models.OnboardingProgress) error {
	return translate(conn(ctx, s.db).Omit(clause.Associations).Save(p).Error)
}
