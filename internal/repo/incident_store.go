package repo

import (
	"context"

	"gorm.io/gorm"

	"staffdesk/internal/models"
)

type IncidentStore struct{ db *gorm.DB }

func NewIncidentStore(db *gorm.DB) *IncidentStore { return &IncidentStore{db: db} }

func (s *IncidentStore) Create(ctx context.Context, l *models.IncidentLog) error {
	return translate(conn(ctx, s.db).Create(l).Error)
}

func (s *IncidentStore) Save(ctx context.Context, l *models.IncidentLog) error {
	return translate(conn(ctx, s.db).Save(l).Error)
}

func (s *IncidentStore) Get(ctx context.Context, id uint) (*models.IncidentLog, error) {
	var l models.IncidentLog
	if err := conn(ctx, s.db).First(&l, id).Error; err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

func (s *IncidentStore) ListByEmployee(ctx context.Context, employeeID uint) ([]models.IncidentLog, error) {
	var out []models.IncidentLog
	err := conn(ctx, s.db).Where("employee_id = ?", employeeID).Order("incident_date desc, id desc").Find(&out).Error
	return out, err
}

func (s *IncidentStore) ListAll(ctx context.Context) ([]models.IncidentLog, error) {
	var out []models.IncidentLog
	err := conn(ctx, s.db).Order("incident_date desc, id desc").Find(&out).Error
	return out, err
}

func (s *IncidentStore) Delete(ctx context.Context, id uint) error {
	res := conn(ctx, s.db).Delete(&models.IncidentLog{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
