package repo

import (
	"context"

	"gorm.io/gorm"

	"staffdesk/internal/models"
)

type SubmissionStore struct{ db *gorm.DB }

func NewSubmissionStore(db *gorm.DB) *SubmissionStore { return &SubmissionStore{db: db} }

func (s *SubmissionStore) Create(ctx context.Context, f *models.FormSubmission) error {
	return translate(conn(ctx, s.db).Create(f).Error)
}

func (s *SubmissionStore) Save(ctx context.Context, f *models.FormSubmission) error {
	return translate(conn(ctx, s.db).Save(f).Error)
}

func (s *SubmissionStore) Get(ctx context.Context, id uint) (*models.FormSubmission, error) {
	var f models.FormSubmission
	if err := conn(ctx, s.db).First(&f, id).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (s *SubmissionStore) GetByExternalID(ctx context.Context, submissionID int64) (*models.FormSubmission, error) {
	var f models.FormSubmission
	if err := conn(ctx, s.db).Where("submission_id = ?", submissionID).First(&f).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (s *SubmissionStore) ListByEmployee(ctx context.Context, employeeID uint) ([]models.FormSubmission, error) {
	var out []models.FormSubmission
	err := conn(ctx, s.db).Where("employee_id = ?", employeeID).Order("created_at desc, id desc").Find(&out).Error
	return out, err
}

// ListOpen returns submissions that can still change state on the signing service.
func (s *SubmissionStore) ListOpen(ctx context.Context, limit int) ([]models.FormSubmission, error) {
	q := conn(ctx, s.db).
		Where("status IN ? AND submission_id <> 0", []models.SubmissionStatus{
			models.SubmissionPending, models.SubmissionSent, models.SubmissionOpened,
		}).
		Order("last_synced_at asc, id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.FormSubmission
	return out, q.Find(&out).Error
}

func (s *SubmissionStore) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var out []StatusCount
	err := conn(ctx, s.db).Model(&models.FormSubmission{}).
		Select("status as status, count(*) as count").
		Group("status").Order("status").Scan(&out).Error
	return out, err
}
