package repo

import (
	"context"

	"gorm.io/gorm"

	"staffdesk/internal/models"
)

// License is the set of credential row types sharing one table layout.
type License interface {
	models.StateLicense | models.DEALicense | models.BoardCertification
}

// LicenseStore is one store per credential table.
type LicenseStore[T License] struct{ db *gorm.DB }

func NewLicenseStore[T License](db *gorm.DB) *LicenseStore[T] { return &LicenseStore[T]{db: db} }

func (s *LicenseStore[T]) ListByEmployee(ctx context.Context, employeeID uint) ([]T, error) {
	var out []T
	err := conn(ctx, s.db).Where("employee_id = ?", employeeID).
		Order("expiration_date asc, id asc").Find(&out).Error
	return out, err
}

func (s *LicenseStore[T]) Get(ctx context.Context, id uint) (*T, error) {
	var v T
	if err := conn(ctx, s.db).First(&v, id).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (s *LicenseStore[T]) Create(ctx context.Context, v *T) error {
	return translate(conn(ctx, s.db).Create(v).Error)
}

func (s *LicenseStore[T]) Save(ctx context.Context, v *T) error {
	return translate(conn(ctx, s.db).Save(v).Error)
}

func (s *LicenseStore[T]) Delete(ctx context.Context, id uint) error {
	var v T
	res := conn(ctx, s.db).Delete(&v, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *LicenseStore[T]) ListAll(ctx context.Context) ([]T, error) {
	var out []T
	err := conn(ctx, s.db).Order("employee_id asc, expiration_date asc, id asc").Find(&out).Error
	return out, err
}
