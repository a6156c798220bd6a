package repo

import (
	"context"

	"gorm.io/gorm"

	"staffdesk/internal/models"
)

type DocumentStore struct{ db *gorm.DB }

func NewDocumentStore(db *gorm.DB) *DocumentStore { return &DocumentStore{db: db} }

type DocumentFilter struct {
	EmployeeID   uint
	DocumentType string
}

// Create assigns the next version for (employee, type) and inserts the row.
func (s *DocumentStore) Create(ctx context.Context, d *models.Document) error {
	c := conn(ctx, s.db)
	var maxVersion int
	if err := c.Model(&models.Document{}).
		Where("employee_id = ? AND document_type = ?", d.EmployeeID, d.DocumentType).
		Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
		return err
	}
	d.Version = maxVersion + 1
	return translate(c.Create(d).Error)
}

func (s *DocumentStore) Get(ctx context.Context, id uint) (*models.Document, error) {
	var d models.Document
	if err := conn(ctx, s.db).First(&d, id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *DocumentStore) List(ctx context.Context, f DocumentFilter) ([]models.Document, error) {
	q := conn(ctx, s.db).Order("upload_date desc, id desc")
	if f.EmployeeID != 0 {
		q = q.Where("employee_id = ?", f.EmployeeID)
	}
	if f.DocumentType != "" {
		q = q.Where("document_type = ?", f.DocumentType)
	}
	var out []models.Document
	return out, q.Find(&out).Error
}

func (s *DocumentStore) Delete(ctx context.Context, id uint) error {
	res := conn(ctx, s.db).Delete(&models.Document{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
