package models

import "time"

// Document content is immutable once stored; re-uploads create a new version row.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	EmployeeID uint      `gorm:"index:idx_doc_emp_type,priority:1;not null" json:"employeeId"`

	DocumentType   string     `gorm:"index:idx_doc_emp_type,priority:2;size:64;not null" json:"documentType"`
	FileName       string     `gorm:"size:255;not null" json:"fileName"`
	ContentType    string     `gorm:"size:128" json:"contentType"`
	Size           int64      `json:"size"`
	StorageKey     string     `gorm:"size:512;not null" json:"-"`
	Checksum       string     `gorm:"size:64" json:"checksum"`
	Version        int        `gorm:"not null;default:1" json:"version"`
	ExpirationDate *time.Time `gorm:"index" json:"expirationDate"`
	UploadDate     time.Time  `json:"uploadDate"`
	UploadedBy     *uint      `json:"uploadedBy"`
	Notes          string     `gorm:"size:1000" json:"notes"`
}
