package models

import "time"

type IncidentLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	EmployeeID uint      `gorm:"index;not null" json:"employeeId"`

	IncidentDate time.Time `gorm:"not null" json:"incidentDate"`
	IncidentType string    `gorm:"size:64;not null" json:"incidentType"`
	Severity     string    `gorm:"size:16;not null" json:"severity"`
	Description  string    `gorm:"size:4000;not null" json:"description"`
	Resolution   string    `gorm:"size:4000" json:"resolution"`
	ReportedBy   *uint     `json:"reportedBy"`
}
