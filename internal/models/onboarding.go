package models

import (
	"time"

	"gorm.io/datatypes"
)

// OnboardingProgress persists the wizard position and per-step form data of one employee.
type OnboardingProgress struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	EmployeeID uint      `gorm:"uniqueIndex;not null" json:"employeeId"`
	Employee   Employee  `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CurrentStep    int                         `gorm:"not null;default:0" json:"currentStep"`
	CompletedSteps datatypes.JSONSlice[string] `json:"completedSteps"`
	Data           datatypes.JSONMap           `json:"data"`
	CompletedAt    *time.Time                  `json:"completedAt"`
}
