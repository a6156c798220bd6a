package models

import (
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionSent      SubmissionStatus = "sent"
	SubmissionOpened    SubmissionStatus = "opened"
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionDeclined  SubmissionStatus = "declined"
	SubmissionExpired   SubmissionStatus = "expired"
)

const (
	SignerEmployee = "employee"
	SignerHR       = "hr"
)

// Signer is the per-role state inside a multi-signer submission.
type Signer struct {
	Role         string           `json:"role"`
	TemplateRole string           `json:"templateRole"`
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	SubmitterID  int64            `json:"submitterId"`
	Status       SubmissionStatus `json:"status"`
	SentAt       *time.Time       `json:"sentAt,omitempty"`
	OpenedAt     *time.Time       `json:"openedAt,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	EmbedSrc     string           `json:"-"`
}

// FormSubmission mirrors one DocuSeal submission sent to an employee.
type FormSubmission struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	EmployeeID uint      `gorm:"index;not null" json:"employeeId"`

	TemplateID   int64            `gorm:"index;not null" json:"templateId"`
	TemplateName string           `gorm:"size:255" json:"templateName"`
	SubmissionID int64            `gorm:"index" json:"submissionId"`
	Status       SubmissionStatus `gorm:"size:16;not null;default:pending;index" json:"status"`

	Signers             datatypes.JSONSlice[Signer] `json:"signers"`
	EmployeeSigned      bool                        `json:"employeeSigned"`
	HRSigned            bool                        `json:"hrSigned"`
	RequiresHRSignature bool                        `json:"requiresHrSignature"`

	SentAt       *time.Time `json:"sentAt"`
	OpenedAt     *time.Time `json:"openedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
	DocumentURL  string     `gorm:"size:1024" json:"documentUrl"`
}

// SignerByRole returns a pointer into Signers, or nil.
func (f *FormSubmission) SignerByRole(role string) *Signer {
	for i := range f.Signers {
		if f.Signers[i].Role == role {
			return &f.Signers[i]
		}
	}
	return nil
}
