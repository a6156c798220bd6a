package models

import "time"

type EmployeeStatus string

const (
	EmployeeActive     EmployeeStatus = "active"
	EmployeeInactive   EmployeeStatus = "inactive"
	EmployeeOnLeave    EmployeeStatus = "on_leave"
	EmployeePending    EmployeeStatus = "pending"
	EmployeeTerminated EmployeeStatus = "terminated"
)

func (s EmployeeStatus) Valid() bool {
	switch s {
	case EmployeeActive, EmployeeInactive, EmployeeOnLeave, EmployeePending, EmployeeTerminated:
		return true
	}
	return false
}

type OnboardingStatus string

const (
	OnboardingNotStarted OnboardingStatus = "not_started"
	OnboardingInProgress OnboardingStatus = "in_progress"
	OnboardingCompleted  OnboardingStatus = "completed"
)

// Employee is the aggregate root for licenses, documents, incidents and form submissions.
// SSN and the service passwords hold ciphertext produced by secrets.Cipher.
type Employee struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FirstName     string     `gorm:"size:100;not null" json:"firstName"`
	MiddleName    string     `gorm:"size:100" json:"middleName"`
	LastName      string     `gorm:"size:100;not null" json:"lastName"`
	Email         string     `gorm:"index;size:255" json:"email"`
	WorkEmail     *string    `gorm:"uniqueIndex;size:255" json:"workEmail"`
	Phone         string     `gorm:"size:32" json:"phone"`
	Address       string     `gorm:"size:255" json:"address"`
	City          string     `gorm:"size:100" json:"city"`
	State         string     `gorm:"size:32" json:"state"`
	ZipCode       string     `gorm:"size:16" json:"zipCode"`
	DateOfBirth   *time.Time `json:"dateOfBirth"`
	Gender        string     `gorm:"size:32" json:"gender"`
	JobTitle      string     `gorm:"size:100" json:"jobTitle"`
	Department    string     `gorm:"size:100" json:"department"`
	WorkLocation  string     `gorm:"size:100" json:"workLocation"`
	HireDate      *time.Time `json:"hireDate"`
	SSN           string     `gorm:"size:255" json:"-"`
	SSNMasked     string     `gorm:"-" json:"ssn,omitempty"`
	NPINumber     string     `gorm:"size:10;index" json:"npiNumber"`
	Enumeration   *time.Time `json:"enumerationDate"`
	MedicaidNo    string     `gorm:"size:64" json:"medicaidNumber"`
	MedicareNo    string     `gorm:"size:64" json:"medicareNumber"`
	CAQHID        string     `gorm:"size:64" json:"caqhProviderId"`
	CAQHLogin     string     `gorm:"size:100" json:"caqhLogin"`
	CAQHPassword  string     `gorm:"size:255" json:"-"`
	NPPESLogin    string     `gorm:"size:100" json:"nppesLogin"`
	NPPESPassword string     `gorm:"size:255" json:"-"`

	Status           EmployeeStatus   `gorm:"size:32;not null;default:active;index" json:"status"`
	OnboardingStatus OnboardingStatus `gorm:"size:32;not null;default:not_started" json:"onboardingStatus"`

	UserID       *uint `gorm:"index" json:"userId"`
	InvitationID *uint `gorm:"index" json:"invitationId"`

	StateLicenses       []StateLicense       `gorm:"constraint:OnDelete:CASCADE" json:"stateLicenses,omitempty"`
	DEALicenses         []DEALicense         `gorm:"constraint:OnDelete:CASCADE" json:"deaLicenses,omitempty"`
	BoardCertifications []BoardCertification `gorm:"constraint:OnDelete:CASCADE" json:"boardCertifications,omitempty"`
	Documents           []Document           `gorm:"constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	Incidents           []IncidentLog        `gorm:"constraint:OnDelete:CASCADE" json:"incidentLogs,omitempty"`
	Submissions         []FormSubmission     `gorm:"constraint:OnDelete:CASCADE" json:"formSubmissions,omitempty"`
}

func (e *Employee) FullName() string {
	if e.MiddleName != "" {
		return e.FirstName + " " + e.MiddleName + " " + e.LastName
	}
	return e.FirstName + " " + e.LastName
}
