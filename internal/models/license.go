package models

import "time"

// Credential holds the fields shared by every license-like record.
// Status is the explicit, user-set status; empty means "derive from ExpirationDate".
type Credential struct {
	LicenseNumber  string     `gorm:"size:100;not null" json:"licenseNumber"`
	State          string     `gorm:"size:32" json:"state"`
	IssueDate      *time.Time `json:"issueDate"`
	ExpirationDate *time.Time `gorm:"index" json:"expirationDate"`
	Status         string     `gorm:"size:32" json:"status"`
	Notes          string     `gorm:"size:1000" json:"notes"`

	// derived on read, never stored
	EffectiveStatus string `gorm:"-" json:"effectiveStatus"`
	Priority        string `gorm:"-" json:"priority,omitempty"`
	DaysRemaining   *int   `gorm:"-" json:"daysRemaining,omitempty"`
}

// Licensed is implemented by every credential row type.
type Licensed interface {
	Cred() *Credential
	Key() uint
	Owner() uint
	SetOwner(employeeID uint)
}

type StateLicense struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	EmployeeID uint      `gorm:"index;not null" json:"employeeId"`

	Credential  `gorm:"embedded"`
	LicenseType string `gorm:"size:64" json:"licenseType"`
}

type DEALicense struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	EmployeeID uint      `gorm:"index;not null" json:"employeeId"`

	Credential `gorm:"embedded"`
	Schedules  string `gorm:"size:64" json:"schedules"`
}

type BoardCertification struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	EmployeeID uint      `gorm:"index;not null" json:"employeeId"`

	Credential `gorm:"embedded"`
	BoardName  string `gorm:"size:255" json:"boardName"`
	Specialty  string `gorm:"size:255" json:"specialty"`
}

func (l *StateLicense) Cred() *Credential { return &l.Credential }
func (l *StateLicense) Key() uint { return l.ID }
func (l *StateLicense) Owner() uint { return l.EmployeeID }
func (l *StateLicense) SetOwner(employeeID uint) { l.EmployeeID = employeeID }

func (l *DEALicense) Cred() *Credential { return &l.Credential }
func (l *DEALicense) Key() uint { return l.ID }
func (l *DEALicense) Owner() uint { return l.EmployeeID }
func (l *DEALicense) SetOwner(employeeID uint) { l.EmployeeID = employeeID }

func (l *BoardCertification) Cred() *Credential { return &l.Credential }
func (l *BoardCertification) Key() uint { return l.ID }
func (l *BoardCertification) Owner() uint { return l.EmployeeID }
func (l *BoardCertification) SetOwner(employeeID uint) { l.EmployeeID = employeeID }
