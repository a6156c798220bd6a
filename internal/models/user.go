package models

import "time"

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleHR          Role = "hr"
	RoleEmployee    Role = "employee"
	RoleProspective Role = "prospective_employee"
	RoleViewer      Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleHR, RoleEmployee, RoleProspective, RoleViewer:
		return true
	}
	return false
}

// Staff reports whether the role may manage other employees' records.
func (r Role) Staff() bool { return r == RoleAdmin || r == RoleHR }

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Username              string `gorm:"uniqueIndex;size:191;not null" json:"username"`
	PasswordHash          string `gorm:"size:255;not null" json:"-"`
	Role                  Role   `gorm:"size:32;not null;default:viewer" json:"role"`
	Email                 string `gorm:"index;size:255" json:"email"`
	RequirePasswordChange bool   `gorm:"not null;default:false" json:"requirePasswordChange"`
}

// Session is the server-side half of a login; the cookie only carries its signed id.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UserAgent string    `gorm:"size:255" json:"userAgent"`
}
