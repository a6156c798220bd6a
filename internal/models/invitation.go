package models

import "time"

type InvitationStatus string

const (
	InvitationPending    InvitationStatus = "pending"
	InvitationRegistered InvitationStatus = "registered"
	InvitationExpired    InvitationStatus = "expired"
)

// Invitation is a single-use token gating self-service registration.
type Invitation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Token        string           `gorm:"uniqueIndex;size:64;not null" json:"token"`
	Email        string           `gorm:"index;size:255;not null" json:"email"`
	FirstName    string           `gorm:"size:100" json:"firstName"`
	LastName     string           `gorm:"size:100" json:"lastName"`
	IntendedRole Role             `gorm:"size:32;not null" json:"intendedRole"`
	Status       InvitationStatus `gorm:"size:32;not null;default:pending;index" json:"status"`
	ExpiresAt    time.Time        `gorm:"not null" json:"expiresAt"`
	EmployeeID   *uint            `gorm:"index" json:"employeeId"`
	InvitedBy    *uint            `json:"invitedBy"`
	UserID       *uint            `json:"userId"`
	RegisteredAt *time.Time       `json:"registeredAt"`
}

// Redeemable reports whether the invitation can still be used to register at now.
func (i *Invitation) Redeemable(now time.Time) bool {
	return i.Status == InvitationPending && now.Before(i.ExpiresAt)
}
