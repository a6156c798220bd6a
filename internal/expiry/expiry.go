// Package expiry derives credential status and follow-up priority from an expiration date.
// Every screen and report goes through Derive so the day boundaries live in one place.
package expiry

import (
	"time"
)

type Status string

const (
	StatusActive       Status = "active"
	StatusExpiringSoon Status = "expiring_soon"
	StatusExpired      Status = "expired"
	StatusUnknown      Status = "unknown"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Thresholds are inclusive day counts measured from today.
type Thresholds struct {
	High         int // <= High days: high priority
	Medium       int // <= Medium days: medium priority
	ExpiringSoon int // <= ExpiringSoon days: status expiring_soon
}

func DefaultThresholds() Thresholds {
	return Thresholds{High: 15, Medium: 30, ExpiringSoon: 30}
}

// WithWindow returns a copy whose expiring-soon and medium boundaries use days.
func (t Thresholds) WithWindow(days int) Thresholds {
	if days <= 0 {
		return t
	}
	t.ExpiringSoon = days
	if days > t.Medium {
		t.Medium = days
	}
	return t
}

type Result struct {
	Status        Status   `json:"status"`
	Priority      Priority `json:"priority"`
	DaysRemaining int      `json:"daysRemaining"`
}

// DaysUntil counts whole calendar days (UTC) from now to exp; negative once past.
func DaysUntil(exp, now time.Time) int {
	return int(Day(exp).Sub(Day(now)).Hours() / 24)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func Derive(exp *time.Time, now time.Time, t Thresholds) Result {
	if exp == nil || exp.IsZero() {
		return Result{Status: StatusUnknown, Priority: PriorityLow}
	}
	days := DaysUntil(*exp, now)
	r := Result{DaysRemaining: days}
	switch {
	case days < 0:
		r.Status, r.Priority = StatusExpired, PriorityHigh
		return r
	case days <= t.High:
		r.Priority = PriorityHigh
	case days <= t.Medium:
		r.Priority = PriorityMedium
	default:
		r.Priority = PriorityLow
	}
	if days <= t.ExpiringSoon {
		r.Status = StatusExpiringSoon
	} else {
		r.Status = StatusActive
	}
	return r
}

// EffectiveStatus prefers an explicitly stored status and derives one otherwise.
func EffectiveStatus(explicit string, exp *time.Time, now time.Time, t Thresholds) string {
	if explicit != "" {
		return explicit
	}
	return string(Derive(exp, now, t).Status)
}
