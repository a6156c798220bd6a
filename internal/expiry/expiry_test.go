package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(now time.Time, offset int) *time.Time {
	t := now.AddDate(0, 0, offset)
	return &t
}

func TestDerive(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	th := DefaultThresholds()

	tests := []struct {
		name     string
		offset   int
		th       Thresholds
		status   Status
		priority Priority
	}{
		{"ten days out", 10, th, StatusExpiringSoon, PriorityHigh},
		{"high boundary", 15, th, StatusExpiringSoon, PriorityHigh},
		{"sixteen days", 16, th, StatusExpiringSoon, PriorityMedium},
		{"thirty day boundary", 30, th, StatusExpiringSoon, PriorityMedium},
		{"forty days, 30-day screen", 40, th, StatusActive, PriorityLow},
		{"forty days, 45-day screen", 40, th.WithWindow(45), StatusExpiringSoon, PriorityMedium},
		{"today", 0, th, StatusExpiringSoon, PriorityHigh},
		{"yesterday", -1, th, StatusExpired, PriorityHigh},
		{"far future", 400, th, StatusActive, PriorityLow},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Derive(day(now, tc.offset), now, tc.th)
			assert.Equal(t, tc.status, got.Status)
			assert.Equal(t, tc.priority, got.Priority)
			assert.Equal(t, tc.offset, got.DaysRemaining)
		})
	}
}

func TestDerive_NoDate(t *testing.T) {
	t.Parallel()
	got := Derive(nil, time.Now(), DefaultThresholds())
	assert.Equal(t, StatusUnknown, got.Status)
}

func TestEffectiveStatus_ExplicitWins(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	past := now.AddDate(0, 0, -3)

	assert.Equal(t, "suspended", EffectiveStatus("suspended", &past, now, DefaultThresholds()))
	assert.Equal(t, "expired", EffectiveStatus("", &past, now, DefaultThresholds()))
}

func TestDaysUntil_IgnoresTimeOfDay(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 23, 59, 0, 0, time.UTC)
	exp := time.Date(2026, 1, 2, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysUntil(exp, now))
}

func TestWithWindow_KeepsWiderMedium(t *testing.T) {
	t.Parallel()
	th := Thresholds{High: 15, Medium: 45, ExpiringSoon: 30}
	w := th.WithWindow(20)
	assert.Equal(t, 20, w.ExpiringSoon)
	assert.Equal(t, 45, w.Medium)
	assert.Equal(t, th, th.WithWindow(0))
}
