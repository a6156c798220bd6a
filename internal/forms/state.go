package forms

import "staffdesk/internal/models"

// rank orders the non-terminal statuses. Terminal statuses sit above all of them.
var rank = map[models.SubmissionStatus]int{
	models.SubmissionPending:   0,
	models.SubmissionSent:      1,
	models.SubmissionOpened:    2,
	models.SubmissionCompleted: 3,
	models.SubmissionDeclined:  4,
	models.SubmissionExpired:   4,
}

// Terminal reports whether no further transition is possible.
func Terminal(s models.SubmissionStatus) bool {
	return s == models.SubmissionCompleted || s == models.SubmissionDeclined || s == models.SubmissionExpired
}

// Event is a status observation. Authoritative events come from the signing
// service (poll, webhook, API response); the rest are local guesses.
type Event struct {
	Status        models.SubmissionStatus
	Authoritative bool
}

// State is a submission status as seen by one party: Confirmed is the last
// authoritative status, Status may run ahead of it optimistically.
type State struct {
	Confirmed models.SubmissionStatus `json:"confirmed"`
	Status    models.SubmissionStatus `json:"status"`
}

func Confirmed(s models.SubmissionStatus) State { return State{Confirmed: s, Status: s} }

func (s State) Optimistic() bool { return s.Status != s.Confirmed }

// Revert drops the optimistic part.
func (s State) Revert() State { return Confirmed(s.Confirmed) }

// Reduce is the only transition function for submission status.
//
// Confirmed status moves forward only and terminal statuses absorb. An
// authoritative event always replaces the optimistic overlay, even when
// the overlay was ahead of it. An optimistic event may only move Status
// forward and never into a terminal status.
func Reduce(s State, ev Event) State {
	if _, ok := rank[ev.Status]; !ok {
		return s
	}
	if s.Confirmed == "" {
		s.Confirmed = models.SubmissionPending
	}
	if s.Status == "" {
		s.Status = s.Confirmed
	}
	if ev.Authoritative {
		next := s.Confirmed
		if !Terminal(next) && rank[ev.Status] > rank[next] {
			next = ev.Status
		}
		return Confirmed(next)
	}
	if Terminal(s.Status) || Terminal(ev.Status) || rank[ev.Status] <= rank[s.Status] {
		return s
	}
	return State{Confirmed: s.Confirmed, Status: ev.Status}
}

// Advance applies an authoritative status to a stored status.
func Advance(cur, next models.SubmissionStatus) models.SubmissionStatus {
	return Reduce(Confirmed(cur), Event{Status: next, Authoritative: true}).Status
}

// CanCompleteHRSignature gates the HR countersignature action.
func CanCompleteHRSignature(f *models.FormSubmission) bool {
	return f.RequiresHRSignature && f.EmployeeSigned && !f.HRSigned && !Terminal(f.Status)
}
