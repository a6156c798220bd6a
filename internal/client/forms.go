package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"staffdesk/internal/docuseal"
	"staffdesk/internal/forms"
	"staffdesk/internal/models"
)

// Submission is a form submission as served by the API. Status is the
// locally displayed status and may run ahead of the server's.
type Submission struct {
	models.FormSubmission
	CanCompleteHRSignature bool `json:"canCompleteHrSignature"`
}

// Forms tracks submission status per employee. Every status change goes
// through forms.Reduce so server confirmations and local guesses never regress.
type Forms struct {
	c *Client

	mu       sync.Mutex
	states   map[uint]formState
	watching map[uint]bool

	watchInterval time.Duration
	watchTicks    int
}

type formState struct {
	employeeID uint
	state      forms.State
}

func formsKey(employeeID uint) string { return fmt.Sprintf("forms:%d", employeeID) }

var errStillOpen = errors.New("submission still open")

// List returns the employee's submissions, serving the cached list when present.
func (f *Forms) List(ctx context.Context, employeeID uint) ([]Submission, error) {
	if v, ok := f.c.cache.Get(formsKey(employeeID)); ok {
		return clone(v.([]Submission))
	}
	return f.fetch(ctx, employeeID)
}

// fetch reads the list from the server and reconciles it with any optimistic status.
func (f *Forms) fetch(ctx context.Context, employeeID uint) ([]Submission, error) {
	var list []Submission
	if err := f.c.do(ctx, http.MethodGet, fmt.Sprintf("/employees/%d/forms", employeeID), nil, &list); err != nil {
		return nil, err
	}
	f.mu.Lock()
	for i := range list {
		list[i].Status = f.observe(&list[i].FormSubmission)
	}
	f.mu.Unlock()
	stored, err := clone(list)
	if err != nil {
		return nil, err
	}
	f.c.cache.Set(formsKey(employeeID), stored)
	return list, nil
}

// observe applies an authoritative status for s. Callers hold f.mu.
func (f *Forms) observe(s *models.FormSubmission) models.SubmissionStatus {
	st := f.states[s.ID]
	st.employeeID = s.EmployeeID
	st.state = forms.Reduce(st.state, forms.Event{Status: s.Status, Authoritative: true})
	f.states[s.ID] = st
	return st.state.Status
}

// State returns the tracked status of a submission.
func (f *Forms) State(id uint) (forms.State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[id]
	return st.state, ok
}

// patch rewrites one cached submission's status.
func (f *Forms) patch(employeeID, id uint, status models.SubmissionStatus) {
	f.c.cache.Update(formsKey(employeeID), func(v any) any {
		list := append([]Submission(nil), v.([]Submission)...)
		for i := range list {
			if list[i].ID == id {
				list[i].Status = status
			}
		}
		return list
	})
}

// Send creates a submission. A placeholder with status sent is shown in the
// cached list while the request is in flight and removed if it fails; on
// success the list is refetched.
func (f *Forms) Send(ctx context.Context, employeeID uint, templateID int64) (*Submission, error) {
	key := formsKey(employeeID)
	placeholder := Submission{FormSubmission: models.FormSubmission{
		EmployeeID: employeeID, TemplateID: templateID, Status: models.SubmissionSent,
	}}
	f.c.cache.Update(key, func(v any) any {
		return append(append([]Submission(nil), v.([]Submission)...), placeholder)
	})

	var out Submission
	err := f.c.do(ctx, http.MethodPost, "/forms/send",
		map[string]any{"employeeId": employeeID, "templateId": templateID}, &out)
	if err != nil {
		f.c.cache.Update(key, func(v any) any {
			list := v.([]Submission)
			kept := make([]Submission, 0, len(list))
			for _, s := range list {
				if s.ID != 0 || s.TemplateID != templateID {
					kept = append(kept, s)
				}
			}
			return kept
		})
		return nil, err
	}

	f.mu.Lock()
	out.Status = f.observe(&out.FormSubmission)
	f.mu.Unlock()
	f.c.mutated(SendForm, employeeID)
	if _, err := f.fetch(ctx, employeeID); err != nil {
		return &out, fmt.Errorf("client: reconcile forms: %w", err)
	}
	return &out, nil
}

// Signing is a signing link plus the watcher that follows the submission
// until it completes.
type Signing struct {
	URL        string
	Submission Submission
	done       chan struct{}
}

// Done is closed when the watcher stops.
func (s *Signing) Done() <-chan struct{} { return s.done }

// Sign fetches a signing link for role, marks the submission opened locally
// and watches it in the background until a terminal status, the tick budget
// or ctx ends the watch. A failed link request leaves the cached status alone.
func (f *Forms) Sign(ctx context.Context, s *Submission, role string) (*Signing, error) {
	var resp struct {
		URL        string     `json:"url"`
		Submission Submission `json:"submission"`
	}
	err := f.c.do(ctx, http.MethodPost, fmt.Sprintf("/forms/%d/signing-url", s.ID), map[string]string{"role": role}, &resp)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.observe(&resp.Submission.FormSubmission)
	st := f.states[s.ID]
	st.state = forms.Reduce(st.state, forms.Event{Status: models.SubmissionOpened})
	f.states[s.ID] = st
	status := st.state.Status
	start := !f.watching[s.ID] && !forms.Terminal(st.state.Confirmed)
	if start {
		f.watching[s.ID] = true
	}
	f.mu.Unlock()

	resp.Submission.Status = status
	f.patch(s.EmployeeID, s.ID, status)
	f.c.cache.Invalidate("reports:summary")

	sg := &Signing{URL: resp.URL, Submission: resp.Submission, done: make(chan struct{})}
	if !start {
		close(sg.done)
		return sg, nil
	}
	go func() {
		defer close(sg.done)
		defer func() {
			f.mu.Lock()
			delete(f.watching, s.ID)
			f.mu.Unlock()
		}()
		_ = f.watch(ctx, s.EmployeeID, s.ID)
	}()
	return sg, nil
}

// watch refreshes the submission once per watchInterval, watchTicks times at most.
// The first refresh comes one interval after the link was opened.
func (f *Forms) watch(ctx context.Context, employeeID, id uint) error {
	t := time.NewTimer(f.watchInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	_, err := backoff.Retry(ctx, func() (models.SubmissionStatus, error) {
		sub, err := f.Refresh(ctx, employeeID, id)
		if err != nil {
			var apiErr *Error
			if errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		if !forms.Terminal(sub.Status) {
			return sub.Status, errStillOpen
		}
		return sub.Status, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(f.watchInterval)),
		backoff.WithMaxTries(uint(f.watchTicks)),
	)
	return err
}

// Refresh asks the server to resync one submission and applies the result.
func (f *Forms) Refresh(ctx context.Context, employeeID, id uint) (*Submission, error) {
	var sub Submission
	if err := f.c.do(ctx, http.MethodPost, fmt.Sprintf("/forms/%d/refresh", id), nil, &sub); err != nil {
		return nil, err
	}
	f.mu.Lock()
	sub.Status = f.observe(&sub.FormSubmission)
	f.mu.Unlock()
	f.patch(employeeID, id, sub.Status)
	if forms.Terminal(sub.Status) {
		f.c.mutated(SignForm, employeeID)
	}
	return &sub, nil
}

// Templates lists DocuSeal templates available to staff.
func (f *Forms) Templates(ctx context.Context) ([]docuseal.Template, error) {
	return cached[[]docuseal.Template](ctx, f.c, "forms:templates", "/forms/templates")
}

func (f *Forms) Remind(ctx context.Context, id uint, role string) error {
	return f.c.do(ctx, http.MethodPost, fmt.Sprintf("/forms/%d/remind", id), map[string]string{"role": role}, nil)
}
