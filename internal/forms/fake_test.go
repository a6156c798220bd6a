package forms

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"staffdesk/internal/auth"
	"staffdesk/internal/db/dbtest"
	"staffdesk/internal/docuseal"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

// fakeAPI is an in-memory DocuSeal.
type fakeAPI struct {
	mu        sync.Mutex
	templates map[int64]docuseal.Template
	subs      map[int64]*docuseal.Submission
	next      int64
	created   [][]docuseal.NewSubmitter
	reminders []int64
	gets      int
	err       error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		templates: map[int64]docuseal.Template{
			7: {ID: 7, Name: "I-9", Submitters: []docuseal.TemplateRole{{Name: "Employee"}, {Name: "HR"}}},
			8: {ID: 8, Name: "Handbook", Submitters: []docuseal.TemplateRole{{Name: "Employee"}}},
		},
		subs: map[int64]*docuseal.Submission{},
		next: 500,
	}
}

func (f *fakeAPI) ListTemplates(context.Context) ([]docuseal.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]docuseal.Template, 0, len(f.templates))
	for _, t := range f.templates {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeAPI) GetTemplate(_ context.Context, id int64) (*docuseal.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.templates[id]
	if !ok {
		return nil, &docuseal.Error{Code: docuseal.CodeTemplateNotFound, Status: 404, Message: "Not found"}
	}
	return &t, nil
}

func (f *fakeAPI) CreateSubmission(_ context.Context, templateID int64, subs []docuseal.NewSubmitter, _ bool) (*docuseal.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.next++
	s := &docuseal.Submission{ID: f.next, Status: "pending"}
	for i, n := range subs {
		status := "sent"
		if strings.EqualFold(n.Role, "HR") {
			status = "awaiting"
		}
		id := f.next*10 + int64(i)
		s.Submitters = append(s.Submitters, docuseal.Submitter{
			ID: id, SubmissionID: s.ID, Role: n.Role, Email: n.Email, Name: n.Name, Status: status,
			EmbedSrc: fmt.Sprintf("https://sign.test/s/%d", id),
		})
	}
	f.subs[s.ID] = s
	f.created = append(f.created, subs)
	return f.copy(s), nil
}

func (f *fakeAPI) GetSubmission(_ context.Context, id int64) (*docuseal.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.subs[id]
	if !ok {
		return nil, &docuseal.Error{Code: docuseal.CodeTemplateNotFound, Status: 404}
	}
	return f.copy(s), nil
}

func (f *fakeAPI) SendReminder(_ context.Context, submitterID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reminders = append(f.reminders, submitterID)
	return nil
}

func (f *fakeAPI) copy(s *docuseal.Submission) *docuseal.Submission {
	c := *s
	c.Submitters = append([]docuseal.Submitter(nil), s.Submitters...)
	return &c
}

// set changes what DocuSeal reports for one submitter role, or for the submission when role is empty.
func (f *fakeAPI) set(subID int64, role, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.subs[subID]
	if role == "" {
		s.Status = status
		return
	}
	for i := range s.Submitters {
		if s.Submitters[i].Role == role {
			s.Submitters[i].Status = status
		}
	}
}

func (f *fakeAPI) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type env struct {
	svc   *Service
	api   *fakeAPI
	store *repo.SubmissionStore
	emps  *repo.EmployeeStore
	guard *auth.Guard
	emp   *models.Employee
	now   time.Time
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	d := dbtest.Open(t)
	e := &env{
		api:   newFakeAPI(),
		store: repo.NewSubmissionStore(d),
		emps:  repo.NewEmployeeStore(d),
		now:   time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	e.guard = auth.NewGuard(e.emps)
	owner := uint(31)
	e.emp = &models.Employee{FirstName: "Rae", LastName: "Okafor", Email: "rae@example.com", UserID: &owner}
	require.NoError(t, e.emps.Create(context.Background(), e.emp))
	e.svc = NewService(e.store, e.emps, e.api, opts)
	e.svc.now = func() time.Time { return e.now }
	return e
}

func (e *env) send(t *testing.T, templateID int64) *models.FormSubmission {
	t.Helper()
	f, err := e.svc.Send(context.Background(), SendInput{EmployeeID: e.emp.ID, TemplateID: templateID, HREmail: "hr@clinic.test"})
	require.NoError(t, err)
	return f
}
