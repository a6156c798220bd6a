// Package forms tracks DocuSeal form submissions sent to employees and keeps
// their status in step with the signing service.
package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staffdesk/internal/docuseal"
	"staffdesk/internal/logs"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

var (
	ErrNotFound         = errors.New("forms: submission not found")
	ErrClosed           = errors.New("forms: submission is closed")
	ErrHRSignNotAllowed = errors.New("forms: hr signature is not available for this submission")
	ErrNoSigner         = errors.New("forms: no signer with that role")
	ErrAlreadySigned    = errors.New("forms: signer already completed")
	ErrNotLinked        = errors.New("forms: submission has no docuseal id")
)

// API is the part of the DocuSeal client the service needs.
type API interface {
	ListTemplates(ctx context.Context) ([]docuseal.Template, error)
	GetTemplate(ctx context.Context, id int64) (*docuseal.Template, error)
	CreateSubmission(ctx context.Context, templateID int64, submitters []docuseal.NewSubmitter, sendEmail bool) (*docuseal.Submission, error)
	GetSubmission(ctx context.Context, id int64) (*docuseal.Submission, error)
	SendReminder(ctx context.Context, submitterID int64) error
}

type Options struct {
	// OnboardingTemplates are sent to every newly registered employee.
	OnboardingTemplates []int64
	// HREmail receives HR countersignature requests. When empty the sending user's email is used.
	HREmail string
}

type Service struct {
	store     *repo.SubmissionStore
	employees *repo.EmployeeStore
	api       API
	opts      Options
	now       func() time.Time
}

func NewService(store *repo.SubmissionStore, employees *repo.EmployeeStore, api API, opts Options) *Service {
	return &Service{store: store, employees: employees, api: api, opts: opts, now: time.Now}
}

func (s *Service) Templates(ctx context.Context) ([]docuseal.Template, error) {
	return s.api.ListTemplates(ctx)
}

func (s *Service) List(ctx context.Context, employeeID uint) ([]models.FormSubmission, error) {
	return s.store.ListByEmployee(ctx, employeeID)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.FormSubmission, error) {
	f, err := s.store.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return f, err
}

type SendInput struct {
	EmployeeID uint  `json:"employeeId"`
	TemplateID int64 `json:"templateId"`
	// HREmail is used for an HR signer role when no HR address is configured.
	HREmail string `json:"-"`
}

// Send creates a DocuSeal submission for the employee and records it as sent.
// Nothing is stored when DocuSeal rejects the request.
func (s *Service) Send(ctx context.Context, in SendInput) (*models.FormSubmission, error) {
	if in.TemplateID <= 0 {
		return nil, models.NewFieldError("templateId", "template id is required")
	}
	emp, err := s.employees.GetByID(ctx, in.EmployeeID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, models.NewFieldError("employeeId", "employee %d does not exist", in.EmployeeID)
	}
	if err != nil {
		return nil, err
	}
	email := emp.Email
	if email == "" && emp.WorkEmail != nil {
		email = *emp.WorkEmail
	}
	if email == "" {
		return nil, models.NewFieldError("employeeId", "employee has no email address to send the form to")
	}

	tpl, err := s.api.GetTemplate(ctx, in.TemplateID)
	if err != nil {
		return nil, err
	}
	hrEmail := s.opts.HREmail
	if hrEmail == "" {
		hrEmail = in.HREmail
	}
	roles := tpl.Submitters
	if len(roles) == 0 {
		roles = []docuseal.TemplateRole{{Name: "First Party"}}
	}
	subs := make([]docuseal.NewSubmitter, 0, len(roles))
	for _, r := range roles {
		if signerRole(r.Name) == models.SignerHR {
			if hrEmail == "" {
				return nil, models.NewFieldError("templateId", "template %q needs an HR signer but no HR email is configured", tpl.Name)
			}
			subs = append(subs, docuseal.NewSubmitter{Role: r.Name, Email: hrEmail})
			continue
		}
		subs = append(subs, docuseal.NewSubmitter{Role: r.Name, Email: email, Name: emp.FullName()})
	}

	ds, err := s.api.CreateSubmission(ctx, tpl.ID, subs, true)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	f := &models.FormSubmission{
		EmployeeID:   emp.ID,
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		SubmissionID: ds.ID,
		Status:       models.SubmissionPending,
	}
	apply(f, ds, now)
	f.Status = Advance(f.Status, models.SubmissionSent)
	stamp(f, now)
	if err := s.store.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("forms: record submission %d: %w", ds.ID, err)
	}
	logs.Logger.WithFields(map[string]any{"employee_id": emp.ID, "template_id": tpl.ID, "submission_id": ds.ID}).
		Info("form sent")
	return f, nil
}

// Refresh pulls the submission from DocuSeal and applies it. Terminal submissions are returned as stored.
func (s *Service) Refresh(ctx context.Context, id uint) (*models.FormSubmission, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if Terminal(f.Status) {
		return f, nil
	}
	if f.SubmissionID == 0 {
		return nil, ErrNotLinked
	}
	ds, err := s.api.GetSubmission(ctx, f.SubmissionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	apply(f, ds, now)
	stamp(f, now)
	if err := s.store.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// SigningURL returns the signing link for role and marks the signer opened.
// The submission is synced first so the signer and HR gates see current state.
func (s *Service) SigningURL(ctx context.Context, id uint, role string) (string, *models.FormSubmission, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if Terminal(f.Status) {
		return "", nil, ErrClosed
	}
	if f.SubmissionID == 0 {
		return "", nil, ErrNotLinked
	}
	ds, err := s.api.GetSubmission(ctx, f.SubmissionID)
	if err != nil {
		return "", nil, err
	}
	now := s.now().UTC()
	apply(f, ds, now)
	stamp(f, now)

	var gate error
	sg := f.SignerByRole(role)
	switch {
	case Terminal(f.Status):
		gate = ErrClosed
	case role == models.SignerHR && !CanCompleteHRSignature(f):
		gate = ErrHRSignNotAllowed
	case sg == nil:
		gate = ErrNoSigner
	case sg.Status == models.SubmissionCompleted:
		gate = ErrAlreadySigned
	}
	if gate != nil {
		if err := s.store.Save(ctx, f); err != nil {
			return "", nil, err
		}
		return "", nil, gate
	}

	link, err := docuseal.SigningURL(ds, sg.TemplateRole)
	if err != nil {
		return "", nil, err
	}
	sg.Status = Advance(sg.Status, models.SubmissionOpened)
	if sg.OpenedAt == nil {
		sg.OpenedAt = &now
	}
	f.Status = Advance(f.Status, models.SubmissionOpened)
	stamp(f, now)
	if err := s.store.Save(ctx, f); err != nil {
		return "", nil, err
	}
	return link, f, nil
}

// HRSign returns the HR countersignature link once the employee has signed.
func (s *Service) HRSign(ctx context.Context, id uint) (string, *models.FormSubmission, error) {
	return s.SigningURL(ctx, id, models.SignerHR)
}

// Remind re-sends the signing email to the signer holding role.
func (s *Service) Remind(ctx context.Context, id uint, role string) error {
	f, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if Terminal(f.Status) {
		return ErrClosed
	}
	if role == "" {
		role = models.SignerEmployee
	}
	sg := f.SignerByRole(role)
	if sg == nil {
		return ErrNoSigner
	}
	if sg.Status == models.SubmissionCompleted {
		return ErrAlreadySigned
	}
	return s.api.SendReminder(ctx, sg.SubmitterID)
}

// ApplyWebhook folds a DocuSeal event into the stored submission.
// Unknown event types are ignored.
func (s *Service) ApplyWebhook(ctx context.Context, ev *docuseal.WebhookEvent) (*models.FormSubmission, error) {
	extID := ev.SubmissionID()
	if extID == 0 {
		return nil, &docuseal.Error{Code: docuseal.CodeInvalidRequest, Message: "webhook does not reference a submission"}
	}
	f, err := s.store.GetByExternalID(ctx, extID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if Terminal(f.Status) {
		return f, nil
	}
	now := s.now().UTC()
	at := func(t *time.Time) *time.Time {
		if t != nil {
			return t
		}
		return &now
	}

	switch ev.EventType {
	case docuseal.EventFormViewed, docuseal.EventFormStarted:
		if sg := eventSigner(f, ev); sg != nil {
			sg.Status = Advance(sg.Status, models.SubmissionOpened)
			if sg.OpenedAt == nil {
				sg.OpenedAt = at(ev.Data.OpenedAt)
			}
		}
		f.Status = Advance(f.Status, models.SubmissionOpened)
	case docuseal.EventFormCompleted:
		if sg := eventSigner(f, ev); sg != nil {
			sg.Status = Advance(sg.Status, models.SubmissionCompleted)
			sg.CompletedAt = at(ev.Data.CompletedAt)
		}
		next := models.SubmissionOpened
		if allSigned(f) || (ev.Data.Submission != nil && ev.Data.Submission.Status == "completed") {
			next = models.SubmissionCompleted
		}
		f.Status = Advance(f.Status, next)
		if ev.Data.Submission != nil && ev.Data.Submission.CombinedDocumentURL != "" {
			f.DocumentURL = ev.Data.Submission.CombinedDocumentURL
		}
	case docuseal.EventFormDeclined:
		if sg := eventSigner(f, ev); sg != nil {
			sg.Status = Advance(sg.Status, models.SubmissionDeclined)
		}
		f.Status = Advance(f.Status, models.SubmissionDeclined)
	case docuseal.EventSubmissionExpired:
		f.Status = Advance(f.Status, models.SubmissionExpired)
	case docuseal.EventSubmissionComplete:
		for i := range f.Signers {
			f.Signers[i].Status = Advance(f.Signers[i].Status, models.SubmissionCompleted)
		}
		f.Status = Advance(f.Status, models.SubmissionCompleted)
	default:
		logs.Logger.WithField("event", ev.EventType).Debug("docuseal webhook ignored")
		return f, nil
	}
	flags(f)
	stamp(f, now)
	f.LastSyncedAt = &now
	if err := s.store.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Sync refreshes every submission that can still change. It returns how many were refreshed.
func (s *Service) Sync(ctx context.Context, limit int) (int, error) {
	open, err := s.store.ListOpen(ctx, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, f := range open {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.Refresh(ctx, f.ID); err != nil {
			errs = append(errs, fmt.Errorf("submission %d: %w", f.ID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// DispatchOnboarding sends each onboarding template to a newly registered employee.
func (s *Service) DispatchOnboarding(ctx context.Context, emp *models.Employee) error {
	var errs []error
	for _, t := range s.opts.OnboardingTemplates {
		if _, err := s.Send(ctx, SendInput{EmployeeID: emp.ID, TemplateID: t}); err != nil {
			errs = append(errs, fmt.Errorf("template %d: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

// apply copies DocuSeal's view of the submission onto f. Every status only moves forward.
func apply(f *models.FormSubmission, ds *docuseal.Submission, now time.Time) {
	signers := make([]models.Signer, 0, len(ds.Submitters))
	for _, sub := range ds.Submitters {
		sg := models.Signer{
			Role:         signerRole(sub.Role),
			TemplateRole: sub.Role,
			Name:         sub.Name,
			Email:        sub.Email,
			SubmitterID:  sub.ID,
			Status:       submitterStatus(sub.Status),
			SentAt:       sub.SentAt,
			OpenedAt:     sub.OpenedAt,
			CompletedAt:  sub.CompletedAt,
			EmbedSrc:     sub.EmbedSrc,
		}
		if old := f.SignerByRole(sg.Role); old != nil {
			sg.Status = Advance(old.Status, sg.Status)
			if sg.OpenedAt == nil {
				sg.OpenedAt = old.OpenedAt
			}
		}
		signers = append(signers, sg)
	}
	if len(signers) > 0 {
		f.Signers = signers
	}
	flags(f)
	f.Status = Advance(f.Status, gross(ds.Status, f.Signers))
	if ds.CompletedAt != nil && f.Status == models.SubmissionCompleted {
		f.CompletedAt = ds.CompletedAt
	}
	switch {
	case ds.CombinedDocumentURL != "":
		f.DocumentURL = ds.CombinedDocumentURL
	case len(ds.Documents) > 0 && ds.Documents[0].URL != "":
		f.DocumentURL = ds.Documents[0].URL
	}
	f.LastSyncedAt = &now
}

func gross(status string, signers []models.Signer) models.SubmissionStatus {
	switch status {
	case "completed":
		return models.SubmissionCompleted
	case "declined":
		return models.SubmissionDeclined
	case "expired":
		return models.SubmissionExpired
	}
	g := models.SubmissionPending
	done := len(signers) > 0
	for _, sg := range signers {
		if sg.Status == models.SubmissionDeclined {
			return models.SubmissionDeclined
		}
		if sg.Status != models.SubmissionCompleted {
			done = false
		}
		if rank[sg.Status] > rank[g] {
			g = sg.Status
		}
	}
	if done {
		return models.SubmissionCompleted
	}
	if g == models.SubmissionCompleted {
		// someone signed, someone has not
		return models.SubmissionOpened
	}
	return g
}

func flags(f *models.FormSubmission) {
	emp, hr := f.SignerByRole(models.SignerEmployee), f.SignerByRole(models.SignerHR)
	f.RequiresHRSignature = hr != nil
	f.EmployeeSigned = emp != nil && emp.Status == models.SubmissionCompleted
	f.HRSigned = hr != nil && hr.Status == models.SubmissionCompleted
}

// stamp fills the gross timestamps the first time a status is reached.
func stamp(f *models.FormSubmission, now time.Time) {
	r := rank[f.Status]
	if r >= rank[models.SubmissionSent] && f.SentAt == nil {
		f.SentAt = &now
	}
	if f.Status == models.SubmissionOpened || f.Status == models.SubmissionCompleted {
		if f.OpenedAt == nil {
			f.OpenedAt = &now
		}
	}
	if f.Status == models.SubmissionCompleted && f.CompletedAt == nil {
		f.CompletedAt = &now
	}
}

func allSigned(f *models.FormSubmission) bool {
	if len(f.Signers) == 0 {
		return false
	}
	for _, sg := range f.Signers {
		if sg.Status != models.SubmissionCompleted {
			return false
		}
	}
	return true
}

func eventSigner(f *models.FormSubmission, ev *docuseal.WebhookEvent) *models.Signer {
	if ev.Data.ID != 0 {
		for i := range f.Signers {
			if f.Signers[i].SubmitterID == ev.Data.ID {
				return &f.Signers[i]
			}
		}
	}
	if ev.Data.Role != "" {
		return f.SignerByRole(signerRole(ev.Data.Role))
	}
	return nil
}

// signerRole maps a template role name onto the employee/hr split.
func signerRole(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == "hr", strings.HasPrefix(n, "hr "), strings.Contains(n, "human resources"),
		n == "employer", n == "manager", n == "admin":
		return models.SignerHR
	}
	return models.SignerEmployee
}

func submitterStatus(s string) models.SubmissionStatus {
	switch s {
	case "sent":
		return models.SubmissionSent
	case "opened":
		return models.SubmissionOpened
	case "completed":
		return models.SubmissionCompleted
	case "declined":
		return models.SubmissionDeclined
	}
	return models.SubmissionPending
}
