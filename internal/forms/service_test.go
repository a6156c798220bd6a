package forms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/internal/docuseal"
	"staffdesk/internal/models"
)

func TestSend_RecordsSentSubmission(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{HREmail: "hr@clinic.test"})

	f := e.send(t, 7)
	assert.Equal(t, models.SubmissionSent, f.Status)
	assert.Equal(t, "I-9", f.TemplateName)
	assert.True(t, f.RequiresHRSignature)
	assert.False(t, f.EmployeeSigned)
	require.NotNil(t, f.SentAt)
	assert.Equal(t, e.now, *f.SentAt)
	require.Len(t, f.Signers, 2)
	assert.Equal(t, models.SubmissionSent, f.SignerByRole(models.SignerEmployee).Status)
	assert.Equal(t, models.SubmissionPending, f.SignerByRole(models.SignerHR).Status)

	require.Len(t, e.api.created, 1)
	assert.Equal(t, "rae@example.com", e.api.created[0][0].Email)
	assert.Equal(t, "Rae Okafor", e.api.created[0][0].Name)
	assert.Equal(t, "hr@clinic.test", e.api.created[0][1].Email)
}

func TestSend_Failures(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	ctx := context.Background()

	_, err := e.svc.Send(ctx, SendInput{EmployeeID: e.emp.ID, TemplateID: 7})
	var fe *models.FieldError
	require.True(t, errors.As(err, &fe), "HR role without an HR address")
	assert.Equal(t, "templateId", fe.Field)

	_, err = e.svc.Send(ctx, SendInput{EmployeeID: e.emp.ID, TemplateID: 404})
	de, ok := docuseal.AsError(err)
	require.True(t, ok)
	assert.Equal(t, docuseal.CodeTemplateNotFound, de.Code)

	e.api.err = &docuseal.Error{Code: docuseal.CodeServiceUnavailable, Message: "down"}
	_, err = e.svc.Send(ctx, SendInput{EmployeeID: e.emp.ID, TemplateID: 8})
	require.Error(t, err)

	list, err := e.svc.List(ctx, e.emp.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "failed sends leave no record")
}

func TestRefresh_FollowsDocuSealMonotonically(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	ctx := context.Background()
	f := e.send(t, 7)

	e.api.set(f.SubmissionID, "Employee", "opened")
	got, err := e.svc.Refresh(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionOpened, got.Status)
	require.NotNil(t, got.OpenedAt)

	e.api.set(f.SubmissionID, "Employee", "sent")
	got, err = e.svc.Refresh(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionOpened, got.Status, "status never moves back")
	assert.Equal(t, models.SubmissionOpened, got.SignerByRole(models.SignerEmployee).Status)

	e.api.set(f.SubmissionID, "Employee", "completed")
	got, err = e.svc.Refresh(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionOpened, got.Status, "waiting on the HR countersignature")
	assert.True(t, got.EmployeeSigned)
	assert.True(t, CanCompleteHRSignature(got))

	e.api.set(f.SubmissionID, "HR", "completed")
	e.api.set(f.SubmissionID, "", "completed")
	got, err = e.svc.Refresh(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionCompleted, got.Status)
	assert.True(t, got.HRSigned)
	assert.False(t, CanCompleteHRSignature(got))
	require.NotNil(t, got.CompletedAt)

	calls := e.api.getCount()
	e.api.set(f.SubmissionID, "", "declined")
	got, err = e.svc.Refresh(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionCompleted, got.Status)
	assert.Equal(t, calls, e.api.getCount(), "terminal submissions are not fetched again")
}

func TestSigningURL(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	ctx := context.Background()
	f := e.send(t, 7)

	_, _, err := e.svc.HRSign(ctx, f.ID)
	assert.ErrorIs(t, err, ErrHRSignNotAllowed)

	link, got, err := e.svc.SigningURL(ctx, f.ID, models.SignerEmployee)
	require.NoError(t, err)
	assert.Contains(t, link, "https://sign.test/s/")
	assert.Equal(t, models.SubmissionOpened, got.Status)
	assert.Equal(t, models.SubmissionOpened, got.SignerByRole(models.SignerEmployee).Status)

	e.api.set(f.SubmissionID, "Employee", "completed")
	_, _, err = e.svc.SigningURL(ctx, f.ID, models.SignerEmployee)
	assert.ErrorIs(t, err, ErrAlreadySigned)

	hrLink, got, err := e.svc.HRSign(ctx, f.ID)
	require.NoError(t, err)
	assert.NotEqual(t, link, hrLink)
	assert.Equal(t, models.SubmissionOpened, got.SignerByRole(models.SignerHR).Status)

	single := e.send(t, 8)
	_, _, err = e.svc.HRSign(ctx, single.ID)
	assert.ErrorIs(t, err, ErrHRSignNotAllowed, "template has no HR signer")
}

func TestSigningURL_FailureLeavesStatus(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	ctx := context.Background()
	f := e.send(t, 8)

	e.api.err = &docuseal.Error{Code: docuseal.CodeServiceUnavailable, Message: "down"}
	_, _, err := e.svc.SigningURL(ctx, f.ID, models.SignerEmployee)
	require.Error(t, err)

	stored, err := e.svc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSent, stored.Status)
}

func TestApplyWebhook(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	ctx := context.Background()
	f := e.send(t, 7)
	empSigner := f.SignerByRole(models.SignerEmployee).SubmitterID

	got, err := e.svc.ApplyWebhook(ctx, &docuseal.WebhookEvent{
		EventType: docuseal.EventFormViewed,
		Data:      docuseal.WebhookData{ID: empSigner, SubmissionID: f.SubmissionID, Role: "Employee"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionOpened, got.Status)

	done := e.now.Add(-time.Minute)
	got, err = e.svc.ApplyWebhook(ctx, &docuseal.WebhookEvent{
		EventType: docuseal.EventFormCompleted,
		Data:      docuseal.WebhookData{ID: empSigner, SubmissionID: f.SubmissionID, CompletedAt: &done},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionOpened, got.Status)
	assert.True(t, got.EmployeeSigned)
	assert.Equal(t, done, *got.SignerByRole(models.SignerEmployee).CompletedAt)

	got, err = e.svc.ApplyWebhook(ctx, &docuseal.WebhookEvent{
		EventType: docuseal.EventSubmissionExpired,
		Data:      docuseal.WebhookData{ID: f.SubmissionID},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionExpired, got.Status)

	got, err = e.svc.ApplyWebhook(ctx, &docuseal.WebhookEvent{
		EventType: docuseal.EventFormCompleted,
		Data:      docuseal.WebhookData{SubmissionID: f.SubmissionID, Role: "HR"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionExpired, got.Status, "expired absorbs later events")

	_, err = e.svc.ApplyWebhook(ctx, &docuseal.WebhookEvent{EventType: docuseal.EventFormViewed, Data: docuseal.WebhookData{SubmissionID: 99999}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemind(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	ctx := context.Background()
	f := e.send(t, 8)

	require.NoError(t, e.svc.Remind(ctx, f.ID, ""))
	assert.Equal(t, []int64{f.SignerByRole(models.SignerEmployee).SubmitterID}, e.api.reminders)
	assert.ErrorIs(t, e.svc.Remind(ctx, f.ID, models.SignerHR), ErrNoSigner)

	e.api.set(f.SubmissionID, "Employee", "completed")
	_, err := e.svc.Refresh(ctx, f.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, e.svc.Remind(ctx, f.ID, ""), ErrClosed)
}

func TestDispatchOnboarding(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{OnboardingTemplates: []int64{8, 99}})

	err := e.svc.DispatchOnboarding(context.Background(), e.emp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template 99")

	list, err := e.svc.List(context.Background(), e.emp.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(8), list[0].TemplateID)
}

func TestSync(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	ctx := context.Background()
	a, b := e.send(t, 8), e.send(t, 8)
	e.api.set(a.SubmissionID, "Employee", "completed")
	e.api.set(b.SubmissionID, "Employee", "declined")

	n, err := e.svc.Sync(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	open, err := e.store.ListOpen(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, open)

	got, err := e.svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionDeclined, got.Status)
}
