package server

import (
	"context"
	"time"

	"gorm.io/gorm"

	"staffdesk/internal/forms"
	"staffdesk/internal/logs"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

// stores holds one gorm store per aggregate over a shared handle.
type stores struct {
	users       *repo.UserStore
	sessions    *repo.SessionStore
	employees   *repo.EmployeeStore
	invitations *repo.InvitationStore
	state       *repo.LicenseStore[models.StateLicense]
	dea         *repo.LicenseStore[models.DEALicense]
	board       *repo.LicenseStore[models.BoardCertification]
	documents   *repo.DocumentStore
	incidents   *repo.IncidentStore
	submissions *repo.SubmissionStore
	onboarding  *repo.OnboardingStore
	tx          *repo.Transactor
}

func newStores(d *gorm.DB) *stores {
	return &stores{
		users:       repo.NewUserStore(d),
		sessions:    repo.NewSessionStore(d),
		employees:   repo.NewEmployeeStore(d),
		invitations: repo.NewInvitationStore(d),
		state:       repo.NewLicenseStore[models.StateLicense](d),
		dea:         repo.NewLicenseStore[models.DEALicense](d),
		board:       repo.NewLicenseStore[models.BoardCertification](d),
		documents:   repo.NewDocumentStore(d),
		incidents:   repo.NewIncidentStore(d),
		submissions: repo.NewSubmissionStore(d),
		onboarding:  repo.NewOnboardingStore(d),
		tx:          repo.NewTransactor(d),
	}
}

// onboardingDispatcher sends the onboarding forms after registration,
// or does nothing when DocuSeal has no API key.
type onboardingDispatcher struct {
	forms      *forms.Service
	configured bool
}

func (d onboardingDispatcher) DispatchOnboarding(ctx context.Context, emp *models.Employee) error {
	if !d.configured {
		logs.Component("forms").WithField("employee_id", emp.ID).Debug("docuseal not configured; onboarding forms skipped")
		return nil
	}
	return d.forms.DispatchOnboarding(ctx, emp)
}

// job is a periodic maintenance task.
type job struct {
	name  string
	every time.Duration
	run   func(context.Context) (int64, error)
}

// loop runs j immediately and then every j.every until ctx ends. Failures are logged, never fatal.
func (j job) loop(ctx context.Context) error {
	log := logs.Component(j.name)
	t := time.NewTicker(j.every)
	defer t.Stop()
	for {
		n, err := j.run(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warnf("%s failed: %v", j.name, err)
		case n > 0:
			log.Infof("%s: %d rows", j.name, n)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
