// Package reports builds the expiration and summary reports and their CSV exports.
package reports

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"staffdesk/internal/expiry"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

const (
	KindStateLicense = "state_license"
	KindDEALicense   = "dea_license"
	KindBoardCert    = "board_certification"
	KindDocument     = "document"
)

// Item is one expiring record in a report bucket.
type Item struct {
	Kind           string          `json:"kind"`
	ID             uint            `json:"id"`
	EmployeeID     uint            `json:"employeeId"`
	EmployeeName   string          `json:"employeeName"`
	Label          string          `json:"label"`
	Number         string          `json:"number,omitempty"`
	State          string          `json:"state,omitempty"`
	ExpirationDate *time.Time      `json:"expirationDate"`
	Status         string          `json:"status"`
	Priority       expiry.Priority `json:"priority"`
	DaysRemaining  int             `json:"daysRemaining"`
}

type Expiring struct {
	WindowDays   int    `json:"windowDays"`
	AsOf         string `json:"asOf"`
	Expired      []Item `json:"expired"`
	ExpiringSoon []Item `json:"expiringSoon"`
	Active       []Item `json:"active"`
}

type Summary struct {
	Employees    []repo.StatusCount `json:"employees"`
	Onboarding   []repo.StatusCount `json:"onboarding"`
	Forms        []repo.StatusCount `json:"forms"`
	PendingForms int64              `json:"pendingForms"`
	Expired      int                `json:"expired"`
	ExpiringSoon int                `json:"expiringSoon"`
}

type Stores struct {
	Employees   *repo.EmployeeStore
	State       *repo.LicenseStore[models.StateLicense]
	DEA         *repo.LicenseStore[models.DEALicense]
	Board       *repo.LicenseStore[models.BoardCertification]
	Documents   *repo.DocumentStore
	Incidents   *repo.IncidentStore
	Submissions *repo.SubmissionStore
}

type Service struct {
	st         Stores
	thresholds expiry.Thresholds
	now        func() time.Time
}

func NewService(st Stores, t expiry.Thresholds) *Service {
	return &Service{st: st, thresholds: t, now: time.Now}
}

// Label turns a stored key such as "tb_test" into "Tb Test".
func (s *Service) Label(key string) string {
	return cases.Title(language.AmericanEnglish).String(strings.ReplaceAll(strings.TrimSpace(key), "_", " "))
}

func (s *Service) employees(ctx context.Context) (map[uint]models.Employee, error) {
	list, _, err := s.st.Employees.List(ctx, repo.EmployeeFilter{})
	if err != nil {
		return nil, err
	}
	out := make(map[uint]models.Employee, len(list))
	for _, e := range list {
		out[e.ID] = e
	}
	return out, nil
}

func credentialItems[T any, P interface {
	*T
	models.Licensed
}](list []T, kind, label string, emps map[uint]models.Employee, now time.Time, t expiry.Thresholds) []Item {
	out := make([]Item, 0, len(list))
	for i := range list {
		p := P(&list[i])
		emp, ok := emps[p.Owner()]
		if !ok || emp.Status == models.EmployeeTerminated {
			continue
		}
		c := p.Cred()
		r := expiry.Derive(c.ExpirationDate, now, t)
		out = append(out, Item{
			Kind:           kind,
			ID:             p.Key(),
			EmployeeID:     p.Owner(),
			EmployeeName:   emp.FullName(),
			Label:          label,
			Number:         c.LicenseNumber,
			State:          c.State,
			ExpirationDate: c.ExpirationDate,
			Status:         expiry.EffectiveStatus(c.Status, c.ExpirationDate, now, t),
			Priority:       r.Priority,
			DaysRemaining:  r.DaysRemaining,
		})
	}
	return out
}

// items collects every dated credential and document of non-terminated employees.
func (s *Service) items(ctx context.Context, t expiry.Thresholds) ([]Item, error) {
	emps, err := s.employees(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	state, err := s.st.State.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	dea, err := s.st.DEA.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	board, err := s.st.Board.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.st.Documents.List(ctx, repo.DocumentFilter{})
	if err != nil {
		return nil, err
	}

	var out []Item
	out = append(out, credentialItems(state, KindStateLicense, "State License", emps, now, t)...)
	out = append(out, credentialItems(dea, KindDEALicense, "DEA License", emps, now, t)...)
	out = append(out, credentialItems(board, KindBoardCert, "Board Certification", emps, now, t)...)
	for _, d := range docs {
		emp, ok := emps[d.EmployeeID]
		if !ok || emp.Status == models.EmployeeTerminated || d.ExpirationDate == nil {
			continue
		}
		r := expiry.Derive(d.ExpirationDate, now, t)
		out = append(out, Item{
			Kind:           KindDocument,
			ID:             d.ID,
			EmployeeID:     d.EmployeeID,
			EmployeeName:   emp.FullName(),
			Label:          s.Label(d.DocumentType),
			Number:         d.FileName,
			ExpirationDate: d.ExpirationDate,
			Status:         string(r.Status),
			Priority:       r.Priority,
			DaysRemaining:  r.DaysRemaining,
		})
	}
	return out, nil
}

// Expiring buckets records by effective status for a window of days (0 means the configured default).
// Records with an explicit status other than active, expiring_soon or expired are left out.
func (s *Service) Expiring(ctx context.Context, days int) (*Expiring, error) {
	t := s.thresholds.WithWindow(days)
	all, err := s.items(ctx, t)
	if err != nil {
		return nil, err
	}
	rep := &Expiring{
		WindowDays:   t.ExpiringSoon,
		AsOf:         expiry.Day(s.now()).Format(models.DateLayout),
		Expired:      []Item{},
		ExpiringSoon: []Item{},
		Active:       []Item{},
	}
	for _, it := range all {
		switch expiry.Status(it.Status) {
		case expiry.StatusExpired:
			rep.Expired = append(rep.Expired, it)
		case expiry.StatusExpiringSoon:
			rep.ExpiringSoon = append(rep.ExpiringSoon, it)
		case expiry.StatusActive:
			rep.Active = append(rep.Active, it)
		}
	}
	for _, b := range [][]Item{rep.Expired, rep.ExpiringSoon, rep.Active} {
		sort.SliceStable(b, func(i, j int) bool { return b[i].DaysRemaining < b[j].DaysRemaining })
	}
	return rep, nil
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	var err error
	if sum.Employees, err = s.st.Employees.CountByStatus(ctx); err != nil {
		return nil, err
	}
	if sum.Onboarding, err = s.st.Employees.CountByOnboarding(ctx); err != nil {
		return nil, err
	}
	if sum.Forms, err = s.st.Submissions.CountByStatus(ctx); err != nil {
		return nil, err
	}
	for _, c := range sum.Forms {
		switch models.SubmissionStatus(c.Status) {
		case models.SubmissionPending, models.SubmissionSent, models.SubmissionOpened:
			sum.PendingForms += c.Count
		}
	}
	exp, err := s.Expiring(ctx, 0)
	if err != nil {
		return nil, err
	}
	sum.Expired, sum.ExpiringSoon = len(exp.Expired), len(exp.ExpiringSoon)
	return &sum, nil
}
