package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"staffdesk/internal/expiry"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

// ExportTypes lists the accepted report types in a stable order.
var ExportTypes = []string{"employees", "licenses", "expiring", "documents", "incidents"}

func ValidExport(t string) bool { return slices.Contains(ExportTypes, t) }

// Filename is "<type>-<YYYY-MM-DD>.csv" for the current day.
func (s *Service) Filename(reportType string) string {
	return fmt.Sprintf("%s-%s.csv", reportType, expiry.Day(s.now()).Format(models.DateLayout))
}

// Export writes the report as CSV with a header row.
func (s *Service) Export(ctx context.Context, w io.Writer, reportType string, days int) error {
	var rows [][]string
	var err error
	switch reportType {
	case "employees":
		rows, err = s.employeeRows(ctx)
	case "licenses":
		rows, err = s.licenseRows(ctx)
	case "expiring":
		rows, err = s.expiringRows(ctx, days)
	case "documents":
		rows, err = s.documentRows(ctx)
	case "incidents":
		rows, err = s.incidentRows(ctx)
	default:
		return fmt.Errorf("reports: unknown report type %q", reportType)
	}
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("reports: write csv: %w", err)
	}
	return nil
}

// text normalizes free text and defuses spreadsheet formulas.
func text(v string) string {
	v = norm.NFC.String(strings.TrimSpace(v))
	if v != "" && strings.ContainsRune("=+-@", rune(v[0])) {
		return "'" + v
	}
	return v
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(models.DateLayout)
}

func id(v uint) string { return strconv.FormatUint(uint64(v), 10) }

func (s *Service) employeeRows(ctx context.Context) ([][]string, error) {
	list, _, err := s.st.Employees.List(ctx, repo.EmployeeFilter{})
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"ID", "First Name", "Last Name", "Email", "Work Email", "Phone", "Job Title",
		"Department", "Location", "Status", "Onboarding Status", "Hire Date", "NPI"}}
	for _, e := range list {
		work := ""
		if e.WorkEmail != nil {
			work = *e.WorkEmail
		}
		rows = append(rows, []string{
			id(e.ID), text(e.FirstName), text(e.LastName), text(e.Email), text(work), text(e.Phone),
			text(e.JobTitle), text(e.Department), text(e.WorkLocation), s.Label(string(e.Status)),
			s.Label(string(e.OnboardingStatus)), date(e.HireDate), e.NPINumber,
		})
	}
	return rows, nil
}

func (s *Service) licenseRows(ctx context.Context) ([][]string, error) {
	all, err := s.items(ctx, s.thresholds)
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"Employee ID", "Employee", "Type", "License Number", "State", "Expiration Date",
		"Status", "Days Remaining"}}
	for _, it := range all {
		if it.Kind == KindDocument {
			continue
		}
		rows = append(rows, []string{
			id(it.EmployeeID), text(it.EmployeeName), it.Label, text(it.Number), it.State,
			date(it.ExpirationDate), s.Label(it.Status), days(it),
		})
	}
	return rows, nil
}

func days(it Item) string {
	if it.ExpirationDate == nil {
		return ""
	}
	return strconv.Itoa(it.DaysRemaining)
}

func (s *Service) expiringRows(ctx context.Context, window int) ([][]string, error) {
	rep, err := s.Expiring(ctx, window)
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"Bucket", "Kind", "Employee ID", "Employee", "Item", "Number", "Expiration Date",
		"Days Remaining", "Priority"}}
	for _, b := range []struct {
		name  string
		items []Item
	}{{"Expired", rep.Expired}, {"Expiring Soon", rep.ExpiringSoon}} {
		for _, it := range b.items {
			rows = append(rows, []string{
				b.name, s.Label(it.Kind), id(it.EmployeeID), text(it.EmployeeName), it.Label, text(it.Number),
				date(it.ExpirationDate), days(it), s.Label(string(it.Priority)),
			})
		}
	}
	return rows, nil
}

func (s *Service) documentRows(ctx context.Context) ([][]string, error) {
	emps, err := s.employees(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.st.Documents.List(ctx, repo.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"Document ID", "Employee ID", "Employee", "Document Type", "File Name", "Version",
		"Upload Date", "Expiration Date", "Status"}}
	for _, d := range docs {
		status := ""
		if d.ExpirationDate != nil {
			status = s.Label(string(expiry.Derive(d.ExpirationDate, s.now(), s.thresholds).Status))
		}
		emp := emps[d.EmployeeID]
		rows = append(rows, []string{
			id(d.ID), id(d.EmployeeID), text(emp.FullName()), s.Label(d.DocumentType), text(d.FileName),
			strconv.Itoa(d.Version), date(&d.UploadDate), date(d.ExpirationDate), status,
		})
	}
	return rows, nil
}

func (s *Service) incidentRows(ctx context.Context) ([][]string, error) {
	emps, err := s.employees(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.st.Incidents.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"Incident ID", "Employee ID", "Employee", "Date", "Type", "Severity", "Description", "Resolution"}}
	for _, l := range list {
		emp := emps[l.EmployeeID]
		rows = append(rows, []string{
			id(l.ID), id(l.EmployeeID), text(emp.FullName()), date(&l.IncidentDate), s.Label(l.IncidentType),
			s.Label(l.Severity), text(l.Description), text(l.Resolution),
		})
	}
	return rows, nil
}
