package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"staffdesk/internal/employees"
	"staffdesk/internal/incidents"
	"staffdesk/internal/licenses"
	"staffdesk/internal/models"
	"staffdesk/internal/onboarding"
	"staffdesk/internal/reports"
)

type EmployeeQuery struct {
	Status           models.EmployeeStatus
	OnboardingStatus models.OnboardingStatus
	Search           string
	Limit, Offset    int
}

func (q EmployeeQuery) values() url.Values {
	v := url.Values{}
	for k, s := range map[string]string{
		"status": string(q.Status), "onboardingStatus": string(q.OnboardingStatus), "search": q.Search,
	} {
		if s != "" {
			v.Set(k, s)
		}
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

func (c *Client) Employees(ctx context.Context, q EmployeeQuery) ([]models.Employee, error) {
	qs := q.values().Encode()
	return cached[[]models.Employee](ctx, c, "employees:"+qs, "/employees?"+qs)
}

func (c *Client) Employee(ctx context.Context, id uint) (*models.Employee, error) {
	return cached[*models.Employee](ctx, c, "employee:"+fmt.Sprint(id), fmt.Sprintf("/employees/%d", id))
}

func (c *Client) CreateEmployee(ctx context.Context, p employees.Patch) (*models.Employee, error) {
	var e models.Employee
	if err := c.do(ctx, http.MethodPost, "/employees", p, &e); err != nil {
		return nil, err
	}
	c.mutated(CreateEmployee, e.ID)
	return &e, nil
}

func (c *Client) UpdateEmployee(ctx context.Context, id uint, p employees.Patch) (*models.Employee, error) {
	var e models.Employee
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/employees/%d", id), p, &e); err != nil {
		return nil, err
	}
	c.mutated(UpdateEmployee, id)
	return &e, nil
}

// TerminateEmployee is the delete operation; the record stays with status terminated.
func (c *Client) TerminateEmployee(ctx context.Context, id uint) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/employees/%d", id), nil, nil); err != nil {
		return err
	}
	c.mutated(DeleteEmployee, id)
	return nil
}

// LicenseKind is the route segment of a credential collection.
type LicenseKind string

const (
	StateLicenses       LicenseKind = "state-licenses"
	DEALicenses         LicenseKind = "dea-licenses"
	BoardCertifications LicenseKind = "board-certifications"
)

// License is the union of the three credential shapes as served by the API.
type License struct {
	ID         uint `json:"id"`
	EmployeeID uint `json:"employeeId"`
	models.Credential
	LicenseType string `json:"licenseType,omitempty"`
	Schedules   string `json:"schedules,omitempty"`
	BoardName   string `json:"boardName,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
}

func licenseKey(kind LicenseKind, employeeID uint) string {
	return fmt.Sprintf("licenses:%d:%s", employeeID, kind)
}

func (c *Client) Licenses(ctx context.Context, kind LicenseKind, employeeID uint) ([]License, error) {
	return cached[[]License](ctx, c, licenseKey(kind, employeeID), fmt.Sprintf("/employees/%d/%s", employeeID, kind))
}

func (c *Client) CreateLicense(ctx context.Context, kind LicenseKind, employeeID uint, in licenses.Input) (*License, error) {
	var l License
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/employees/%d/%s", employeeID, kind), in, &l); err != nil {
		return nil, err
	}
	c.mutated(CreateLicense, employeeID)
	return &l, nil
}

func (c *Client) UpdateLicense(ctx context.Context, kind LicenseKind, l *License, in licenses.Input) (*License, error) {
	var out License
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/%s/%d", kind, l.ID), in, &out); err != nil {
		return nil, err
	}
	c.mutated(UpdateLicense, l.EmployeeID)
	return &out, nil
}

func (c *Client) DeleteLicense(ctx context.Context, kind LicenseKind, l *License) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/%s/%d", kind, l.ID), nil, nil); err != nil {
		return err
	}
	c.mutated(DeleteLicense, l.EmployeeID)
	return nil
}

func (c *Client) Documents(ctx context.Context, employeeID uint) ([]models.Document, error) {
	return cached[[]models.Document](ctx, c, "documents:"+fmt.Sprint(employeeID),
		fmt.Sprintf("/employees/%d/documents", employeeID))
}

type Upload struct {
	EmployeeID     uint
	DocumentType   string
	FileName       string
	Body           io.Reader
	ExpirationDate *time.Time
	Notes          string
}

func (c *Client) UploadDocument(ctx context.Context, up Upload) (*models.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"employeeId":   fmt.Sprint(up.EmployeeID),
		"documentType": up.DocumentType,
		"notes":        up.Notes,
	}
	if up.ExpirationDate != nil {
		fields["expirationDate"] = up.ExpirationDate.UTC().Format(models.DateLayout)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", up.FileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, up.Body); err != nil {
		return nil, fmt.Errorf("client: read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var d models.Document
	if err := decode(resp, &d); err != nil {
		return nil, err
	}
	c.mutated(UploadDocument, up.EmployeeID)
	return &d, nil
}

func (c *Client) DeleteDocument(ctx context.Context, d *models.Document) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/documents/%d", d.ID), nil, nil); err != nil {
		return err
	}
	c.mutated(DeleteDocument, d.EmployeeID)
	return nil
}

func (c *Client) Incidents(ctx context.Context, employeeID uint) ([]models.IncidentLog, error) {
	return cached[[]models.IncidentLog](ctx, c, "incidents:"+fmt.Sprint(employeeID),
		fmt.Sprintf("/employees/%d/incident-logs", employeeID))
}

func (c *Client) CreateIncident(ctx context.Context, employeeID uint, in incidents.Input) (*models.IncidentLog, error) {
	var l models.IncidentLog
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/employees/%d/incident-logs", employeeID), in, &l); err != nil {
		return nil, err
	}
	c.mutated(CreateIncident, employeeID)
	return &l, nil
}

func (c *Client) ExpiringReport(ctx context.Context, days int) (*reports.Expiring, error) {
	path := "/reports/expiring"
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	return cached[*reports.Expiring](ctx, c, "reports:expiring:"+strconv.Itoa(days), path)
}

func (c *Client) Summary(ctx context.Context) (*reports.Summary, error) {
	return cached[*reports.Summary](ctx, c, "reports:summary", "/reports/summary")
}

func (c *Client) Onboarding(ctx context.Context, employeeID uint) (*onboarding.View, error) {
	return cached[*onboarding.View](ctx, c, "onboarding:"+fmt.Sprint(employeeID), fmt.Sprintf("/onboarding/%d", employeeID))
}

func (c *Client) SaveOnboardingStep(ctx context.Context, employeeID uint, step string, data map[string]any) (*onboarding.View, error) {
	return c.onboardingCall(ctx, SaveOnboarding, employeeID, http.MethodPut, "/steps/"+url.PathEscape(step), data)
}

func (c *Client) NextOnboardingStep(ctx context.Context, employeeID uint) (*onboarding.View, error) {
	return c.onboardingCall(ctx, AdvanceOnboarding, employeeID, http.MethodPost, "/next", nil)
}

func (c *Client) GoToOnboardingStep(ctx context.Context, employeeID uint, step string) (*onboarding.View, error) {
	return c.onboardingCall(ctx, AdvanceOnboarding, employeeID, http.MethodPost, "/goto/"+url.PathEscape(step), nil)
}

func (c *Client) onboardingCall(ctx context.Context, m Mutation, employeeID uint, method, suffix string, body any) (*onboarding.View, error) {
	var v onboarding.View
	if err := c.do(ctx, method, fmt.Sprintf("/onboarding/%d%s", employeeID, suffix), body, &v); err != nil {
		return nil, err
	}
	c.mutated(m, employeeID)
	c.cache.Set("onboarding:"+fmt.Sprint(employeeID), &v)
	return &v, nil
}
