package onboarding

import (
	"context"
	"fmt"

	"staffdesk/internal/employees"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

// Validator decides whether a step may be left. It sees the stored employee
// and the data saved for the step.
type Validator func(ctx context.Context, emp *models.Employee, data map[string]any) (bool, []models.FieldError)

type Step struct {
	Key   string
	Title string
	// Profile steps write their data onto the employee record when saved.
	Profile  bool
	Validate Validator
}

// Records gives the step validators read access to an employee's records.
type Records struct {
	State       *repo.LicenseStore[models.StateLicense]
	DEA         *repo.LicenseStore[models.DEALicense]
	Board       *repo.LicenseStore[models.BoardCertification]
	Documents   *repo.DocumentStore
	Submissions *repo.SubmissionStore
}

// DefaultSteps is the onboarding sequence for clinical staff.
func DefaultSteps(r Records) []Step {
	return []Step{
		{Key: "personal", Title: "Personal information", Profile: true, Validate: personal},
		{Key: "contact", Title: "Contact details", Profile: true, Validate: contact},
		{Key: "credentials", Title: "Provider credentials", Profile: true, Validate: credentials},
		{Key: "licenses", Title: "Licenses and certifications", Validate: r.licenses},
		{Key: "documents", Title: "Documents", Validate: r.documents},
		{Key: "forms", Title: "Forms to sign", Validate: r.forms},
		{Key: "review", Title: "Review and submit", Validate: review},
	}
}

// missing takes (field, value, message) triples and reports the empty values.
func missing(pairs ...string) []models.FieldError {
	var out []models.FieldError
	for i := 0; i+2 < len(pairs); i += 3 {
		if pairs[i+1] == "" {
			out = append(out, models.FieldError{Field: pairs[i], Message: pairs[i+2]})
		}
	}
	return out
}

func result(fes []models.FieldError) (bool, []models.FieldError) { return len(fes) == 0, fes }

func personal(_ context.Context, e *models.Employee, _ map[string]any) (bool, []models.FieldError) {
	fes := missing(
		"firstName", e.FirstName, "first name is required",
		"lastName", e.LastName, "last name is required",
		"ssn", e.SSN, "social security number is required",
	)
	if e.DateOfBirth == nil {
		fes = append(fes, models.FieldError{Field: "dateOfBirth", Message: "date of birth is required"})
	}
	return result(fes)
}

func contact(_ context.Context, e *models.Employee, _ map[string]any) (bool, []models.FieldError) {
	return result(missing(
		"email", e.Email, "email is required",
		"phone", e.Phone, "phone is required",
		"address", e.Address, "address is required",
		"city", e.City, "city is required",
		"state", e.State, "state is required",
		"zipCode", e.ZipCode, "zip code is required",
	))
}

func credentials(_ context.Context, e *models.Employee, _ map[string]any) (bool, []models.FieldError) {
	if !employees.ValidNPI(e.NPINumber) {
		return false, []models.FieldError{{Field: "npiNumber", Message: "a 10 digit NPI number is required"}}
	}
	return true, nil
}

func (r Records) licenses(ctx context.Context, e *models.Employee, _ map[string]any) (bool, []models.FieldError) {
	state, err := r.State.ListByEmployee(ctx, e.ID)
	if err != nil {
		return false, []models.FieldError{{Field: "licenses", Message: "licenses could not be checked"}}
	}
	dea, err := r.DEA.ListByEmployee(ctx, e.ID)
	if err != nil {
		return false, []models.FieldError{{Field: "licenses", Message: "licenses could not be checked"}}
	}
	board, err := r.Board.ListByEmployee(ctx, e.ID)
	if err != nil {
		return false, []models.FieldError{{Field: "licenses", Message: "licenses could not be checked"}}
	}
	if len(state)+len(dea)+len(board) == 0 {
		return false, []models.FieldError{{Field: "licenses", Message: "add at least one license or certification"}}
	}
	return true, nil
}

func (r Records) documents(ctx context.Context, e *models.Employee, _ map[string]any) (bool, []models.FieldError) {
	docs, err := r.Documents.List(ctx, repo.DocumentFilter{EmployeeID: e.ID})
	if err != nil {
		return false, []models.FieldError{{Field: "documents", Message: "documents could not be checked"}}
	}
	if len(docs) == 0 {
		return false, []models.FieldError{{Field: "documents", Message: "upload at least one document"}}
	}
	return true, nil
}

// forms passes when every form sent to the employee carries the employee's signature.
func (r Records) forms(ctx context.Context, e *models.Employee, _ map[string]any) (bool, []models.FieldError) {
	subs, err := r.Submissions.ListByEmployee(ctx, e.ID)
	if err != nil {
		return false, []models.FieldError{{Field: "forms", Message: "forms could not be checked"}}
	}
	var fes []models.FieldError
	for _, s := range subs {
		switch {
		case s.EmployeeSigned || s.Status == models.SubmissionCompleted:
		case s.Status == models.SubmissionDeclined || s.Status == models.SubmissionExpired:
			fes = append(fes, models.FieldError{Field: "forms", Message: fmt.Sprintf("%s was %s; ask HR to send it again", s.TemplateName, s.Status)})
		default:
			fes = append(fes, models.FieldError{Field: "forms", Message: fmt.Sprintf("%s is waiting for your signature", s.TemplateName)})
		}
	}
	return result(fes)
}

func review(_ context.Context, _ *models.Employee, data map[string]any) (bool, []models.FieldError) {
	if ok, _ := data["confirmed"].(bool); !ok {
		return false, []models.FieldError{{Field: "confirmed", Message: "confirm that the information is accurate"}}
	}
	return true, nil
}
