// Package employees owns employee records. Sensitive fields are encrypted before they reach the store.
package employees

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"staffdesk/internal/logs"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
	"staffdesk/internal/secrets"
)

var ErrNotFound = errors.New("employees: not found")

// Cipher is the field encryption used for SSN and service passwords.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(enc string) (string, error)
	MaskSSN(enc string) (string, error)
}

type Service struct {
	store  *repo.EmployeeStore
	cipher Cipher
}

func NewService(store *repo.EmployeeStore, cipher Cipher) *Service {
	return &Service{store: store, cipher: cipher}
}

// Patch carries employee fields; nil means "leave unchanged".
// For SSN and the service passwords an empty string clears the stored value.
// Dates are YYYY-MM-DD strings.
type Patch struct {
	FirstName       *string                `json:"firstName"`
	MiddleName      *string                `json:"middleName"`
	LastName        *string                `json:"lastName"`
	Email           *string                `json:"email"`
	WorkEmail       *string                `json:"workEmail"`
	Phone           *string                `json:"phone"`
	Address         *string                `json:"address"`
	City            *string                `json:"city"`
	State           *string                `json:"state"`
	ZipCode         *string                `json:"zipCode"`
	DateOfBirth     *string                `json:"dateOfBirth"`
	Gender          *string                `json:"gender"`
	JobTitle        *string                `json:"jobTitle"`
	Department      *string                `json:"department"`
	WorkLocation    *string                `json:"workLocation"`
	HireDate        *string                `json:"hireDate"`
	SSN             *string                `json:"ssn"`
	NPINumber       *string                `json:"npiNumber"`
	EnumerationDate *string                `json:"enumerationDate"`
	MedicaidNumber  *string                `json:"medicaidNumber"`
	MedicareNumber  *string                `json:"medicareNumber"`
	CAQHProviderID  *string                `json:"caqhProviderId"`
	CAQHLogin       *string                `json:"caqhLogin"`
	CAQHPassword    *string                `json:"caqhPassword"`
	NPPESLogin      *string                `json:"nppesLogin"`
	NPPESPassword   *string                `json:"nppesPassword"`
	Status          *models.EmployeeStatus `json:"status"`
}

// Apply validates p and copies it onto e, encrypting sensitive values.
// e is left partially updated when an error is returned; callers discard it.
func (s *Service) Apply(e *models.Employee, p Patch) error {
	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&e.FirstName, p.FirstName}, {&e.MiddleName, p.MiddleName}, {&e.LastName, p.LastName},
		{&e.Phone, p.Phone}, {&e.Address, p.Address}, {&e.City, p.City}, {&e.ZipCode, p.ZipCode},
		{&e.Gender, p.Gender}, {&e.JobTitle, p.JobTitle}, {&e.Department, p.Department},
		{&e.WorkLocation, p.WorkLocation}, {&e.MedicaidNo, p.MedicaidNumber}, {&e.MedicareNo, p.MedicareNumber},
		{&e.CAQHID, p.CAQHProviderID}, {&e.CAQHLogin, p.CAQHLogin}, {&e.NPPESLogin, p.NPPESLogin},
	} {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}
	if p.State != nil {
		e.State = strings.ToUpper(strings.TrimSpace(*p.State))
	}
	if p.Email != nil {
		e.Email = strings.ToLower(strings.TrimSpace(*p.Email))
		if e.Email != "" {
			if _, err := mail.ParseAddress(e.Email); err != nil {
				return models.NewFieldError("email", "email is not a valid address")
			}
		}
	}
	if p.WorkEmail != nil {
		we := strings.ToLower(strings.TrimSpace(*p.WorkEmail))
		if we == "" {
			e.WorkEmail = nil
		} else {
			if _, err := mail.ParseAddress(we); err != nil {
				return models.NewFieldError("workEmail", "work email is not a valid address")
			}
			e.WorkEmail = &we
		}
	}
	if p.NPINumber != nil {
		npi := strings.TrimSpace(*p.NPINumber)
		if npi != "" && !ValidNPI(npi) {
			return models.NewFieldError("npiNumber", "NPI must be exactly 10 digits")
		}
		e.NPINumber = npi
	}
	for _, d := range []struct {
		field string
		src   *string
		dst   **time.Time
	}{
		{"dateOfBirth", p.DateOfBirth, &e.DateOfBirth},
		{"hireDate", p.HireDate, &e.HireDate},
		{"enumerationDate", p.EnumerationDate, &e.Enumeration},
	} {
		if d.src == nil {
			continue
		}
		t, err := models.ParseDate(*d.src)
		if err != nil {
			return models.NewFieldError(d.field, "%v", err)
		}
		*d.dst = t
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return models.NewFieldError("status", "unknown status %q", *p.Status)
		}
		e.Status = *p.Status
	}
	if p.SSN != nil {
		ssn := strings.TrimSpace(*p.SSN)
		if ssn != "" && !ValidSSN(ssn) {
			return models.NewFieldError("ssn", "SSN must have 9 digits")
		}
		if err := s.seal(&e.SSN, ssn); err != nil {
			return err
		}
	}
	if p.CAQHPassword != nil {
		if err := s.seal(&e.CAQHPassword, *p.CAQHPassword); err != nil {
			return err
		}
	}
	if p.NPPESPassword != nil {
		if err := s.seal(&e.NPPESPassword, *p.NPPESPassword); err != nil {
			return err
		}
	}
	if e.FirstName == "" {
		return models.NewFieldError("firstName", "first name is required")
	}
	if e.LastName == "" {
		return models.NewFieldError("lastName", "last name is required")
	}
	return nil
}

func (s *Service) seal(dst *string, plain string) error {
	enc, err := s.cipher.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("employees: encrypt: %w", err)
	}
	*dst = enc
	return nil
}

// present fills the masked SSN used in responses. Decryption failures are logged and masked fully.
func (s *Service) present(e *models.Employee) {
	masked, err := s.cipher.MaskSSN(e.SSN)
	if err != nil {
		logs.Logger.WithField("employee_id", e.ID).Warnf("ssn not decryptable: %v", err)
		masked = secrets.Mask("")
	}
	e.SSNMasked = masked
}

func (s *Service) Create(ctx context.Context, p Patch) (*models.Employee, error) {
	e := &models.Employee{Status: models.EmployeeActive, OnboardingStatus: models.OnboardingNotStarted}
	if err := s.Apply(e, p); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, s.storeErr(err)
	}
	s.present(e)
	return e, nil
}

func (s *Service) Update(ctx context.Context, id uint, p Patch) (*models.Employee, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Apply(e, p); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, e); err != nil {
		return nil, s.storeErr(err)
	}
	s.present(e)
	return e, nil
}

// Save persists an employee already mutated by the caller (onboarding, registration).
func (s *Service) Save(ctx context.Context, e *models.Employee) error {
	if err := s.store.Save(ctx, e); err != nil {
		return s.storeErr(err)
	}
	return nil
}

// Terminate is the delete operation: employees are never removed, only moved to terminated.
func (s *Service) Terminate(ctx context.Context, id uint) (*models.Employee, error) {
	st := models.EmployeeTerminated
	return s.Update(ctx, id, Patch{Status: &st})
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Employee, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.present(e)
	return e, nil
}

// Detail loads the employee with licenses, documents, incidents and forms.
func (s *Service) Detail(ctx context.Context, id uint) (*models.Employee, error) {
	e, err := s.store.GetDetail(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.present(e)
	return e, nil
}

func (s *Service) List(ctx context.Context, f repo.EmployeeFilter) ([]models.Employee, int64, error) {
	list, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	for i := range list {
		s.present(&list[i])
	}
	return list, total, nil
}

// SSN returns the masked SSN, or the plaintext when reveal is set.
func (s *Service) SSN(ctx context.Context, id uint, reveal bool) (string, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if !reveal {
		masked, err := s.cipher.MaskSSN(e.SSN)
		if err != nil {
			return "", fmt.Errorf("employees: decrypt ssn: %w", err)
		}
		return masked, nil
	}
	plain, err := s.cipher.Decrypt(e.SSN)
	if err != nil {
		return "", fmt.Errorf("employees: decrypt ssn: %w", err)
	}
	return plain, nil
}

type ServiceCredentials struct {
	CAQHProviderID string `json:"caqhProviderId"`
	CAQHLogin      string `json:"caqhLogin"`
	CAQHPassword   string `json:"caqhPassword"`
	NPPESLogin     string `json:"nppesLogin"`
	NPPESPassword  string `json:"nppesPassword"`
}

// Credentials decrypts the stored CAQH and NPPES logins.
func (s *Service) Credentials(ctx context.Context, id uint) (*ServiceCredentials, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &ServiceCredentials{CAQHProviderID: e.CAQHID, CAQHLogin: e.CAQHLogin, NPPESLogin: e.NPPESLogin}
	if out.CAQHPassword, err = s.cipher.Decrypt(e.CAQHPassword); err != nil {
		return nil, fmt.Errorf("employees: decrypt caqh password: %w", err)
	}
	if out.NPPESPassword, err = s.cipher.Decrypt(e.NPPESPassword); err != nil {
		return nil, fmt.Errorf("employees: decrypt nppes password: %w", err)
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id uint) (*models.Employee, error) {
	e, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *Service) storeErr(err error) error {
	if errors.Is(err, repo.ErrDuplicate) {
		return models.NewFieldError("workEmail", "work email is already used by another employee")
	}
	return fmt.Errorf("employees: %w", err)
}

// ValidNPI reports whether s is a 10-digit National Provider Identifier.
func ValidNPI(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidSSN accepts 9 digits with optional dashes (123-45-6789).
func ValidSSN(s string) bool {
	n := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			n++
		case r == '-' || r == ' ':
		default:
			return false
		}
	}
	return n == 9
}
