package licenses

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/internal/auth"
	"staffdesk/internal/db/dbtest"
	"staffdesk/internal/expiry"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

var today = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

type env struct {
	svc       *Service
	employees *repo.EmployeeStore
	guard     *auth.Guard
}

func newEnv(t *testing.T) *env {
	t.Helper()
	d := dbtest.Open(t)
	emps := repo.NewEmployeeStore(d)
	svc := NewService(
		repo.NewLicenseStore[models.StateLicense](d),
		repo.NewLicenseStore[models.DEALicense](d),
		repo.NewLicenseStore[models.BoardCertification](d),
		emps,
		Deriver{Thresholds: expiry.DefaultThresholds(), Now: func() time.Time { return today }},
	)
	return &env{svc: svc, employees: emps, guard: auth.NewGuard(emps)}
}

func (e *env) employee(t *testing.T, userID *uint) *models.Employee {
	t.Helper()
	emp := &models.Employee{FirstName: "Kim", LastName: "Lee", UserID: userID}
	require.NoError(t, e.employees.Create(context.Background(), emp))
	return emp
}

func str(s string) *string { return &s }

func day(offset int) *string { return str(today.AddDate(0, 0, offset).Format(models.DateLayout)) }

func TestStateLicense_DerivedStatus(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	emp := e.employee(t, nil)

	cases := []struct {
		offset   int
		status   string
		priority string
	}{
		{10, "expiring_soon", "high"},
		{25, "expiring_soon", "medium"},
		{40, "active", "low"},
		{-1, "expired", "high"},
	}
	for _, tc := range cases {
		l, err := e.svc.State.Create(ctx, emp.ID, Input{LicenseNumber: str("RN-" + strconv.Itoa(tc.offset)), State: str("ca"), ExpirationDate: day(tc.offset)})
		require.NoError(t, err)
		assert.Equal(t, tc.status, l.EffectiveStatus, "offset %d", tc.offset)
		assert.Equal(t, tc.priority, l.Priority, "offset %d", tc.offset)
		assert.Equal(t, "CA", l.State)
	}

	list, err := e.svc.State.List(ctx, emp.ID)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "expired", list[0].EffectiveStatus, "ordered by expiration")
}

func TestExplicitStatusWins(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	emp := e.employee(t, nil)

	l, err := e.svc.DEA.Create(context.Background(), emp.ID, Input{
		LicenseNumber: str("DEA1"), ExpirationDate: day(-30), Status: str("Suspended"), Schedules: str("II-V"),
	})
	require.NoError(t, err)
	assert.Equal(t, "suspended", l.EffectiveStatus)
	assert.Equal(t, "II-V", l.Schedules)

	l, err = e.svc.DEA.Update(context.Background(), l.ID, Input{Status: str("")})
	require.NoError(t, err)
	assert.Equal(t, "expired", l.EffectiveStatus)
}

func TestValidation(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	emp := e.employee(t, nil)
	ctx := context.Background()

	check := func(in Input, empID uint, field string) {
		t.Helper()
		_, err := e.svc.Board.Create(ctx, empID, in)
		var fe *models.FieldError
		require.True(t, errors.As(err, &fe), "%v", err)
		assert.Equal(t, field, fe.Field)
	}
	check(Input{}, emp.ID, "licenseNumber")
	check(Input{LicenseNumber: str("B1"), ExpirationDate: str("soon")}, emp.ID, "expirationDate")
	check(Input{LicenseNumber: str("B1"), IssueDate: day(0), ExpirationDate: day(-5)}, emp.ID, "expirationDate")
	check(Input{LicenseNumber: str("B1"), Status: str("lapsed-ish")}, emp.ID, "status")
	check(Input{LicenseNumber: str("B1")}, 9999, "employeeId")

	bc, err := e.svc.Board.Create(ctx, emp.ID, Input{LicenseNumber: str("B1"), BoardName: str("ABIM"), Specialty: str("IM")})
	require.NoError(t, err)
	assert.Equal(t, "unknown", bc.EffectiveStatus)
	assert.Nil(t, bc.DaysRemaining)

	require.NoError(t, e.svc.Board.Delete(ctx, bc.ID))
	assert.ErrorIs(t, e.svc.Board.Delete(ctx, bc.ID), ErrNotFound)
}

func TestHandlers_OwnerAccess(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	owner := uint(77)
	mine := e.employee(t, &owner)
	other := e.employee(t, nil)

	r := mux.NewRouter()
	RegisterRoutes(r, e.svc, e.guard)
	call := func(u *models.User, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(auth.WithUser(req.Context(), u))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	self := &models.User{ID: owner, Role: models.RoleProspective}
	viewer := &models.User{ID: 5, Role: models.RoleViewer}
	idPath := func(id uint) string { return strconv.FormatUint(uint64(id), 10) }

	rec := call(self, http.MethodPost, "/employees/"+idPath(mine.ID)+"/state-licenses", `{"licenseNumber":"RN1","expirationDate":"2026-05-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"effectiveStatus":"expiring_soon"`)

	rec = call(self, http.MethodPost, "/employees/"+idPath(other.ID)+"/state-licenses", `{"licenseNumber":"RN2"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(viewer, http.MethodGet, "/employees/"+idPath(mine.ID)+"/state-licenses", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = call(viewer, http.MethodPost, "/employees/"+idPath(mine.ID)+"/dea-licenses", `{"licenseNumber":"D"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(self, http.MethodGet, "/board-certifications/12345", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
