package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/internal/auth"
	"staffdesk/internal/db/dbtest"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

type env struct {
	svc *Service
	fs  afero.Fs
	emp *models.Employee
	r   *mux.Router
}

func newEnv(t *testing.T, maxBytes int64) *env {
	t.Helper()
	d := dbtest.Open(t)
	emps := repo.NewEmployeeStore(d)
	owner := uint(21)
	emp := &models.Employee{FirstName: "Dee", LastName: "Nguyen", UserID: &owner}
	require.NoError(t, emps.Create(context.Background(), emp))
	fs := afero.NewMemMapFs()
	svc := NewService(repo.NewDocumentStore(d), emps, NewStorage(fs), maxBytes)
	r := mux.NewRouter()
	NewHandler(svc, auth.NewGuard(emps)).RegisterRoutes(r)
	return &env{svc: svc, fs: fs, emp: emp, r: r}
}

func TestUpload_VersionsAndChecksum(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 1<<20)
	ctx := context.Background()

	first, err := e.svc.Upload(ctx, UploadInput{EmployeeID: e.emp.ID, DocumentType: "TB_Test", FileName: "../../etc/tb result.pdf", Body: strings.NewReader("v1")})
	require.NoError(t, err)
	second, err := e.svc.Upload(ctx, UploadInput{EmployeeID: e.emp.ID, DocumentType: "tb_test", FileName: "tb.pdf", Body: strings.NewReader("v2")})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, "tb_test", first.DocumentType)
	assert.Equal(t, "tb_result.pdf", first.FileName)
	assert.Equal(t, "application/pdf", first.ContentType)
	assert.Len(t, first.Checksum, 64)
	assert.True(t, strings.HasPrefix(first.StorageKey, strconv.FormatUint(uint64(e.emp.ID), 10)+"/"))

	_, f, err := e.svc.Open(ctx, first.ID)
	require.NoError(t, err)
	body, _ := io.ReadAll(f)
	_ = f.Close()
	assert.Equal(t, "v1", string(body), "earlier version content is untouched")
}

func TestUpload_Rejections(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 4)
	ctx := context.Background()

	_, err := e.svc.Upload(ctx, UploadInput{EmployeeID: e.emp.ID, DocumentType: "cpr", FileName: "x.pdf", Body: strings.NewReader("12345")})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = e.svc.Upload(ctx, UploadInput{EmployeeID: e.emp.ID, DocumentType: "cpr", FileName: "x.exe", Body: strings.NewReader("1")})
	var fe *models.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "file", fe.Field)

	_, err = e.svc.Upload(ctx, UploadInput{EmployeeID: 999, DocumentType: "cpr", FileName: "x.pdf", Body: strings.NewReader("1")})
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "employeeId", fe.Field)

	entries, err := afero.ReadDir(e.fs, strconv.FormatUint(uint64(e.emp.ID), 10))
	if err == nil {
		assert.Empty(t, entries, "rejected uploads leave no files behind")
	}
}

func TestDelete_RemovesFile(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 1<<20)
	ctx := context.Background()
	d, err := e.svc.Upload(ctx, UploadInput{EmployeeID: e.emp.ID, DocumentType: "id", FileName: "id.png", Body: strings.NewReader("png")})
	require.NoError(t, err)

	require.NoError(t, e.svc.Delete(ctx, d.ID))
	exists, err := afero.Exists(e.fs, d.StorageKey)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.ErrorIs(t, e.svc.Delete(ctx, d.ID), ErrNotFound)
}

func (e *env) do(t *testing.T, u *models.User, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req = req.WithContext(auth.WithUser(req.Context(), u))
	rec := httptest.NewRecorder()
	e.r.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, fields map[string]string, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, _ = fw.Write([]byte(content))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHTTP_UploadDownload(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 1<<20)
	self := &models.User{ID: 21, Role: models.RoleProspective}
	stranger := &models.User{ID: 22, Role: models.RoleEmployee}
	hr := &models.User{ID: 1, Role: models.RoleHR}
	empID := strconv.FormatUint(uint64(e.emp.ID), 10)

	rec := e.do(t, self, multipartUpload(t, map[string]string{"employeeId": empID, "documentType": "license", "expirationDate": "2027-01-31"}, "lic.pdf", "%PDF-1.4"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"version":1`)
	assert.NotContains(t, rec.Body.String(), "storageKey")

	rec = e.do(t, stranger, multipartUpload(t, map[string]string{"employeeId": empID, "documentType": "license"}, "lic.pdf", "x"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	list, err := e.svc.List(context.Background(), repo.DocumentFilter{EmployeeID: e.emp.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := strconv.FormatUint(uint64(list[0].ID), 10)

	rec = e.do(t, self, httptest.NewRequest(http.MethodGet, "/documents/"+id+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=lic.pdf`, rec.Header().Get("Content-Disposition"))

	rec = e.do(t, stranger, httptest.NewRequest(http.MethodGet, "/documents", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, hr, httptest.NewRequest(http.MethodGet, "/documents?documentType=license", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, self, httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, hr, httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSafeName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "passwd", SafeName("../../etc/passwd"))
	assert.Equal(t, "a_b.pdf", SafeName(`C:\Users\x\a b.pdf`))
	assert.Equal(t, "file", SafeName("..."))
}
