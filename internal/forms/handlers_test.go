package forms

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/internal/auth"
	"staffdesk/internal/models"
)

type recordingWatcher struct{ ids []uint }

func (r *recordingWatcher) Watch(id uint) bool {
	r.ids = append(r.ids, id)
	return true
}

func newRouter(e *env, w Watcher) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	public := api.NewRoute().Subrouter()
	authed := api.NewRoute().Subrouter()
	staff := api.NewRoute().Subrouter()
	staff.Use(auth.RequireStaff())
	NewHandler(e.svc, e.guard, w, "hook-secret").RegisterRoutes(public, authed, staff)
	return r
}

func call(r http.Handler, u *models.User, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if u != nil {
		req = req.WithContext(auth.WithUser(req.Context(), u))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHTTP_SigningFlow(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	watcher := &recordingWatcher{}
	r := newRouter(e, watcher)
	owner := &models.User{ID: 31, Role: models.RoleEmployee}
	stranger := &models.User{ID: 32, Role: models.RoleEmployee}
	hr := &models.User{ID: 1, Role: models.RoleHR, Email: "hr@clinic.test"}

	rec := call(r, hr, http.MethodPost, "/api/forms/send", fmt.Sprintf(`{"employeeId":%d,"templateId":7}`, e.emp.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent struct {
		ID                     uint   `json:"id"`
		Status                 string `json:"status"`
		CanCompleteHRSignature bool   `json:"canCompleteHrSignature"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, "sent", sent.Status)
	assert.False(t, sent.CanCompleteHRSignature)
	path := fmt.Sprintf("/api/forms/%d", sent.ID)

	rec = call(r, owner, http.MethodPost, "/api/forms/send", `{"employeeId":1,"templateId":7}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(r, stranger, http.MethodPost, path+"/signing-url", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = call(r, owner, http.MethodPost, path+"/signing-url", `{"role":"hr"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(r, owner, http.MethodPost, path+"/signing-url", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"url":"https://sign.test/s/`)
	assert.Contains(t, rec.Body.String(), `"status":"opened"`)
	assert.Equal(t, []uint{sent.ID}, watcher.ids)

	rec = call(r, hr, http.MethodPost, path+"/hr-sign", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(r, owner, http.MethodGet, fmt.Sprintf("/api/employees/%d/forms", e.emp.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"templateName":"I-9"`)
}

func TestHTTP_DocuSealErrorsCarryHints(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	r := newRouter(e, nil)
	hr := &models.User{ID: 1, Role: models.RoleAdmin, Email: "hr@clinic.test"}

	rec := call(r, hr, http.MethodPost, "/api/forms/send", fmt.Sprintf(`{"employeeId":%d,"templateId":404}`, e.emp.ID))
	require.Equal(t, http.StatusNotFound, rec.Code)
	var p struct {
		Extra map[string]string `json:"extra"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "TEMPLATE_NOT_FOUND", p.Extra["code"])
	assert.NotEmpty(t, p.Extra["hint"])
}

func TestHTTP_Webhook(t *testing.T) {
	t.Parallel()
	e := newEnv(t, Options{})
	r := newRouter(e, nil)
	f := e.send(t, 8)

	body := fmt.Sprintf(`{"event_type":"form.completed","data":{"submission_id":%d,"role":"Employee"}}`, f.SubmissionID)

	rec := call(r, nil, http.MethodPost, "/api/forms/webhook", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/forms/webhook", strings.NewReader(body))
	req.Header.Set(webhookSecretHeader, "hook-secret")
	out := httptest.NewRecorder()
	r.ServeHTTP(out, req)
	assert.Equal(t, http.StatusNoContent, out.Code)

	got, err := e.svc.Get(req.Context(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionCompleted, got.Status)

	req = httptest.NewRequest(http.MethodPost, "/api/forms/webhook", strings.NewReader(`{"event_type":"form.viewed","data":{"submission_id":424242}}`))
	req.Header.Set(webhookSecretHeader, "hook-secret")
	out = httptest.NewRecorder()
	r.ServeHTTP(out, req)
	assert.Equal(t, http.StatusAccepted, out.Code)
}
