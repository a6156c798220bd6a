package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"staffdesk/internal/db/dbtest"
	"staffdesk/internal/documents"
)

func probe(r *mux.Router, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestProbes(t *testing.T) {
	t.Parallel()
	r := mux.NewRouter()
	files := documents.NewStorage(afero.NewMemMapFs())
	RegisterRoutes(r, Database(dbtest.Open(t)), Storage(files.Ping))

	assert.Equal(t, http.StatusOK, probe(r, "/healthz").Code)
	rec := probe(r, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok","documents":"ok"}}`, rec.Body.String())
}

func TestReadyz_Failures(t *testing.T) {
	t.Parallel()
	r := mux.NewRouter()
	RegisterRoutes(r, Database(nil), Storage(func() error { return errors.New("read-only file system") }))

	rec := probe(r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","checks":{"database":"not configured","documents":"read-only file system"}}`,
		rec.Body.String())
	assert.Equal(t, http.StatusOK, probe(r, "/healthz").Code, "liveness ignores dependencies")
}
