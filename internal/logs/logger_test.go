package logs

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	l := newLogger()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	prev := Logger
	Logger = l
	t.Cleanup(func() { Logger = prev })
	return &buf
}

func TestRedactsSensitiveFields(t *testing.T) {
	buf := capture(t)

	Component("employees").WithFields(logrus.Fields{
		"ssn": "123-45-6789", "CAQH_Password": "hunter2", "employee_id": 7,
	}).Info("updated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "[redacted]", line["ssn"])
	assert.Equal(t, "[redacted]", line["CAQH_Password"])
	assert.EqualValues(t, 7, line["employee_id"])
	assert.Equal(t, "employees", line["component"])
}

func TestFromRequest(t *testing.T) {
	buf := capture(t)

	r := httptest.NewRequest("GET", "/api/employees/7?search=kim", nil)
	r.Header.Set("X-Request-Id", "req-1")
	FromRequest(r).Warn("slow")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["reqid"])
	assert.Equal(t, "/api/employees/7", line["uri"])
	assert.Equal(t, "warning", line["level"])
}
