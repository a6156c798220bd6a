package db

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"staffdesk/internal/logs"
	"staffdesk/internal/models"
)

func TestOpen_LogsThroughLogrus(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	prev := logs.Logger
	logs.Logger = l
	t.Cleanup(func() { logs.Logger = prev })

	d, err := Open("sqlite", "file:db_logger_test?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, Migrate(d))
	sqlDB, err := d.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	buf.Reset()
	var u models.User
	err = d.First(&u, 999).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "a missing row is not worth a log line")

	require.Error(t, d.Exec("SELECT * FROM no_such_table").Error)
	assert.Contains(t, buf.String(), "component=gorm")
	assert.Contains(t, buf.String(), "no_such_table")
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open("oracle", "x")
	assert.ErrorContains(t, err, `unsupported database driver: "oracle"`)
}
