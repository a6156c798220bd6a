// Package dbtest opens throwaway migrated sqlite databases for tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"staffdesk/internal/db"
)

var seq atomic.Int64

// Open returns a migrated in-memory database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:staffdesk_test_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", seq.Add(1))
	d, err := db.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.Migrate(d); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	sqlDB, err := d.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return d
}
