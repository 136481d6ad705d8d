package source

import (
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kailas-cloud/resdex/internal/sqldb"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := sqldb.Open(sqldb.Config{Driver: sqldb.DriverSQLite, DSN: ":memory:", MaxOpenConns: 1}, zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close(gdb) })
	return gdb
}

func mustCreate(t *testing.T, gdb *gorm.DB, v any) {
	t.Helper()
	if err := gdb.Create(v).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
}
