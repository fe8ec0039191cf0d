package database

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewTestDB returns a migrated in-memory SQLite store that is closed with the test.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	log := zap.NewNop()
	db, err := Connect(Options{Driver: "sqlite", DSN: ":memory:"}, log)
	require.NoError(t, err, "open sqlite")
	require.NoError(t, Migrate(db, log), "migrate")

	t.Cleanup(func() {
		_ = Close(db)
	})
	return db
}

var hookSeq atomic.Int64

// BeforeUpdate runs hook inside every UPDATE on table, after the transaction has begun and
// before the statement executes. Writes from the hook must go through
// tx.Statement.ConnPool so they share the open transaction.
func BeforeUpdate(t testing.TB, db *gorm.DB, table string, hook func(tx *gorm.DB)) {
	t.Helper()

	name := fmt.Sprintf("test:before_update_%d", hookSeq.Add(1))
	err := db.Callback().Update().Before("gorm:update").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == table {
			hook(tx)
		}
	})
	require.NoError(t, err, "register update hook")

	t.Cleanup(func() {
		_ = db.Callback().Update().Remove(name)
	})
}

// SetJobStatus rewrites a job's status from inside an update hook.
func SetJobStatus(tx *gorm.DB, id uint, status string) error {
	_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
		"UPDATE jobs SET status = ? WHERE id = ?", status, id)
	return err
}

// JobStatus reads a job's status from inside an update hook.
func JobStatus(tx *gorm.DB, id uint) (string, error) {
	var status string
	err := tx.Statement.ConnPool.QueryRowContext(tx.Statement.Context,
		"SELECT status FROM jobs WHERE id = ?", id).Scan(&status)
	return status, err
}
