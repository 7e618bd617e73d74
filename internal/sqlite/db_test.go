package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB returns a migrated in-memory database.
func NewTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.Migrate())
}
