package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmaster/internal/db"
	"taskmaster/internal/migrate"
)

func TestMigrateRecordsEachVersionOnce(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, migrate.Migrate(conn, nil))

	v, err := migrate.Version(conn)
	require.NoError(t, err)
	assert.Greater(t, v, 0)

	var rows int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&rows))

	// Running again must neither reapply nor add ledger rows.
	require.NoError(t, migrate.Migrate(conn, nil))
	var again int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&again))
	assert.Equal(t, rows, again)

	v2, err := migrate.Version(conn)
	require.NoError(t, err)
	assert.Equal(t, v, v2)
}

func TestVersionOnFreshDatabaseIsZero(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	v, err := migrate.Version(conn)
	require.NoError(t, err)
	assert.Zero(t, v)
}
