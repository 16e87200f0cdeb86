package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames_Ordered(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_outbox.sql"}, names)
}

func TestInitMigration_EnforcesNoOverlapInStorage(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)

	sql := string(body)
	assert.True(t, strings.Contains(sql, "CREATE EXTENSION IF NOT EXISTS btree_gist"))
	assert.True(t, strings.Contains(sql, "EXCLUDE USING gist"))
	assert.True(t, strings.Contains(sql, "WHERE (status = 'scheduled')"))
	assert.True(t, strings.Contains(sql, "'[)'"), "ranges must be half-open so touching appointments are allowed")
}
