package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrationName(t *testing.T) {
	version, name, err := parseMigrationName("001_initial_schema.sql")
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Equal(t, "initial_schema", name)

	version, name, err = parseMigrationName("012_add_job_index.sql")
	require.NoError(t, err)
	assert.Equal(t, 12, version)
	assert.Equal(t, "add_job_index", name)

	_, _, err = parseMigrationName("schema.sql")
	assert.Error(t, err)

	_, _, err = parseMigrationName("abc_schema.sql")
	assert.Error(t, err)
}

func TestLoadMigrationsSortsByVersion(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"002_receipts.sql": "CREATE TABLE receipts (id TEXT);",
		"001_catalog.sql":  "CREATE TABLE categories (id TEXT);",
		"010_jobs.sql":     "CREATE TABLE ingest_jobs (id TEXT);",
		"README.md":        "not a migration",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	migrations, err := loadMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, []int{1, 2, 10}, []int{migrations[0].Version, migrations[1].Version, migrations[2].Version})
	assert.Equal(t, "catalog", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE ingest_jobs (id TEXT);", migrations[2].SQL)
}
