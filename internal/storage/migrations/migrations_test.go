package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedFilesOrdered(t *testing.T) {
	pg, err := sqlFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_positions.sql", "002_episode_blocks.sql", "003_overrides.sql"}, pg)

	ch, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_evidence.sql", "002_facts.sql", "003_lessons.sql"}, ch)
}

func TestClickhouseMigrationsSplitCleanly(t *testing.T) {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)

	tables := 0
	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		require.NoError(t, err)
		require.NoError(t, validateNoSemicolonInStrings(string(data)), file)
		for _, stmt := range splitStatements(string(data)) {
			assert.True(t, strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS"), "%s: %q", file, stmt)
			tables++
		}
	}
	assert.Equal(t, 4, tables)
}

func TestSplitStatements(t *testing.T) {
	sql := "-- header\nCREATE TABLE a (x Int8);\n\n-- second\nCREATE TABLE b (y Int8);\n"
	assert.Equal(t, []string{"CREATE TABLE a (x Int8)", "CREATE TABLE b (y Int8)"}, splitStatements(sql))
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'it''s'; SELECT 1;"))
	assert.Error(t, validateNoSemicolonInStrings("SELECT 'a;b'"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://user:pw@localhost:9000/trendloop")
	require.NoError(t, err)
	assert.Equal(t, "trendloop", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
