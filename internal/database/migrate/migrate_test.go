package migrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (
    id INT
);

CREATE INDEX idx_a ON a (id);
INSERT INTO a VALUES (1)`

	stmts := SplitStatements(content)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.NotContains(t, stmts[0], ";")
	assert.Equal(t, "CREATE INDEX idx_a ON a (id)", stmts[1])
	assert.Equal(t, "INSERT INTO a VALUES (1)", stmts[2])
}

func TestUp_AppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"migrations/002_second.sql": {Data: []byte("CREATE TABLE b (id INT);")},
		"migrations/001_first.sql":  {Data: []byte("CREATE TABLE a (id INT);")},
		"migrations/README.md":      {Data: []byte("ignored")},
	}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("001_first.sql"))

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE b`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("002_second.sql").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := New(db, fsys, "migrations", SQLite).Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"002_second.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUp_RollsBackFailedMigration(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"migrations/001_broken.sql": {Data: []byte("CREATE TABLE broken (;")},
	}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE broken`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	applied, err := New(db, fsys, "migrations", Postgres).Up(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_broken.sql")
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
