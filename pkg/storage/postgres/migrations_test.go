package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrderedAndUnique(t *testing.T) {
	migrations := Migrations()
	require.NotEmpty(t, migrations)

	seen := make(map[int]bool)
	last := 0
	for _, m := range migrations {
		assert.False(t, seen[m.Version], "duplicate version %d", m.Version)
		assert.Greater(t, m.Version, last, "versions must increase")
		assert.NotEmpty(t, m.Description)
		assert.NotEmpty(t, m.SQL)
		seen[m.Version] = true
		last = m.Version
	}
}

func TestRunMigrationsAppliesAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	for range Migrations() {
		mock.ExpectBegin()
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO schema_migrations`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
	}

	require.NoError(t, RunMigrations(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsSkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows := sqlmock.NewRows([]string{"version"})
	for _, m := range Migrations() {
		rows.AddRow(m.Version)
	}
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).WillReturnRows(rows)

	// no Begin expected: everything already applied
	require.NoError(t, RunMigrations(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1")
	require.NoError(t, mock.ExpectationsWereMet())
}
