package patients

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *PostgresRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, NewPostgresRepository(sqlx.NewDb(db, "postgres"), zap.NewNop())
}

var patientCols = []string{"id", "first_name", "last_name", "birth_date", "sex", "reduced_mobility", "isolation_required", "phone_number", "notes"}

func TestPostgresSave(t *testing.T) {
	mock, repo := setupMockDB(t)
	p := validPatient()

	mock.ExpectExec(`INSERT INTO patients`).
		WithArgs("P-001", "Alice", "Martin", "1980-05-02", "female", false, false, "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := repo.Save(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, p, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByID(t *testing.T) {
	mock, repo := setupMockDB(t)
	rows := sqlmock.NewRows(patientCols).
		AddRow("P-001", "Alice", "Martin", time.Date(1980, 5, 2, 0, 0, 0, 0, time.UTC), "female", true, true, "0600", "")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM patients WHERE id = $1`)).WithArgs("P-001").WillReturnRows(rows)

	p, ok, err := repo.FindByID(context.Background(), "P-001")

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, validPatient().BirthDate, p.BirthDate)
	assert.True(t, p.IsolationRequired)
	assert.True(t, p.ReducedMobility)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByID_Missing(t *testing.T) {
	mock, repo := setupMockDB(t)
	mock.ExpectQuery(`FROM patients`).WithArgs("P-404").WillReturnRows(sqlmock.NewRows(patientCols))

	_, ok, err := repo.FindByID(context.Background(), "P-404")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresFindAllAndDelete(t *testing.T) {
	mock, repo := setupMockDB(t)
	rows := sqlmock.NewRows(patientCols).
		AddRow("P-001", "Alice", "Martin", time.Date(1980, 5, 2, 0, 0, 0, 0, time.UTC), "female", false, false, "", "").
		AddRow("P-002", "Bruno", "Petit", time.Date(1975, 1, 9, 0, 0, 0, 0, time.UTC), "male", false, true, "", "")
	mock.ExpectQuery(`ORDER BY id`).WillReturnRows(rows)
	mock.ExpectExec(`DELETE FROM patients`).WithArgs("P-002").WillReturnResult(sqlmock.NewResult(0, 1))

	list, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, SexMale, list[1].Sex)

	require.NoError(t, repo.DeleteByID(context.Background(), "P-002"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
