package patients

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PostgresRepository stores patients in the patients table. db may be a pool
// or a transaction.
type PostgresRepository struct {
	db     sqlx.ExtContext
	logger *zap.Logger
}

func NewPostgresRepository(db sqlx.ExtContext, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

type patientRow struct {
	ID                string    `db:"id"`
	FirstName         string    `db:"first_name"`
	LastName          string    `db:"last_name"`
	BirthDate         time.Time `db:"birth_date"`
	Sex               string    `db:"sex"`
	ReducedMobility   bool      `db:"reduced_mobility"`
	IsolationRequired bool      `db:"isolation_required"`
	PhoneNumber       string    `db:"phone_number"`
	Notes             string    `db:"notes"`
}

func (row patientRow) toPatient() Patient {
	return Patient{
		ID:                row.ID,
		FirstName:         row.FirstName,
		LastName:          row.LastName,
		BirthDate:         civil.DateOf(row.BirthDate),
		Sex:               Sex(row.Sex),
		ReducedMobility:   row.ReducedMobility,
		IsolationRequired: row.IsolationRequired,
		PhoneNumber:       row.PhoneNumber,
		Notes:             row.Notes,
	}
}

const patientColumns = `id, first_name, last_name, birth_date, sex, reduced_mobility, isolation_required, phone_number, notes`

func (r *PostgresRepository) Save(ctx context.Context, p Patient) (Patient, error) {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			birth_date = EXCLUDED.birth_date,
			sex = EXCLUDED.sex,
			reduced_mobility = EXCLUDED.reduced_mobility,
			isolation_required = EXCLUDED.isolation_required,
			phone_number = EXCLUDED.phone_number,
			notes = EXCLUDED.notes
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.FirstName, p.LastName, p.BirthDate.String(), string(p.Sex),
		p.ReducedMobility, p.IsolationRequired, p.PhoneNumber, p.Notes,
	)
	if err != nil {
		return Patient{}, fmt.Errorf("save patient: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Patient, bool, error) {
	var row patientRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return Patient{}, false, nil
	}
	if err != nil {
		return Patient{}, false, fmt.Errorf("find patient: %w", err)
	}
	return row.toPatient(), true, nil
}

func (r *PostgresRepository) FindAll(ctx context.Context) ([]Patient, error) {
	var rows []patientRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `SELECT `+patientColumns+` FROM patients ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	out := make([]Patient, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toPatient())
	}
	r.logger.Debug("loaded patients", zap.Int("count", len(out)))
	return out, nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}
