package stays

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bedplanner/internal/apperr"
	"bedplanner/internal/database"

	"github.com/golang-sql/civil"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PostgresRepository stores stays in the hospital_stays table. db may be a
// pool or a transaction.
type PostgresRepository struct {
	db     sqlx.ExtContext
	logger *zap.Logger
}

func NewPostgresRepository(db sqlx.ExtContext, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

type stayRow struct {
	ID                     string       `db:"id"`
	PatientID              string       `db:"patient_id"`
	BedID                  string       `db:"bed_id"`
	StayType               string       `db:"stay_type"`
	AdmissionDate          time.Time    `db:"admission_date"`
	DischargeDatePlanned   sql.NullTime `db:"discharge_date_planned"`
	DischargeDateEffective sql.NullTime `db:"discharge_date_effective"`
}

func (row stayRow) toStay() HospitalStay {
	return HospitalStay{
		ID:                     row.ID,
		PatientID:              row.PatientID,
		BedID:                  row.BedID,
		StayType:               StayType(row.StayType),
		AdmissionDate:          civil.DateOf(row.AdmissionDate),
		DischargeDatePlanned:   nullDate(row.DischargeDatePlanned),
		DischargeDateEffective: nullDate(row.DischargeDateEffective),
	}
}

func nullDate(t sql.NullTime) *civil.Date {
	if !t.Valid {
		return nil
	}
	d := civil.DateOf(t.Time)
	return &d
}

func dateArg(d *civil.Date) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

const stayColumns = `id, patient_id, bed_id, stay_type, admission_date, discharge_date_planned, discharge_date_effective`

func (r *PostgresRepository) Create(ctx context.Context, s HospitalStay) (HospitalStay, error) {
	query := `
		INSERT INTO hospital_stays (` + stayColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.PatientID, s.BedID, string(s.StayType), s.AdmissionDate.String(),
		dateArg(s.DischargeDatePlanned), dateArg(s.DischargeDateEffective),
	)
	if database.IsUniqueViolation(err) {
		return HospitalStay{}, apperr.Conflict("stay with id %s already exists", s.ID)
	}
	if err != nil {
		return HospitalStay{}, fmt.Errorf("insert stay: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Update(ctx context.Context, s HospitalStay) (HospitalStay, error) {
	query := `
		UPDATE hospital_stays
		SET discharge_date_planned = $2, discharge_date_effective = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, s.ID, dateArg(s.DischargeDatePlanned), dateArg(s.DischargeDateEffective))
	if err != nil {
		return HospitalStay{}, fmt.Errorf("update stay: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return HospitalStay{}, apperr.NotFound("stay", s.ID)
	}
	return s, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (HospitalStay, bool, error) {
	var row stayRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+stayColumns+` FROM hospital_stays WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return HospitalStay{}, false, nil
	}
	if err != nil {
		return HospitalStay{}, false, fmt.Errorf("find stay: %w", err)
	}
	return row.toStay(), true, nil
}

func (r *PostgresRepository) FindAll(ctx context.Context) ([]HospitalStay, error) {
	return r.list(ctx, `SELECT `+stayColumns+` FROM hospital_stays ORDER BY admission_date, id`)
}

// FindActiveOn evaluates the activity predicate in SQL.
func (r *PostgresRepository) FindActiveOn(ctx context.Context, date civil.Date) ([]HospitalStay, error) {
	return r.list(ctx, `
		SELECT `+stayColumns+`
		FROM hospital_stays
		WHERE admission_date <= $1
		AND (discharge_date_effective IS NULL OR discharge_date_effective >= $1)
		ORDER BY admission_date, id
	`, date.String())
}

func (r *PostgresRepository) FindByPatient(ctx context.Context, patientID string) ([]HospitalStay, error) {
	return r.list(ctx, `SELECT `+stayColumns+` FROM hospital_stays WHERE patient_id = $1 ORDER BY admission_date, id`, patientID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...interface{}) ([]HospitalStay, error) {
	var rows []stayRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list stays: %w", err)
	}
	out := make([]HospitalStay, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toStay())
	}
	r.logger.Debug("loaded stays", zap.Int("count", len(out)))
	return out, nil
}
