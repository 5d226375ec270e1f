package beds

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PostgresRepository stores beds in the beds table. db may be a pool or a
// transaction.
type PostgresRepository struct {
	db     sqlx.ExtContext
	logger *zap.Logger
}

func NewPostgresRepository(db sqlx.ExtContext, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

type bedRow struct {
	ID               string `db:"id"`
	RoomID           string `db:"room_id"`
	Code             string `db:"code"`
	Status           string `db:"status"`
	IsolationCapable bool   `db:"isolation_capable"`
}

func (row bedRow) toBed() Bed {
	return Bed{
		ID:               row.ID,
		RoomID:           row.RoomID,
		Code:             row.Code,
		Status:           Status(row.Status),
		IsolationCapable: row.IsolationCapable,
	}
}

const bedColumns = `id, room_id, code, status, isolation_capable`

func (r *PostgresRepository) Save(ctx context.Context, b Bed) (Bed, error) {
	query := `
		INSERT INTO beds (` + bedColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			room_id = EXCLUDED.room_id,
			code = EXCLUDED.code,
			status = EXCLUDED.status,
			isolation_capable = EXCLUDED.isolation_capable
	`
	if _, err := r.db.ExecContext(ctx, query, b.ID, b.RoomID, b.Code, string(b.Status), b.IsolationCapable); err != nil {
		return Bed{}, fmt.Errorf("save bed: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Bed, bool, error) {
	var row bedRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+bedColumns+` FROM beds WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return Bed{}, false, nil
	}
	if err != nil {
		return Bed{}, false, fmt.Errorf("find bed: %w", err)
	}
	return row.toBed(), true, nil
}

func (r *PostgresRepository) FindAll(ctx context.Context) ([]Bed, error) {
	return r.list(ctx, `SELECT `+bedColumns+` FROM beds ORDER BY id`)
}

func (r *PostgresRepository) FindByStatus(ctx context.Context, status Status) ([]Bed, error) {
	return r.list(ctx, `SELECT `+bedColumns+` FROM beds WHERE status = $1 ORDER BY id`, string(status))
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM beds WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete bed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...interface{}) ([]Bed, error) {
	var rows []bedRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list beds: %w", err)
	}
	out := make([]Bed, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toBed())
	}
	r.logger.Debug("loaded beds", zap.Int("count", len(out)))
	return out, nil
}
