package stays

import (
	"context"
	"fmt"
	"sync"

	"bedplanner/internal/beds"
	"bedplanner/internal/eventstore"
	"bedplanner/internal/patients"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Registries bundles the stores an allocation reads and writes.
type Registries struct {
	Patients patients.Repository
	Beds     beds.Repository
	Stays    Repository
	Events   eventstore.Store
}

// Transactor runs fn as one allocation unit: no other unit observes or
// changes bed occupancy between fn's reads and writes.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, r Registries) error) error
}

// MemoryTransactor serializes allocation units in process.
type MemoryTransactor struct {
	mu   sync.Mutex
	regs Registries
}

func NewMemoryTransactor(regs Registries) *MemoryTransactor {
	return &MemoryTransactor{regs: regs}
}

func (t *MemoryTransactor) InTx(ctx context.Context, fn func(ctx context.Context, r Registries) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx, t.regs)
}

// BedUnit runs bed registry mutations as units of tx, so a bed change and its
// journal entry commit together and never interleave with an allocation.
func BedUnit(tx Transactor) beds.UnitOfWork {
	return func(ctx context.Context, fn func(context.Context, beds.Repository, eventstore.Store) error) error {
		return tx.InTx(ctx, func(ctx context.Context, r Registries) error {
			return fn(ctx, r.Beds, r.Events)
		})
	}
}

// allocationLockKey is the pg_advisory_xact_lock key shared by every
// allocation transaction.
const allocationLockKey int64 = 0x62656470

// PostgresTransactor runs each unit in one transaction holding a
// transaction-scoped advisory lock.
type PostgresTransactor struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPostgresTransactor(db *sqlx.DB, logger *zap.Logger) *PostgresTransactor {
	return &PostgresTransactor{db: db, logger: logger}
}

func (t *PostgresTransactor) InTx(ctx context.Context, fn func(ctx context.Context, r Registries) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, allocationLockKey); err != nil {
		return fmt.Errorf("acquire allocation lock: %w", err)
	}

	regs := Registries{
		Patients: patients.NewPostgresRepository(tx, t.logger),
		Beds:     beds.NewPostgresRepository(tx, t.logger),
		Stays:    NewPostgresRepository(tx, t.logger),
		Events:   eventstore.NewEventStore(t.db).WithTx(tx),
	}
	if err := fn(ctx, regs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
