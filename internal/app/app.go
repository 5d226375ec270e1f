// Package app wires storage, locking and services into the HTTP router
// served by cmd/bedplanner.
package app

import (
	"context"
	"fmt"
	"net/http"

	"bedplanner/internal/beds"
	"bedplanner/internal/config"
	"bedplanner/internal/database"
	"bedplanner/internal/eventstore"
	"bedplanner/internal/httpapi"
	"bedplanner/internal/metrics"
	"bedplanner/internal/patients"
	"bedplanner/internal/stays"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// allocationLockKey names the Redis lease shared by every API replica.
const allocationLockKey = "bedplanner:allocation"

// App is a fully wired API server.
type App struct {
	Router  http.Handler
	Metrics *metrics.Metrics
	closers []func() error
}

// New builds the registries for cfg.Storage.Driver, wraps allocation in the
// Redis lock when cfg.Lock.Backend asks for it, and assembles the router.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Metrics: metrics.New()}

	regs, tx, err := a.storage(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	switch cfg.Lock.Backend {
	case config.LockLocal:
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		tx = stays.NewLockedTransactor(stays.NewRedisLocker(client, cfg.Lock.TTL), tx, allocationLockKey, logger)
		logger.Info("allocation serialized through redis", zap.String("addr", cfg.Redis.Addr))
	default:
		a.Close()
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}

	pseudo := patients.NewPseudonymizer(cfg.PseudonymKey)
	a.Router = httpapi.NewRouter(httpapi.Options{
		Patients:           patients.NewService(regs.Patients, pseudo, logger.Named("patients")),
		Beds:               beds.NewService(regs.Beds, regs.Events, logger.Named("beds"), beds.WithUnitOfWork(stays.BedUnit(tx))),
		Stays:              stays.NewService(regs, tx, a.Metrics, pseudo, logger.Named("stays")),
		Metrics:            a.Metrics,
		Logger:             logger.Named("http"),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	if cfg.CensusInterval > 0 {
		job := &censusJob{regs: regs, metrics: a.Metrics, logger: logger.Named("census"), today: today}
		if err := a.scheduleCensus(job, cfg.CensusInterval); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) storage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (stays.Registries, stays.Transactor, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		regs := stays.Registries{
			Patients: patients.NewMemoryRepository(),
			Beds:     beds.NewMemoryRepository(),
			Stays:    stays.NewMemoryRepository(),
			Events:   eventstore.NewMemory(),
		}
		logger.Info("using in-memory storage")
		return regs, stays.NewMemoryTransactor(regs), nil
	case config.StoragePostgres:
		db, err := database.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return stays.Registries{}, nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := database.Migrate(ctx, db); err != nil {
			return stays.Registries{}, nil, err
		}
		regs := stays.Registries{
			Patients: patients.NewPostgresRepository(db, logger),
			Beds:     beds.NewPostgresRepository(db, logger),
			Stays:    stays.NewPostgresRepository(db, logger),
			Events:   eventstore.NewEventStore(db),
		}
		logger.Info("using postgres storage")
		return regs, stays.NewPostgresTransactor(db, logger), nil
	}
	return stays.Registries{}, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Close stops the census scheduler and releases the database pool and the
// Redis client.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
