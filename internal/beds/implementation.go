package beds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bedplanner/internal/apperr"
	"bedplanner/internal/eventstore"

	"go.uber.org/zap"
)

const aggregateType = "bed"

// UnitOfWork runs fn with a repository and a journal whose writes commit or
// roll back together.
type UnitOfWork func(ctx context.Context, fn func(ctx context.Context, repo Repository, es eventstore.Store) error) error

// Option configures the bed service.
type Option func(*service)

// WithUnitOfWork routes every mutation through unit. Without it the service
// writes to the repository and journal it was built with, one call at a time.
func WithUnitOfWork(unit UnitOfWork) Option {
	return func(s *service) { s.unit = unit }
}

// service implements the Service interface.
type service struct {
	repo       Repository
	eventStore eventstore.Store
	unit       UnitOfWork
	logger     *zap.Logger
}

// NewService creates a new bed service instance.
func NewService(repo Repository, es eventstore.Store, logger *zap.Logger, opts ...Option) Service {
	s := &service{
		repo:       repo,
		eventStore: es,
		logger:     logger,
	}
	s.unit = func(ctx context.Context, fn func(context.Context, Repository, eventstore.Store) error) error {
		return fn(ctx, s.repo, s.eventStore)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBed adds a bed to the registry. An empty status defaults to available.
func (s *service) CreateBed(ctx context.Context, b Bed) (Bed, error) {
	if strings.TrimSpace(b.ID) == "" {
		return Bed{}, apperr.InvalidInput("bed id cannot be blank")
	}
	log := s.logger.With(zap.String("bed_id", b.ID))
	log.Info("creating bed")

	if strings.TrimSpace(b.RoomID) == "" {
		return Bed{}, apperr.InvalidInput("room id cannot be blank")
	}
	if strings.TrimSpace(b.Code) == "" {
		return Bed{}, apperr.InvalidInput("bed code cannot be blank")
	}
	if b.Status == "" {
		b.Status = StatusAvailable
	}
	if _, err := ParseStatus(string(b.Status)); err != nil {
		return Bed{}, err
	}

	var saved Bed
	err := s.unit(ctx, func(ctx context.Context, repo Repository, es eventstore.Store) error {
		_, exists, err := repo.FindByID(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("failed to look up bed: %w", err)
		}
		if exists {
			log.Warn("attempt to create bed with existing id")
			return apperr.Conflict("bed with id %s already exists", b.ID)
		}
		err = s.journal(ctx, es, b.ID, "BedRegistered", BedRegisteredEvent{
			ID:               b.ID,
			RoomID:           b.RoomID,
			Code:             b.Code,
			Status:           b.Status,
			IsolationCapable: b.IsolationCapable,
		})
		if err != nil {
			return err
		}
		saved, err = repo.Save(ctx, b)
		if err != nil {
			return fmt.Errorf("failed to save bed: %w", err)
		}
		return nil
	})
	if err != nil {
		return Bed{}, err
	}
	log.Info("bed created", zap.String("code", saved.Code))
	return saved, nil
}

// GetBed returns the bed with the given id.
func (s *service) GetBed(ctx context.Context, id string) (Bed, error) {
	if strings.TrimSpace(id) == "" {
		return Bed{}, apperr.InvalidInput("bed id cannot be blank")
	}
	return findBed(ctx, s.repo, id)
}

// ListBeds returns every bed, or only those in status when it is set.
func (s *service) ListBeds(ctx context.Context, status Status) ([]Bed, error) {
	if status == "" {
		return s.repo.FindAll(ctx)
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}
	return s.repo.FindByStatus(ctx, status)
}

// UpdateBedStatus replaces the stored bed with a copy carrying status.
func (s *service) UpdateBedStatus(ctx context.Context, id string, status Status) (Bed, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Bed{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Bed{}, apperr.InvalidInput("bed id cannot be blank")
	}

	var existing, updated Bed
	err := s.unit(ctx, func(ctx context.Context, repo Repository, es eventstore.Store) error {
		var err error
		existing, err = findBed(ctx, repo, id)
		if err != nil {
			return err
		}
		err = s.journal(ctx, es, id, "BedStatusChanged", BedStatusChangedEvent{
			ID:        id,
			OldStatus: existing.Status,
			NewStatus: status,
		})
		if err != nil {
			return err
		}
		updated, err = repo.Save(ctx, existing.WithStatus(status))
		if err != nil {
			return fmt.Errorf("failed to save bed: %w", err)
		}
		return nil
	})
	if err != nil {
		return Bed{}, err
	}
	s.logger.Info("bed status updated",
		zap.String("bed_id", id),
		zap.String("old_status", string(existing.Status)),
		zap.String("new_status", string(status)),
	)
	return updated, nil
}

// DeleteBed removes a bed from the registry.
func (s *service) DeleteBed(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.InvalidInput("bed id cannot be blank")
	}
	err := s.unit(ctx, func(ctx context.Context, repo Repository, es eventstore.Store) error {
		if _, err := findBed(ctx, repo, id); err != nil {
			return err
		}
		if err := s.journal(ctx, es, id, "BedRemoved", BedRemovedEvent{ID: id}); err != nil {
			return err
		}
		if err := repo.DeleteByID(ctx, id); err != nil {
			return fmt.Errorf("failed to delete bed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("bed deleted", zap.String("bed_id", id))
	return nil
}

func findBed(ctx context.Context, repo Repository, id string) (Bed, error) {
	b, ok, err := repo.FindByID(ctx, id)
	if err != nil {
		return Bed{}, fmt.Errorf("failed to look up bed: %w", err)
	}
	if !ok {
		return Bed{}, apperr.NotFound("bed", id)
	}
	return b, nil
}

// journal appends one event at the end of the bed's journal. A bed id can be
// re-registered after removal, so the journal may already hold events.
func (s *service) journal(ctx context.Context, es eventstore.Store, id string, eventType string, data interface{}) error {
	expectedVersion, err := es.GetCurrentVersion(ctx, id, aggregateType)
	if err != nil {
		return fmt.Errorf("failed to read bed journal: %w", err)
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	event := eventstore.Event{
		AggregateID:   id,
		AggregateType: aggregateType,
		EventType:     eventType,
		EventData:     jsonData,
		Version:       expectedVersion + 1,
	}
	if err := es.AppendEvents(ctx, id, aggregateType, expectedVersion, []eventstore.Event{event}); err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return apperr.Conflict("bed %s was modified concurrently", id)
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}
