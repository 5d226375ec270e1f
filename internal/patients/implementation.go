package patients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bedplanner/internal/apperr"

	"github.com/golang-sql/civil"
	"go.uber.org/zap"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	pseudo *Pseudonymizer
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new patient service instance.
func NewService(repo Repository, pseudo *Pseudonymizer, logger *zap.Logger) Service {
	return &service{
		repo:   repo,
		pseudo: pseudo,
		logger: logger,
		now:    time.Now,
	}
}

// CreatePatient registers a new patient. The id must not be in use.
func (s *service) CreatePatient(ctx context.Context, p Patient) (Patient, error) {
	if strings.TrimSpace(p.ID) == "" {
		return Patient{}, apperr.InvalidInput("patient id cannot be blank")
	}
	log := s.logger.With(zap.String("patient", s.pseudo.Pseudonym(p.ID)))
	log.Info("creating patient")

	_, exists, err := s.repo.FindByID(ctx, p.ID)
	if err != nil {
		return Patient{}, fmt.Errorf("failed to look up patient: %w", err)
	}
	if exists {
		log.Warn("attempt to create patient with existing id")
		return Patient{}, apperr.Conflict("patient with id %s already exists", p.ID)
	}
	if err := s.validate(p); err != nil {
		return Patient{}, err
	}

	saved, err := s.repo.Save(ctx, p)
	if err != nil {
		return Patient{}, fmt.Errorf("failed to save patient: %w", err)
	}
	log.Info("patient created")
	return saved, nil
}

// GetPatient returns the patient with the given id.
func (s *service) GetPatient(ctx context.Context, id string) (Patient, error) {
	if strings.TrimSpace(id) == "" {
		return Patient{}, apperr.InvalidInput("patient id cannot be blank")
	}
	p, ok, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Patient{}, fmt.Errorf("failed to look up patient: %w", err)
	}
	if !ok {
		return Patient{}, apperr.NotFound("patient", id)
	}
	return p, nil
}

func (s *service) ListPatients(ctx context.Context) ([]Patient, error) {
	return s.repo.FindAll(ctx)
}

// UpdatePatient replaces the stored patient with p.
func (s *service) UpdatePatient(ctx context.Context, p Patient) (Patient, error) {
	if _, err := s.GetPatient(ctx, p.ID); err != nil {
		return Patient{}, err
	}
	if err := s.validate(p); err != nil {
		return Patient{}, err
	}
	saved, err := s.repo.Save(ctx, p)
	if err != nil {
		return Patient{}, fmt.Errorf("failed to save patient: %w", err)
	}
	s.logger.Info("patient updated", zap.String("patient", s.pseudo.Pseudonym(p.ID)))
	return saved, nil
}

func (s *service) DeletePatient(ctx context.Context, id string) error {
	if _, err := s.GetPatient(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	s.logger.Info("patient deleted", zap.String("patient", s.pseudo.Pseudonym(id)))
	return nil
}

func (s *service) validate(p Patient) error {
	if strings.TrimSpace(p.FirstName) == "" {
		return apperr.InvalidInput("patient first name cannot be blank")
	}
	if strings.TrimSpace(p.LastName) == "" {
		return apperr.InvalidInput("patient last name cannot be blank")
	}
	if p.BirthDate == (civil.Date{}) {
		return apperr.InvalidInput("patient birth date is required")
	}
	if !p.BirthDate.IsValid() || p.BirthDate.After(civil.DateOf(s.now())) {
		return apperr.InvalidInput("patient birth date %s is invalid or in the future", p.BirthDate)
	}
	if !p.Sex.valid() {
		return apperr.InvalidInput("patient sex %q is not one of male, female, other", p.Sex)
	}
	return nil
}
