package stays

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bedplanner/internal/apperr"
	"bedplanner/internal/beds"
	"bedplanner/internal/eventstore"
	"bedplanner/internal/metrics"
	"bedplanner/internal/patients"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const aggregateType = "stay"

// service implements the Service interface.
type service struct {
	regs    Registries
	tx      Transactor
	order   BedOrder
	metrics *metrics.Metrics
	pseudo  *patients.Pseudonymizer
	logger  *zap.Logger
	newID   func() string
}

// NewService creates a new stay service. Reads go straight to regs; every
// write runs inside tx.
func NewService(regs Registries, tx Transactor, m *metrics.Metrics, pseudo *patients.Pseudonymizer, logger *zap.Logger) Service {
	return &service{
		regs:    regs,
		tx:      tx,
		order:   ByCode,
		metrics: m,
		pseudo:  pseudo,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

func (s *service) placement(r Registries, opts ...PlacementOption) *Placement {
	return NewPlacement(r.Patients, r.Beds, r.Stays, append([]PlacementOption{WithOrder(s.order)}, opts...)...)
}

// SuggestBed proposes a bed without reserving it. Two calls may return the
// same bed; use PlacePatient to allocate.
func (s *service) SuggestBed(ctx context.Context, patientID string, date civil.Date) (beds.Bed, bool, error) {
	return s.placement(s.regs).SuggestBedForPatient(ctx, patientID, date)
}

// PlacePatient picks a bed and opens a stay in it as one allocation unit.
// ok is false when no bed fits.
func (s *service) PlacePatient(ctx context.Context, req PlacementRequest) (HospitalStay, bool, error) {
	stay := HospitalStay{
		ID:                   req.StayID,
		PatientID:            req.PatientID,
		StayType:             req.StayType,
		AdmissionDate:        req.AdmissionDate,
		DischargeDatePlanned: req.DischargeDatePlanned,
	}
	if err := validateNewStay(stay); err != nil {
		s.metrics.Placements.WithLabelValues(metrics.OutcomeRejected).Inc()
		return HospitalStay{}, false, err
	}
	if stay.ID == "" {
		stay.ID = s.newID()
	}
	log := s.logger.With(
		zap.String("patient", s.pseudo.Pseudonym(req.PatientID)),
		zap.String("stay_id", stay.ID),
		zap.Stringer("date", req.AdmissionDate),
	)

	var placed bool
	err := s.tx.InTx(ctx, func(ctx context.Context, r Registries) error {
		bed, ok, err := s.placement(r, ForOpenStay()).SuggestBedForPatient(ctx, req.PatientID, req.AdmissionDate)
		if err != nil || !ok {
			return err
		}
		stay.BedID = bed.ID
		if err := s.admit(ctx, r, stay, true); err != nil {
			return err
		}
		placed = true
		return nil
	})
	if err != nil {
		s.metrics.Placements.WithLabelValues(metrics.OutcomeRejected).Inc()
		log.Warn("placement failed", zap.Error(err))
		return HospitalStay{}, false, err
	}
	if !placed {
		s.metrics.Placements.WithLabelValues(metrics.OutcomeNoBed).Inc()
		log.Info("no bed available")
		return HospitalStay{}, false, nil
	}
	s.metrics.Placements.WithLabelValues(metrics.OutcomePlaced).Inc()
	log.Info("patient placed", zap.String("bed_id", stay.BedID))
	return stay, true, nil
}

// CreateStay opens a stay in an explicitly chosen bed.
func (s *service) CreateStay(ctx context.Context, stay HospitalStay) (HospitalStay, error) {
	if err := validateNewStay(stay); err != nil {
		return HospitalStay{}, err
	}
	if strings.TrimSpace(stay.BedID) == "" {
		return HospitalStay{}, apperr.InvalidInput("bed id cannot be blank")
	}
	if stay.ID == "" {
		stay.ID = s.newID()
	}
	stay.DischargeDateEffective = nil

	err := s.tx.InTx(ctx, func(ctx context.Context, r Registries) error {
		_, found, err := r.Patients.FindByID(ctx, stay.PatientID)
		if err != nil {
			return fmt.Errorf("failed to look up patient: %w", err)
		}
		if !found {
			return apperr.NotFound("patient", stay.PatientID)
		}
		_, found, err = r.Beds.FindByID(ctx, stay.BedID)
		if err != nil {
			return fmt.Errorf("failed to look up bed: %w", err)
		}
		if !found {
			return apperr.NotFound("bed", stay.BedID)
		}
		all, err := r.Stays.FindAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to load stays: %w", err)
		}
		if _, taken := BookedBeds(all, stay.AdmissionDate)[stay.BedID]; taken {
			return fmt.Errorf("%w: bed %s from %s", ErrBedOccupied, stay.BedID, stay.AdmissionDate)
		}
		return s.admit(ctx, r, stay, false)
	})
	if err != nil {
		return HospitalStay{}, err
	}
	s.logger.Info("stay created",
		zap.String("stay_id", stay.ID),
		zap.String("patient", s.pseudo.Pseudonym(stay.PatientID)),
		zap.String("bed_id", stay.BedID),
	)
	return stay, nil
}

// DischargeStay closes an open stay on date.
func (s *service) DischargeStay(ctx context.Context, stayID string, date civil.Date) (HospitalStay, error) {
	if strings.TrimSpace(stayID) == "" {
		return HospitalStay{}, apperr.InvalidInput("stay id cannot be blank")
	}
	if !date.IsValid() {
		return HospitalStay{}, apperr.InvalidInput("discharge date is required")
	}

	var discharged HospitalStay
	err := s.tx.InTx(ctx, func(ctx context.Context, r Registries) error {
		stay, found, err := r.Stays.FindByID(ctx, stayID)
		if err != nil {
			return fmt.Errorf("failed to look up stay: %w", err)
		}
		if !found {
			return apperr.NotFound("stay", stayID)
		}
		discharged, err = stay.Discharge(date)
		if err != nil {
			return err
		}

		err = s.journal(ctx, r.Events, stayID, 1, "StayDischarged", StayDischargedEvent{
			StayID:        stayID,
			DischargeDate: date,
		})
		if err != nil {
			return err
		}
		if _, err := r.Stays.Update(ctx, discharged); err != nil {
			return fmt.Errorf("failed to save stay: %w", err)
		}
		return nil
	})
	if err != nil {
		return HospitalStay{}, err
	}
	s.metrics.Discharges.Inc()
	s.logger.Info("stay discharged", zap.String("stay_id", stayID), zap.Stringer("date", date))
	return discharged, nil
}

// GetStay returns the stay with the given id.
func (s *service) GetStay(ctx context.Context, id string) (HospitalStay, error) {
	if strings.TrimSpace(id) == "" {
		return HospitalStay{}, apperr.InvalidInput("stay id cannot be blank")
	}
	stay, found, err := s.regs.Stays.FindByID(ctx, id)
	if err != nil {
		return HospitalStay{}, fmt.Errorf("failed to look up stay: %w", err)
	}
	if !found {
		return HospitalStay{}, apperr.NotFound("stay", id)
	}
	return stay, nil
}

// ListStays returns the stays matching filter.
func (s *service) ListStays(ctx context.Context, filter ListFilter) ([]HospitalStay, error) {
	switch {
	case filter.PatientID != "" && filter.ActiveOn != nil:
		list, err := s.regs.Stays.FindByPatient(ctx, filter.PatientID)
		if err != nil {
			return nil, err
		}
		out := list[:0]
		for _, stay := range list {
			if IsActiveOn(stay, *filter.ActiveOn) {
				out = append(out, stay)
			}
		}
		return out, nil
	case filter.PatientID != "":
		return s.regs.Stays.FindByPatient(ctx, filter.PatientID)
	case filter.ActiveOn != nil:
		return s.regs.Stays.FindActiveOn(ctx, *filter.ActiveOn)
	}
	return s.regs.Stays.FindAll(ctx)
}

// StayHistory returns the journal of one stay in version order.
func (s *service) StayHistory(ctx context.Context, id string) ([]eventstore.Event, error) {
	if _, err := s.GetStay(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.regs.Events.LoadEvents(ctx, id, aggregateType, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load stay journal: %w", err)
	}
	return events, nil
}

// Census counts bed usage on date.
func (s *service) Census(ctx context.Context, date civil.Date) (Census, error) {
	return TakeCensus(ctx, s.regs.Beds, s.regs.Stays, date)
}

func (s *service) admit(ctx context.Context, r Registries, stay HospitalStay, placed bool) error {
	_, exists, err := r.Stays.FindByID(ctx, stay.ID)
	if err != nil {
		return fmt.Errorf("failed to look up stay: %w", err)
	}
	if exists {
		return apperr.Conflict("stay with id %s already exists", stay.ID)
	}
	err = s.journal(ctx, r.Events, stay.ID, 0, "StayAdmitted", StayAdmittedEvent{
		StayID:               stay.ID,
		PatientID:            stay.PatientID,
		BedID:                stay.BedID,
		StayType:             stay.StayType,
		AdmissionDate:        stay.AdmissionDate,
		DischargeDatePlanned: stay.DischargeDatePlanned,
		Placed:               placed,
	})
	if err != nil {
		return err
	}
	if _, err := r.Stays.Create(ctx, stay); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return err
		}
		return fmt.Errorf("failed to save stay: %w", err)
	}
	return nil
}

func (s *service) journal(ctx context.Context, es eventstore.Store, id string, expectedVersion int, eventType string, data interface{}) error {
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
			return apperr.Conflict("stay %s was modified concurrently", id)
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func validateNewStay(stay HospitalStay) error {
	if strings.TrimSpace(stay.PatientID) == "" {
		return apperr.InvalidInput("patient id cannot be blank")
	}
	if _, err := ParseStayType(string(stay.StayType)); err != nil {
		return err
	}
	if !stay.AdmissionDate.IsValid() {
		return apperr.InvalidInput("admission date is required")
	}
	if p := stay.DischargeDatePlanned; p != nil {
		if !p.IsValid() {
			return apperr.InvalidInput("planned discharge date is invalid")
		}
		if p.Before(stay.AdmissionDate) {
			return apperr.InvalidInput("planned discharge date %s is before admission date %s", *p, stay.AdmissionDate)
		}
	}
	return nil
}
