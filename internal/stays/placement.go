package stays

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"bedplanner/internal/apperr"
	"bedplanner/internal/beds"
	"bedplanner/internal/patients"

	"github.com/golang-sql/civil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BedOrder ranks candidate beds; the placement engine picks the first bed
// after sorting. It returns a negative number when a ranks before b.
type BedOrder func(a, b beds.Bed) int

// ByCode ranks beds by ascending code, then id.
func ByCode(a, b beds.Bed) int {
	if c := strings.Compare(a.Code, b.Code); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// OccupiedBeds returns the ids of beds holding a stay active on date.
func OccupiedBeds(all []HospitalStay, date civil.Date) map[string]struct{} {
	occupied := make(map[string]struct{})
	for _, stay := range all {
		if IsActiveOn(stay, date) {
			occupied[stay.BedID] = struct{}{}
		}
	}
	return occupied
}

// BookedBeds returns the ids of beds holding a stay on date or on any later
// day, the beds an open-ended stay starting on date must avoid.
func BookedBeds(all []HospitalStay, date civil.Date) map[string]struct{} {
	booked := make(map[string]struct{})
	for _, stay := range all {
		if OccupiesFrom(stay, date) {
			booked[stay.BedID] = struct{}{}
		}
	}
	return booked
}

// EligibleBeds keeps the available beds that are not occupied, sorted by
// code. The input slice is not modified.
func EligibleBeds(all []beds.Bed, occupied map[string]struct{}) []beds.Bed {
	return EligibleBedsBy(all, occupied, ByCode)
}

// EligibleBedsBy is EligibleBeds with an explicit ordering.
func EligibleBedsBy(all []beds.Bed, occupied map[string]struct{}, order BedOrder) []beds.Bed {
	out := make([]beds.Bed, 0, len(all))
	for _, b := range all {
		if b.Status != beds.StatusAvailable {
			continue
		}
		if _, taken := occupied[b.ID]; taken {
			continue
		}
		out = append(out, b)
	}
	slices.SortStableFunc(out, order)
	return out
}

// CompatibleWith drops the candidates patient may not be placed in. Patients
// requiring isolation only fit isolation capable beds. Order is preserved.
func CompatibleWith(patient patients.Patient, candidates []beds.Bed) []beds.Bed {
	if !patient.IsolationRequired {
		return candidates
	}
	out := make([]beds.Bed, 0, len(candidates))
	for _, b := range candidates {
		if b.IsolationCapable {
			out = append(out, b)
		}
	}
	return out
}

// Placement suggests a bed for a patient on a given day. It only reads the
// registries and reserves nothing.
type Placement struct {
	patients patients.Repository
	beds     beds.Repository
	stays    Repository
	order    BedOrder
	occupied func([]HospitalStay, civil.Date) map[string]struct{}
	tracer   trace.Tracer
}

// PlacementOption configures a Placement.
type PlacementOption func(*Placement)

// WithOrder replaces the default ByCode ranking.
func WithOrder(order BedOrder) PlacementOption {
	return func(p *Placement) { p.order = order }
}

// ForOpenStay also excludes beds booked by a stay starting after the
// placement date, so the bed stays free for an open-ended stay.
func ForOpenStay() PlacementOption {
	return func(p *Placement) { p.occupied = BookedBeds }
}

func NewPlacement(pr patients.Repository, br beds.Repository, sr Repository, opts ...PlacementOption) *Placement {
	p := &Placement{
		patients: pr,
		beds:     br,
		stays:    sr,
		order:    ByCode,
		occupied: OccupiedBeds,
		tracer:   otel.Tracer("bedplanner/stays"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SuggestBedForPatient returns the first eligible bed for the patient on
// date. ok is false when no bed fits; that is not an error.
func (p *Placement) SuggestBedForPatient(ctx context.Context, patientID string, date civil.Date) (beds.Bed, bool, error) {
	ctx, span := p.tracer.Start(ctx, "placement.suggest",
		trace.WithAttributes(attribute.String("date", date.String())),
	)
	defer span.End()

	if strings.TrimSpace(patientID) == "" {
		return beds.Bed{}, false, apperr.InvalidInput("patient id cannot be blank")
	}
	if !date.IsValid() {
		return beds.Bed{}, false, apperr.InvalidInput("placement date is required")
	}

	patient, found, err := p.patients.FindByID(ctx, patientID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return beds.Bed{}, false, fmt.Errorf("failed to look up patient: %w", err)
	}
	if !found {
		return beds.Bed{}, false, apperr.NotFound("patient", patientID)
	}

	allStays, err := p.stays.FindAll(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return beds.Bed{}, false, fmt.Errorf("failed to load stays: %w", err)
	}
	allBeds, err := p.beds.FindAll(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return beds.Bed{}, false, fmt.Errorf("failed to load beds: %w", err)
	}

	candidates := EligibleBedsBy(allBeds, p.occupied(allStays, date), p.order)
	candidates = CompatibleWith(patient, candidates)
	span.SetAttributes(
		attribute.Int("beds.total", len(allBeds)),
		attribute.Int("beds.candidates", len(candidates)),
	)
	if len(candidates) == 0 {
		return beds.Bed{}, false, nil
	}
	span.SetAttributes(attribute.String("bed.id", candidates[0].ID))
	return candidates[0], true, nil
}
