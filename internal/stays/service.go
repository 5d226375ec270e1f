package stays

import (
	"context"

	"bedplanner/internal/beds"
	"bedplanner/internal/eventstore"

	"github.com/golang-sql/civil"
)

// PlacementRequest asks for a stay in whichever bed the placement engine
// picks. StayID is generated when empty.
type PlacementRequest struct {
	StayID               string
	PatientID            string
	StayType             StayType
	AdmissionDate        civil.Date
	DischargeDatePlanned *civil.Date
}

// ListFilter narrows ListStays. Zero fields match everything.
type ListFilter struct {
	PatientID string
	ActiveOn  *civil.Date
}

// Service defines the interface for stay management and bed placement.
type Service interface {
	SuggestBed(ctx context.Context, patientID string, date civil.Date) (beds.Bed, bool, error)
	PlacePatient(ctx context.Context, req PlacementRequest) (HospitalStay, bool, error)
	CreateStay(ctx context.Context, stay HospitalStay) (HospitalStay, error)
	DischargeStay(ctx context.Context, stayID string, date civil.Date) (HospitalStay, error)
	GetStay(ctx context.Context, id string) (HospitalStay, error)
	ListStays(ctx context.Context, filter ListFilter) ([]HospitalStay, error)
	StayHistory(ctx context.Context, id string) ([]eventstore.Event, error)
	Census(ctx context.Context, date civil.Date) (Census, error)
}
