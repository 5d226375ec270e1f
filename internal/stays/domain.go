// Package stays models hospital stays, their lifecycle and the placement of
// patients into free beds.
package stays

import (
	"fmt"

	"bedplanner/internal/apperr"

	"github.com/golang-sql/civil"
)

// StayType distinguishes full hospitalisation from day admissions.
type StayType string

const (
	StayWeek StayType = "week"
	StayDay  StayType = "day"
)

// ParseStayType validates s as a stay type.
func ParseStayType(s string) (StayType, error) {
	switch t := StayType(s); t {
	case StayWeek, StayDay:
		return t, nil
	case "":
		return "", apperr.InvalidInput("stay type is required")
	}
	return "", apperr.InvalidInput("unknown stay type %q", s)
}

// State is the lifecycle state of a stay.
type State string

const (
	StateOpen       State = "open"
	StateDischarged State = "discharged"
)

// ErrBedOccupied is returned when a stay would share its bed with another
// stay active on the same day.
var ErrBedOccupied = fmt.Errorf("bed is occupied: %w", apperr.ErrInvalidStateTransition)

// HospitalStay is the immutable record of a patient occupying a bed.
type HospitalStay struct {
	ID                     string      `json:"id"`
	PatientID              string      `json:"patient_id"`
	BedID                  string      `json:"bed_id"`
	StayType               StayType    `json:"stay_type"`
	AdmissionDate          civil.Date  `json:"admission_date"`
	DischargeDatePlanned   *civil.Date `json:"discharge_date_planned,omitempty"`
	DischargeDateEffective *civil.Date `json:"discharge_date_effective,omitempty"`
}

// State reports whether the stay is still open.
func (s HospitalStay) State() State {
	if s.DischargeDateEffective != nil {
		return StateDischarged
	}
	return StateOpen
}

// Discharge returns a copy of s discharged on the given day. The receiver is
// left untouched.
func (s HospitalStay) Discharge(on civil.Date) (HospitalStay, error) {
	if !on.IsValid() {
		return HospitalStay{}, apperr.InvalidInput("discharge date is required")
	}
	if on.Before(s.AdmissionDate) {
		return HospitalStay{}, apperr.InvalidInput(
			"discharge date %s is before admission date %s", on, s.AdmissionDate)
	}
	if s.State() == StateDischarged {
		return HospitalStay{}, apperr.InvalidTransition(
			"stay %s was already discharged on %s", s.ID, *s.DischargeDateEffective)
	}
	s.DischargeDateEffective = &on
	return s, nil
}

// IsActiveOn reports whether stay occupies its bed on date: admitted on or
// before date and not discharged before it. The planned discharge date is
// never consulted.
func IsActiveOn(stay HospitalStay, date civil.Date) bool {
	if date.Before(stay.AdmissionDate) {
		return false
	}
	return stay.DischargeDateEffective == nil || !stay.DischargeDateEffective.Before(date)
}

// OccupiesFrom reports whether stay holds its bed on date or on any later
// day. A stay opened on date runs until discharged, so it may only take a bed
// no such stay holds.
func OccupiesFrom(stay HospitalStay, date civil.Date) bool {
	return stay.DischargeDateEffective == nil || !stay.DischargeDateEffective.Before(date)
}

// StayAdmittedEvent opens a stay journal.
type StayAdmittedEvent struct {
	StayID               string      `json:"stay_id"`
	PatientID            string      `json:"patient_id"`
	BedID                string      `json:"bed_id"`
	StayType             StayType    `json:"stay_type"`
	AdmissionDate        civil.Date  `json:"admission_date"`
	DischargeDatePlanned *civil.Date `json:"discharge_date_planned,omitempty"`
	Placed               bool        `json:"placed"`
}

// StayDischargedEvent closes a stay journal.
type StayDischargedEvent struct {
	StayID        string     `json:"stay_id"`
	DischargeDate civil.Date `json:"discharge_date"`
}
