package patients

import (
	"github.com/golang-sql/civil"
)

// Sex of a patient as recorded at admission.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
)

func (s Sex) valid() bool {
	switch s {
	case SexMale, SexFemale, SexOther:
		return true
	}
	return false
}

// Patient is an immutable record of a hospitalised person. Updates replace
// the stored value wholesale.
type Patient struct {
	ID                string     `json:"id"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	BirthDate         civil.Date `json:"birth_date"`
	Sex               Sex        `json:"sex"`
	ReducedMobility   bool       `json:"reduced_mobility"`
	IsolationRequired bool       `json:"isolation_required"`
	PhoneNumber       string     `json:"phone_number,omitempty"`
	Notes             string     `json:"notes,omitempty"`
}

// FullName joins first and last name.
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
