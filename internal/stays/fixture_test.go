package stays

import (
	"context"
	"testing"
	"time"

	"bedplanner/internal/beds"
	"bedplanner/internal/eventstore"
	"bedplanner/internal/metrics"
	"bedplanner/internal/patients"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	t        *testing.T
	patients *patients.MemoryRepository
	beds     *beds.MemoryRepository
	stays    *MemoryRepository
	events   *eventstore.Memory
	metrics  *metrics.Metrics
	regs     Registries
	svc      Service
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:        t,
		patients: patients.NewMemoryRepository(),
		beds:     beds.NewMemoryRepository(),
		stays:    NewMemoryRepository(),
		events:   eventstore.NewMemory(),
		metrics:  metrics.New(),
	}
	f.regs = Registries{Patients: f.patients, Beds: f.beds, Stays: f.stays, Events: f.events}
	f.svc = NewService(f.regs, NewMemoryTransactor(f.regs), f.metrics, patients.NewPseudonymizer("test-key"), zap.NewNop())
	return f
}

func (f *fixture) patient(id string, isolation bool) patients.Patient {
	p := patients.Patient{
		ID:                id,
		FirstName:         "Jean",
		LastName:          id,
		BirthDate:         civil.Date{Year: 1970, Month: time.March, Day: 3},
		Sex:               patients.SexMale,
		IsolationRequired: isolation,
	}
	_, err := f.patients.Save(context.Background(), p)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) bed(id, code string, status beds.Status, isolation bool) beds.Bed {
	b := beds.Bed{ID: id, RoomID: "R-" + code[:3], Code: code, Status: status, IsolationCapable: isolation}
	_, err := f.beds.Save(context.Background(), b)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) stay(id, patientID, bedID, admission string, effective *civil.Date) HospitalStay {
	s := HospitalStay{
		ID:                     id,
		PatientID:              patientID,
		BedID:                  bedID,
		StayType:               StayWeek,
		AdmissionDate:          day(admission),
		DischargeDateEffective: effective,
	}
	_, err := f.stays.Create(context.Background(), s)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) placement() *Placement {
	return NewPlacement(f.patients, f.beds, f.stays)
}
