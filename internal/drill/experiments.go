package drill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bedplanner/internal/beds"
	"bedplanner/internal/client"
	"bedplanner/internal/patients"
	"bedplanner/internal/stays"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

// PlacementRace seeds one contested bed, then lets workers callers place
// fresh patients on date at the same time. The contested bed's code sorts
// ahead of ordinary bed codes so every caller targets it first.
func PlacementRace(c *client.Client, workers int, date civil.Date) Experiment {
	run := uuid.NewString()[:8]
	bedID := "drill-bed-" + run
	patientID := func(i int) string { return fmt.Sprintf("drill-%s-%03d", run, i) }

	var (
		mu     sync.Mutex
		placed []stays.HospitalStay
	)

	return Experiment{
		Name:       "concurrent-placement-race",
		Hypothesis: "Concurrent placements never put two patients in the same bed on the same day",
		Setup: []Action{
			{
				Name:   "seed-contested-bed",
				Target: "beds",
				Execute: func(ctx context.Context) error {
					_, err := c.CreateBed(ctx, beds.Bed{ID: bedID, RoomID: "drill", Code: "0000-DRILL-" + run})
					return err
				},
			},
			{
				Name:   "seed-patients",
				Target: "patients",
				Execute: func(ctx context.Context) error {
					for i := 0; i < workers; i++ {
						_, err := c.CreatePatient(ctx, patients.Patient{
							ID:        patientID(i),
							FirstName: "Drill",
							LastName:  run,
							BirthDate: civil.Date{Year: 1990, Month: time.January, Day: 1},
							Sex:       patients.SexOther,
						})
						if err != nil {
							return err
						}
					}
					return nil
				},
			},
		},
		SteadyState: []Probe{
			{
				Name: "double_booked_beds",
				Query: func(ctx context.Context) (float64, error) {
					active, err := c.ActiveStays(ctx, date)
					if err != nil {
						return 0, err
					}
					return float64(DoubleBooked(active)), nil
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
			{
				Name: "contested_bed_occupants",
				Query: func(ctx context.Context) (float64, error) {
					active, err := c.ActiveStays(ctx, date)
					if err != nil {
						return 0, err
					}
					n := 0
					for _, s := range active {
						if s.BedID == bedID {
							n++
						}
					}
					return float64(n), nil
				},
				Threshold: Threshold{Operator: "<=", Value: 1},
			},
		},
		Method: []Action{
			{
				Name:   "concurrent-placements",
				Target: "placements",
				Execute: func(ctx context.Context) error {
					errs := make([]error, workers)
					var wg sync.WaitGroup
					for i := 0; i < workers; i++ {
						wg.Add(1)
						go func(i int) {
							defer wg.Done()
							stay, ok, err := c.Place(ctx, client.PlacementRequest{
								PatientID:     patientID(i),
								StayType:      string(stays.StayDay),
								AdmissionDate: date,
							})
							if err != nil {
								errs[i] = err
								return
							}
							if ok {
								mu.Lock()
								placed = append(placed, stay)
								mu.Unlock()
							}
						}(i)
					}
					wg.Wait()
					return errors.Join(errs...)
				},
			},
		},
		Rollback: []Action{
			{
				Name:   "discharge-drill-stays",
				Target: "stays",
				Execute: func(ctx context.Context) error {
					mu.Lock()
					defer mu.Unlock()
					var errs []error
					for _, s := range placed {
						if _, err := c.Discharge(ctx, s.ID, date); err != nil {
							errs = append(errs, err)
						}
					}
					return errors.Join(errs...)
				},
			},
			{
				Name:   "retire-contested-bed",
				Target: "beds",
				Execute: func(ctx context.Context) error {
					_, err := c.UpdateBedStatus(ctx, bedID, beds.StatusOutOfOrder)
					return err
				},
			},
		},
		Validation: []Assertion{
			{
				Probe:     "double_booked_beds",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "No bed may hold two active stays on the drill date",
			},
			{
				Probe:     "contested_bed_occupants",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "Exactly one placement should land on the contested bed",
			},
		},
	}
}

// DoubleBooked counts beds referenced by more than one of the given stays.
func DoubleBooked(active []stays.HospitalStay) int {
	perBed := make(map[string]int)
	for _, s := range active {
		perBed[s.BedID]++
	}
	n := 0
	for _, count := range perBed {
		if count > 1 {
			n++
		}
	}
	return n
}
