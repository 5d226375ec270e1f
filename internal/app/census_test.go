package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bedplanner/internal/beds"
	"bedplanner/internal/eventstore"
	"bedplanner/internal/metrics"
	"bedplanner/internal/patients"
	"bedplanner/internal/stays"

	"github.com/golang-sql/civil"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCensusJob_SetsGauges(t *testing.T) {
	ctx := context.Background()
	regs := stays.Registries{
		Patients: patients.NewMemoryRepository(),
		Beds:     beds.NewMemoryRepository(),
		Stays:    stays.NewMemoryRepository(),
		Events:   eventstore.NewMemory(),
	}
	for _, b := range []beds.Bed{
		{ID: "B1", RoomID: "R1", Code: "101-A", Status: beds.StatusAvailable},
		{ID: "B2", RoomID: "R1", Code: "101-B", Status: beds.StatusAvailable},
		{ID: "B3", RoomID: "R1", Code: "101-C", Status: beds.StatusCleaning},
	} {
		_, err := regs.Beds.Save(ctx, b)
		require.NoError(t, err)
	}
	date := civil.Date{Year: 2025, Month: time.January, Day: 15}
	_, err := regs.Stays.Create(ctx, stays.HospitalStay{
		ID: "S1", PatientID: "P1", BedID: "B1", StayType: stays.StayDay, AdmissionDate: date,
	})
	require.NoError(t, err)

	m := metrics.New()
	job := &censusJob{regs: regs, metrics: m, logger: zap.NewNop(), today: func() civil.Date { return date }}
	job.run(ctx)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Beds.WithLabelValues(metrics.BedsOccupied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Beds.WithLabelValues(metrics.BedsFree)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Beds.WithLabelValues(metrics.BedsUnavailable)))
}

func TestNew_SchedulesCensus(t *testing.T) {
	cfg := memoryConfig()
	cfg.CensusInterval = time.Hour
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.Equal(t, http.StatusCreated, post(t, a.Router, "/beds", `{"id":"B1","room_id":"R1","code":"101-A"}`))

	assert.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return strings.Contains(rec.Body.String(), `bedplanner_beds{state="free"}`)
	}, 2*time.Second, 20*time.Millisecond)
}
