package beds

import (
	"context"
	"encoding/json"
	"testing"

	"bedplanner/internal/apperr"
	"bedplanner/internal/eventstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService() (Service, *MemoryRepository, *eventstore.Memory) {
	repo := NewMemoryRepository()
	es := eventstore.NewMemory()
	return NewService(repo, es, zap.NewNop()), repo, es
}

func TestCreateBed_DefaultsToAvailable(t *testing.T) {
	svc, repo, es := newTestService()
	ctx := context.Background()

	created, err := svc.CreateBed(ctx, Bed{ID: "B1", RoomID: "R1", Code: "101-A"})

	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, created.Status)
	stored, ok, err := repo.FindByID(ctx, "B1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, stored)

	events, err := es.LoadEvents(ctx, "B1", "bed", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "BedRegistered", events[0].EventType)
	var payload BedRegisteredEvent
	require.NoError(t, json.Unmarshal(events[0].EventData, &payload))
	assert.Equal(t, "101-A", payload.Code)
}

func TestCreateBed_Validation(t *testing.T) {
	cases := map[string]Bed{
		"blank id":       {RoomID: "R1", Code: "101-A"},
		"blank room":     {ID: "B1", Code: "101-A"},
		"blank code":     {ID: "B1", RoomID: "R1", Code: " "},
		"unknown status": {ID: "B1", RoomID: "R1", Code: "101-A", Status: "broken"},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, _ := newTestService()
			_, err := svc.CreateBed(context.Background(), b)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
}

func TestCreateBed_RejectsDuplicateID(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreateBed(ctx, Bed{ID: "B1", RoomID: "R1", Code: "101-A"})
	require.NoError(t, err)

	_, err = svc.CreateBed(ctx, Bed{ID: "B1", RoomID: "R2", Code: "201-A"})

	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUpdateBedStatus_JournalsEachChange(t *testing.T) {
	svc, _, es := newTestService()
	ctx := context.Background()
	_, err := svc.CreateBed(ctx, Bed{ID: "B1", RoomID: "R1", Code: "101-A"})
	require.NoError(t, err)

	_, err = svc.UpdateBedStatus(ctx, "B1", StatusCleaning)
	require.NoError(t, err)
	updated, err := svc.UpdateBedStatus(ctx, "B1", StatusOutOfOrder)
	require.NoError(t, err)

	assert.Equal(t, StatusOutOfOrder, updated.Status)
	events, err := es.LoadEvents(ctx, "B1", "bed", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, 3, events[2].Version)
	var change BedStatusChangedEvent
	require.NoError(t, json.Unmarshal(events[2].EventData, &change))
	assert.Equal(t, StatusCleaning, change.OldStatus)
	assert.Equal(t, StatusOutOfOrder, change.NewStatus)
}

func TestUpdateBedStatus_Errors(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.UpdateBedStatus(ctx, "B404", StatusCleaning)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.CreateBed(ctx, Bed{ID: "B1", RoomID: "R1", Code: "101-A"})
	require.NoError(t, err)
	_, err = svc.UpdateBedStatus(ctx, "B1", "dirty")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestListBeds_FiltersByStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for _, b := range []Bed{
		{ID: "B1", RoomID: "R1", Code: "101-A"},
		{ID: "B2", RoomID: "R1", Code: "101-B", Status: StatusCleaning},
		{ID: "B3", RoomID: "R2", Code: "102-A"},
	} {
		_, err := svc.CreateBed(ctx, b)
		require.NoError(t, err)
	}

	all, err := svc.ListBeds(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	available, err := svc.ListBeds(ctx, StatusAvailable)
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, "B1", available[0].ID)
	assert.Equal(t, "B3", available[1].ID)

	_, err = svc.ListBeds(ctx, "dirty")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestDeleteBed(t *testing.T) {
	svc, repo, es := newTestService()
	ctx := context.Background()
	_, err := svc.CreateBed(ctx, Bed{ID: "B1", RoomID: "R1", Code: "101-A"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBed(ctx, "B1"))

	_, ok, err := repo.FindByID(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, ok)
	events, err := es.LoadEvents(ctx, "B1", "bed", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "BedRemoved", events[len(events)-1].EventType)

	assert.ErrorIs(t, svc.DeleteBed(ctx, "B1"), apperr.ErrNotFound)
}

func TestCreateBed_ReRegisterAfterDelete(t *testing.T) {
	svc, _, es := newTestService()
	ctx := context.Background()
	_, err := svc.CreateBed(ctx, Bed{ID: "B1", RoomID: "R1", Code: "101-A"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteBed(ctx, "B1"))

	_, err = svc.CreateBed(ctx, Bed{ID: "B1", RoomID: "R9", Code: "901-A"})

	require.NoError(t, err)
	version, err := es.GetCurrentVersion(ctx, "B1", "bed")
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestMutationsRunInsideUnitOfWork(t *testing.T) {
	repo := NewMemoryRepository()
	es := eventstore.NewMemory()
	units := 0
	unit := func(ctx context.Context, fn func(context.Context, Repository, eventstore.Store) error) error {
		units++
		return fn(ctx, repo, es)
	}
	// The unit's registries win over the ones given to NewService.
	svc := NewService(NewMemoryRepository(), eventstore.NewMemory(), zap.NewNop(), WithUnitOfWork(unit))
	ctx := context.Background()

	_, err := svc.CreateBed(ctx, Bed{ID: "B1", RoomID: "R1", Code: "101-A"})
	require.NoError(t, err)
	_, err = svc.UpdateBedStatus(ctx, "B1", StatusCleaning)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteBed(ctx, "B1"))

	assert.Equal(t, 3, units)
	version, err := es.GetCurrentVersion(ctx, "B1", "bed")
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	_, found, err := repo.FindByID(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, found)
}
