package stays

import (
	"context"
	"fmt"

	"bedplanner/internal/apperr"
	"bedplanner/internal/beds"

	"github.com/golang-sql/civil"
)

// Census is a snapshot of bed usage on one day.
type Census struct {
	Date civil.Date `json:"date"`
	// Total counts every registered bed, whatever its status.
	Total int `json:"total"`
	// Occupied counts beds holding a stay active on Date or flagged occupied.
	Occupied int `json:"occupied"`
	// Free counts beds the placement engine could hand out on Date.
	Free int `json:"free"`
	// Unavailable counts beds in cleaning or out of order.
	Unavailable int `json:"unavailable"`
}

// TakeCensus counts beds on date from one read of each registry.
func TakeCensus(ctx context.Context, br beds.Repository, sr Repository, date civil.Date) (Census, error) {
	if !date.IsValid() {
		return Census{}, apperr.InvalidInput("census date is required")
	}
	allBeds, err := br.FindAll(ctx)
	if err != nil {
		return Census{}, fmt.Errorf("failed to load beds: %w", err)
	}
	active, err := sr.FindActiveOn(ctx, date)
	if err != nil {
		return Census{}, fmt.Errorf("failed to load stays: %w", err)
	}

	occupied := OccupiedBeds(active, date)
	c := Census{Date: date, Total: len(allBeds)}
	for _, b := range allBeds {
		switch {
		case hasKey(occupied, b.ID), b.Status == beds.StatusOccupied:
			c.Occupied++
		case b.Status == beds.StatusAvailable:
			c.Free++
		default:
			c.Unavailable++
		}
	}
	return c, nil
}

func hasKey(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}
