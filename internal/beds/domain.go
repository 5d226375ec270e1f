package beds

import (
	"fmt"

	"bedplanner/internal/apperr"
)

// Status is the operational state of a bed.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusOccupied   Status = "occupied"
	StatusCleaning   Status = "cleaning"
	StatusOutOfOrder Status = "out_of_order"
)

// ParseStatus validates s as a bed status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusAvailable, StatusOccupied, StatusCleaning, StatusOutOfOrder:
		return st, nil
	}
	return "", apperr.InvalidInput("unknown bed status %q", s)
}

// Bed is an immutable bed record. Status changes produce a new value.
type Bed struct {
	ID               string `json:"id"`
	RoomID           string `json:"room_id"`
	Code             string `json:"code"`
	Status           Status `json:"status"`
	IsolationCapable bool   `json:"isolation_capable"`
}

// WithStatus returns a copy of b carrying status.
func (b Bed) WithStatus(status Status) Bed {
	b.Status = status
	return b
}

func (b Bed) String() string {
	return fmt.Sprintf("%s (%s, room %s, %s)", b.Code, b.ID, b.RoomID, b.Status)
}

// BedRegisteredEvent is journaled when a bed is added to the registry.
type BedRegisteredEvent struct {
	ID               string `json:"id"`
	RoomID           string `json:"room_id"`
	Code             string `json:"code"`
	Status           Status `json:"status"`
	IsolationCapable bool   `json:"isolation_capable"`
}

// BedStatusChangedEvent is journaled on every status update.
type BedStatusChangedEvent struct {
	ID        string `json:"id"`
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`
}

// BedRemovedEvent is journaled when a bed is deleted.
type BedRemovedEvent struct {
	ID string `json:"id"`
}
