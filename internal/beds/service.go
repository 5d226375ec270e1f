package beds

import (
	"context"
)

// Service defines the interface for the bed registry.
type Service interface {
	CreateBed(ctx context.Context, b Bed) (Bed, error)
	GetBed(ctx context.Context, id string) (Bed, error)
	ListBeds(ctx context.Context, status Status) ([]Bed, error)
	UpdateBedStatus(ctx context.Context, id string, status Status) (Bed, error)
	DeleteBed(ctx context.Context, id string) error
}
