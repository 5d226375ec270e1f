package beds

import "context"

// Repository is the bed registry.
type Repository interface {
	Save(ctx context.Context, b Bed) (Bed, error)
	FindByID(ctx context.Context, id string) (Bed, bool, error)
	FindAll(ctx context.Context) ([]Bed, error)
	FindByStatus(ctx context.Context, status Status) ([]Bed, error)
	DeleteByID(ctx context.Context, id string) error
}
