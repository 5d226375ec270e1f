package patients

import "context"

// Repository is the patient registry.
type Repository interface {
	Save(ctx context.Context, p Patient) (Patient, error)
	FindByID(ctx context.Context, id string) (Patient, bool, error)
	FindAll(ctx context.Context) ([]Patient, error)
	DeleteByID(ctx context.Context, id string) error
}
