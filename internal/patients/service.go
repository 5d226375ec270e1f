package patients

import (
	"context"
)

// Service defines the interface for the patient registry.
type Service interface {
	CreatePatient(ctx context.Context, p Patient) (Patient, error)
	GetPatient(ctx context.Context, id string) (Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	UpdatePatient(ctx context.Context, p Patient) (Patient, error)
	DeletePatient(ctx context.Context, id string) error
}
