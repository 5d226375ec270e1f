package stays

import (
	"context"

	"github.com/golang-sql/civil"
)

// Repository is the stay registry. Create fails with apperr.ErrConflict when
// the id is taken.
type Repository interface {
	Create(ctx context.Context, s HospitalStay) (HospitalStay, error)
	Update(ctx context.Context, s HospitalStay) (HospitalStay, error)
	FindByID(ctx context.Context, id string) (HospitalStay, bool, error)
	FindAll(ctx context.Context) ([]HospitalStay, error)
	FindActiveOn(ctx context.Context, date civil.Date) ([]HospitalStay, error)
	FindByPatient(ctx context.Context, patientID string) ([]HospitalStay, error)
}
