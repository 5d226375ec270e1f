package stays

import (
	"context"
	"sort"
	"sync"

	"bedplanner/internal/apperr"

	"github.com/golang-sql/civil"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	stays map[string]HospitalStay
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{stays: map[string]HospitalStay{}}
}

func (r *MemoryRepository) Create(_ context.Context, s HospitalStay) (HospitalStay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stays[s.ID]; exists {
		return HospitalStay{}, apperr.Conflict("stay with id %s already exists", s.ID)
	}
	r.stays[s.ID] = s
	return s, nil
}

func (r *MemoryRepository) Update(_ context.Context, s HospitalStay) (HospitalStay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stays[s.ID]; !exists {
		return HospitalStay{}, apperr.NotFound("stay", s.ID)
	}
	r.stays[s.ID] = s
	return s, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (HospitalStay, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stays[id]
	return s, ok, nil
}

func (r *MemoryRepository) FindAll(_ context.Context) ([]HospitalStay, error) {
	return r.filter(func(HospitalStay) bool { return true }), nil
}

func (r *MemoryRepository) FindActiveOn(_ context.Context, date civil.Date) ([]HospitalStay, error) {
	return r.filter(func(s HospitalStay) bool { return IsActiveOn(s, date) }), nil
}

func (r *MemoryRepository) FindByPatient(_ context.Context, patientID string) ([]HospitalStay, error) {
	return r.filter(func(s HospitalStay) bool { return s.PatientID == patientID }), nil
}

// filter returns matching stays by admission date, then id.
func (r *MemoryRepository) filter(keep func(HospitalStay) bool) []HospitalStay {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HospitalStay, 0, len(r.stays))
	for _, s := range r.stays {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AdmissionDate != out[j].AdmissionDate {
			return out[i].AdmissionDate.Before(out[j].AdmissionDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
