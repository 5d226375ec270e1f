package patients

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps patients in a map. Values are copied in and out so
// callers never share stored state.
type MemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]Patient
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{patients: map[string]Patient{}}
}

func (r *MemoryRepository) Save(_ context.Context, p Patient) (Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
	return p, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (Patient, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	return p, ok, nil
}

func (r *MemoryRepository) FindAll(_ context.Context) ([]Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Patient, 0, len(r.patients))
	for _, p := range r.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.patients, id)
	return nil
}
