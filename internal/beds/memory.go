package beds

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepository struct {
	mu   sync.RWMutex
	beds map[string]Bed
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{beds: map[string]Bed{}}
}

func (r *MemoryRepository) Save(_ context.Context, b Bed) (Bed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beds[b.ID] = b
	return b, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (Bed, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.beds[id]
	return b, ok, nil
}

// FindAll returns beds ordered by id. Callers must not rely on this order
// for allocation.
func (r *MemoryRepository) FindAll(_ context.Context) ([]Bed, error) {
	return r.filter(func(Bed) bool { return true }), nil
}

func (r *MemoryRepository) FindByStatus(_ context.Context, status Status) ([]Bed, error) {
	return r.filter(func(b Bed) bool { return b.Status == status }), nil
}

func (r *MemoryRepository) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.beds, id)
	return nil
}

func (r *MemoryRepository) filter(keep func(Bed) bool) []Bed {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Bed, 0, len(r.beds))
	for _, b := range r.beds {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
