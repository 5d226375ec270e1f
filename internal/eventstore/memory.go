package eventstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process journal with the same version semantics as
// EventStore.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	events map[journalKey][]Event
}

type journalKey struct {
	aggregateType string
	aggregateID   string
}

func NewMemory() *Memory {
	return &Memory{events: map[journalKey][]Event{}}
}

func (m *Memory) AppendEvents(_ context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	if expectedVersion < 0 {
		return ErrInvalidVersion
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := journalKey{aggregateType, aggregateID}
	if len(m.events[key]) != expectedVersion {
		return ErrConcurrencyConflict
	}
	for i, event := range events {
		m.nextID++
		event.ID = m.nextID
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = expectedVersion + i + 1
		event.CreatedAt = time.Now().UTC()
		m.events[key] = append(m.events[key], event)
	}
	return nil
}

func (m *Memory) LoadEvents(_ context.Context, aggregateID, aggregateType string, fromVersion, toVersion int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, event := range m.events[journalKey{aggregateType, aggregateID}] {
		if event.Version < fromVersion {
			continue
		}
		if toVersion > 0 && event.Version > toVersion {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (m *Memory) GetCurrentVersion(_ context.Context, aggregateID, aggregateType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events[journalKey{aggregateType, aggregateID}]), nil
}
