package storage

import (
	"context"
	"sync"

	"github.com/HVN-Network/permission_layer/ledger"
)

// MemoryStore keeps events in process. It backs nodes that run without a
// database and is the store the tests exercise handlers against.
type MemoryStore struct {
	mu     sync.RWMutex
	events []ledger.Event
	closed bool

	// ErrorOnNextCall is returned and cleared by the next store call,
	// for exercising error paths in tests.
	ErrorOnNextCall error
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ EventStore = (*MemoryStore)(nil)

// checkError returns and clears any injected error.
func (m *MemoryStore) checkError() error {
	if m.ErrorOnNextCall != nil {
		err := m.ErrorOnNextCall
		m.ErrorOnNextCall = nil
		return err
	}
	if m.closed {
		return errStoreClosed
	}
	return nil
}

func (m *MemoryStore) SaveEvents(ctx context.Context, events []ledger.Event) error {
	if err := m.checkError(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MemoryStore) Events(ctx context.Context, filter EventFilter) ([]ledger.Event, error) {
	if err := m.checkError(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := normalizeLimit(filter.Limit)
	var out []ledger.Event
	for _, e := range m.events {
		if !matches(e, filter) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) LatestSeq(ctx context.Context) (uint64, error) {
	if err := m.checkError(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.events) == 0 {
		return 0, nil
	}
	return m.events[len(m.events)-1].Seq, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
