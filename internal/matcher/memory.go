package matcher

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository keeps matchers in a map. Stored values are deep copies,
// so callers cannot mutate the repository through a returned matcher.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*Matcher
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*Matcher)}
}

func (r *MemoryRepository) GetMatcher(_ context.Context, name string) (*Matcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return m.Clone(), nil
}

func (r *MemoryRepository) UpsertMatcher(_ context.Context, m *Matcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.Name] = m.Clone()
	return nil
}

func (r *MemoryRepository) DeleteMatcher(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, name)
	return nil
}

func (r *MemoryRepository) ListMatchers(_ context.Context, owner int64) ([]*Matcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Matcher
	for _, m := range r.byID {
		if m.Owner == owner {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

// Clone returns a deep copy.
func (m *Matcher) Clone() *Matcher {
	c := &Matcher{Name: m.Name, Owner: m.Owner, Kind: m.Kind, Data: NewData()}
	for kt, t := range m.Data {
		if c.Data[kt] == nil {
			c.Data[kt] = make(map[string]Payload, len(t))
		}
		for k, p := range t {
			c.Data[kt][k] = p
		}
	}
	return c
}
