package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"eve-industry/internal/logger"
)

// Repository persists matchers keyed by globally unique name.
// GetMatcher returns ErrNotFound for a missing name.
type Repository interface {
	GetMatcher(ctx context.Context, name string) (*Matcher, error)
	UpsertMatcher(ctx context.Context, m *Matcher) error
	DeleteMatcher(ctx context.Context, name string) error
	ListMatchers(ctx context.Context, owner int64) ([]*Matcher, error)
}

// Catalog checks that a key names something real. CanonicalKey returns the
// canonical spelling (blueprint names are normalised) and false for an
// unknown key.
type Catalog interface {
	CanonicalKey(kt KeyType, key string) (string, bool)
}

// Store is the matcher service. It owns no state beyond its collaborators.
type Store struct {
	repo    Repository
	catalog Catalog
}

// NewStore creates a Store. catalog may be nil to skip key validation.
func NewStore(repo Repository, catalog Catalog) *Store {
	return &Store{repo: repo, catalog: catalog}
}

// Create adds an empty matcher.
func (s *Store) Create(ctx context.Context, name string, owner int64, kind Kind) (*Matcher, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("empty name: %w", ErrInvalidPayload)
	}
	_, err := s.repo.GetMatcher(ctx, name)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%q: %w", name, ErrDuplicateName)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	m := New(name, owner, kind)
	if err := s.repo.UpsertMatcher(ctx, m); err != nil {
		return nil, fmt.Errorf("create matcher %q: %w", name, err)
	}
	logger.Info("MATCHER", fmt.Sprintf("user %d created %s matcher %q", owner, kind, name))
	return m, nil
}

// Get returns the owner's matcher. Another user's matcher reads as ErrNotFound.
func (s *Store) Get(ctx context.Context, name string, owner int64) (*Matcher, error) {
	m, err := s.repo.GetMatcher(ctx, name)
	if err != nil {
		return nil, err
	}
	if m.Owner != owner {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return m, nil
}

// Delete removes the owner's matcher.
func (s *Store) Delete(ctx context.Context, name string, owner int64) (*Matcher, error) {
	m, err := s.Get(ctx, name, owner)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteMatcher(ctx, name); err != nil {
		return nil, fmt.Errorf("delete matcher %q: %w", name, err)
	}
	logger.Info("MATCHER", fmt.Sprintf("user %d deleted matcher %q", owner, name))
	return m, nil
}

// List returns the owner's matchers sorted by name.
func (s *Store) List(ctx context.Context, owner int64) ([]*Matcher, error) {
	ms, err := s.repo.ListMatchers(ctx, owner)
	if err != nil {
		return nil, err
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })
	return ms, nil
}

// normaliseKey trims key and, when the catalog knows it, returns the
// canonical spelling. Unknown keys come back trimmed.
func (s *Store) normaliseKey(keyType KeyType, key string) (string, bool) {
	key = strings.TrimSpace(key)
	if s.catalog == nil {
		return key, true
	}
	if canon, ok := s.catalog.CanonicalKey(keyType, key); ok {
		return canon, true
	}
	return key, false
}

// SetOverride sets key under keyType to payload and persists the matcher.
// The payload variant must match the matcher kind; when a catalog is
// configured the key must exist and is stored in canonical form.
// It returns the key as stored.
func (s *Store) SetOverride(ctx context.Context, name string, owner int64, keyType KeyType, key string, payload Payload) (string, error) {
	m, err := s.Get(ctx, name, owner)
	if err != nil {
		return "", err
	}
	if _, err := ParseKeyType(string(keyType)); err != nil {
		return "", err
	}
	if payload == nil || payload.Kind() != m.Kind {
		return "", fmt.Errorf("%T on %s matcher: %w", payload, m.Kind, ErrInvalidPayload)
	}
	if err := payload.validate(); err != nil {
		return "", err
	}
	key, known := s.normaliseKey(keyType, key)
	if !known {
		return "", fmt.Errorf("%s %q: %w", keyType, key, ErrUnknownKey)
	}
	m.Data[keyType][key] = payload
	if err := s.repo.UpsertMatcher(ctx, m); err != nil {
		return "", fmt.Errorf("save matcher %q: %w", name, err)
	}
	logger.Info("MATCHER", fmt.Sprintf("%s: %s/%s = %s", name, keyType, key, payload))
	return key, nil
}

// UnsetOverride removes key from keyType. Removing an absent key is a
// no-op and does not write.
func (s *Store) UnsetOverride(ctx context.Context, name string, owner int64, keyType KeyType, key string) error {
	m, err := s.Get(ctx, name, owner)
	if err != nil {
		return err
	}
	if _, err := ParseKeyType(string(keyType)); err != nil {
		return err
	}
	key, _ = s.normaliseKey(keyType, key)
	if _, ok := m.Data[keyType][key]; !ok {
		return nil
	}
	delete(m.Data[keyType], key)
	if err := s.repo.UpsertMatcher(ctx, m); err != nil {
		return fmt.Errorf("save matcher %q: %w", name, err)
	}
	logger.Info("MATCHER", fmt.Sprintf("%s: %s/%s unset", name, keyType, key))
	return nil
}

// Resolve looks up a single override. The key is normalised as SetOverride
// stores it but never validated, and there is no fallback across key types.
func (s *Store) Resolve(ctx context.Context, name string, owner int64, keyType KeyType, key string) (Payload, bool, error) {
	m, err := s.Get(ctx, name, owner)
	if err != nil {
		return nil, false, err
	}
	if _, err := ParseKeyType(string(keyType)); err != nil {
		return nil, false, err
	}
	key, _ = s.normaliseKey(keyType, key)
	p, ok := m.Data[keyType][key]
	return p, ok, nil
}

// Describe renders a matcher as an indented tree, key types in fixed
// order and keys sorted.
func Describe(m *Matcher) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: type:%s\n", m.Name, m.Kind)
	for _, kt := range KeyTypes {
		fmt.Fprintf(&b, "├── %s:\n", kt)
		for _, k := range m.Keys(kt) {
			fmt.Fprintf(&b, "│   ├── %s: %s\n", k, m.Data[kt][k])
		}
	}
	return b.String()
}
