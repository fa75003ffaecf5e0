package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"provify/internal/bug"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests and dry runs. Records are copied
// on the way in and out.
type MemStore struct {
	mu   sync.Mutex
	bugs map[string]*bug.Bug

	// FailSave, when set, is returned by SaveBug without storing anything.
	FailSave error
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{bugs: make(map[string]*bug.Bug)}
}

func (s *MemStore) LoadBug(_ context.Context, id string) (*bug.Bug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bugs[id]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}
	return b.Clone(), nil
}

func (s *MemStore) SaveBug(_ context.Context, b *bug.Bug) error {
	if b == nil {
		return errors.New("bug is nil")
	}
	if b.ID == "" {
		return errors.New("bug has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.bugs[b.ID] = b.Clone()
	return nil
}

func (s *MemStore) DeleteBug(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bugs[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	delete(s.bugs, id)
	return nil
}

func (s *MemStore) ListBugs(_ context.Context, f Filter) ([]*bug.Bug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*bug.Bug, 0, len(s.bugs))
	for _, b := range s.bugs {
		if f.match(b) {
			out = append(out, b.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(bugs []*bug.Bug) {
	sort.Slice(bugs, func(i, j int) bool {
		if !bugs[i].CreatedAt.Equal(bugs[j].CreatedAt) {
			return bugs[i].CreatedAt.After(bugs[j].CreatedAt)
		}
		return bugs[i].ID < bugs[j].ID
	})
}
