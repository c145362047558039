package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"presence/internal/center/models"
	id "presence/pkg/domain"
	"presence/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded center store for dev mode and tests.
type InMemory struct {
	mu      sync.RWMutex
	centers map[id.CenterID]*models.Center
}

func NewInMemory() *InMemory {
	return &InMemory{centers: make(map[id.CenterID]*models.Center)}
}

func (s *InMemory) Create(_ context.Context, c *models.Center) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.centers[c.ID]; exists {
		return sentinel.ErrConflict
	}
	s.centers[c.ID] = clone(c)
	return nil
}

func (s *InMemory) Update(_ context.Context, c *models.Center) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.centers[c.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.centers[c.ID] = clone(c)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, centerID id.CenterID) (*models.Center, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.centers[centerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

// ListActive returns active centers ordered by name.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Center, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Center, 0, len(s.centers))
	for _, c := range s.centers {
		if c.Active {
			out = append(out, clone(c))
		}
	}
	slices.SortFunc(out, func(a, b *models.Center) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// clone keeps callers from mutating stored state through shared pointers.
func clone(c *models.Center) *models.Center {
	cp := *c
	cp.Services = slices.Clone(c.Services)
	return &cp
}
