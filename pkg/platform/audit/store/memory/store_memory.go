// Package memory keeps audit events in process for tests and the
// database-less server mode.
package memory

import (
	"context"
	"sync"

	id "presence/pkg/domain"
	audit "presence/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}

func (s *InMemoryStore) ListByAttendant(_ context.Context, attendantID id.AttendantID) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.AttendantID == attendantID }), nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID id.SessionID) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.SessionID == sessionID }), nil
}

// CountByAction reports how many events of one kind were recorded.
func (s *InMemoryStore) CountByAction(_ context.Context, action audit.AuditEvent) int {
	return len(s.filter(func(e audit.Event) bool { return e.Action == string(action) }))
}

func (s *InMemoryStore) filter(keep func(audit.Event) bool) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
