package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"presence/internal/attendance/models"
	id "presence/pkg/domain"
	"presence/pkg/platform/sentinel"
)

// InMemory keeps sessions in maps. The active index enforces the
// one-open-session-per-attendant rule atomically under the write lock, the
// same guarantee the partial unique index gives in Postgres.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
	active   map[id.AttendantID]id.SessionID
}

func NewInMemory() *InMemory {
	return &InMemory{
		sessions: make(map[id.SessionID]*models.Session),
		active:   make(map[id.AttendantID]id.SessionID),
	}
}

func (s *InMemory) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	if session.Status == models.StatusActive {
		if _, open := s.active[session.AttendantID]; open {
			return sentinel.ErrConflict
		}
		s.active[session.AttendantID] = session.ID
	}
	s.sessions[session.ID] = clone(session)
	return nil
}

func (s *InMemory) Update(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; !exists {
		return sentinel.ErrNotFound
	}
	openID, open := s.active[session.AttendantID]
	switch {
	case session.Status == models.StatusActive && open && openID != session.ID:
		return sentinel.ErrConflict
	case session.Status == models.StatusActive:
		s.active[session.AttendantID] = session.ID
	case open && openID == session.ID:
		delete(s.active, session.AttendantID)
	}
	s.sessions[session.ID] = clone(session)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(session), nil
}

func (s *InMemory) FindActiveByAttendant(_ context.Context, attendantID id.AttendantID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.active[attendantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.sessions[sessionID]), nil
}

// List returns matching sessions, newest first.
func (s *InMemory) List(_ context.Context, filter models.HistoryFilter) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Session{}
	for _, session := range s.sessions {
		if filter.Matches(session) {
			out = append(out, clone(session))
		}
	}
	slices.SortFunc(out, func(a, b *models.Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})
	return out, nil
}

// ListActive returns open sessions ordered by clock-in time.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Session, 0, len(s.active))
	for _, sessionID := range s.active {
		out = append(out, clone(s.sessions[sessionID]))
	}
	slices.SortFunc(out, func(a, b *models.Session) int {
		if c := a.ClockInTime.Compare(b.ClockInTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func clone(s *models.Session) *models.Session {
	cp := *s
	if s.ClockOutTime != nil {
		t := *s.ClockOutTime
		cp.ClockOutTime = &t
	}
	if s.ClockOutPosition != nil {
		p := *s.ClockOutPosition
		cp.ClockOutPosition = &p
	}
	if s.DurationHours != nil {
		h := *s.DurationHours
		cp.DurationHours = &h
	}
	return &cp
}
