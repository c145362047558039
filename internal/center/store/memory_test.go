package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"presence/internal/center/models"
	id "presence/pkg/domain"
	"presence/pkg/platform/sentinel"
)

type CenterStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *CenterStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestCenterStoreSuite(t *testing.T) {
	suite.Run(t, new(CenterStoreSuite))
}

func (s *CenterStoreSuite) newCenter(name string, active bool) *models.Center {
	now := time.Now()
	return &models.Center{
		ID:              id.CenterID(uuid.New()),
		Name:            name,
		Latitude:        -20.4697,
		Longitude:       -54.6201,
		ToleranceMeters: 100,
		Services:        []string{"Mapas"},
		Active:          active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *CenterStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds center by ID", func() {
		c := s.newCenter("Centro", true)
		s.Require().NoError(s.store.Create(s.ctx, c))

		found, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(c.Name, found.Name)
		s.Equal(c.ToleranceMeters, found.ToleranceMeters)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.CenterID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate ID", func() {
		c := s.newCenter("Dup", true)
		s.Require().NoError(s.store.Create(s.ctx, c))
		s.Require().ErrorIs(s.store.Create(s.ctx, c), sentinel.ErrConflict)
	})
}

func (s *CenterStoreSuite) TestListActive() {
	s.Require().NoError(s.store.Create(s.ctx, s.newCenter("Rodoviária", true)))
	s.Require().NoError(s.store.Create(s.ctx, s.newCenter("Aeroporto", true)))
	s.Require().NoError(s.store.Create(s.ctx, s.newCenter("Bioparque", false)))

	centers, err := s.store.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(centers, 2)
	s.Equal("Aeroporto", centers[0].Name)
	s.Equal("Rodoviária", centers[1].Name)
}

func (s *CenterStoreSuite) TestUpdates() {
	s.Run("persists changes", func() {
		c := s.newCenter("Centro", true)
		s.Require().NoError(s.store.Create(s.ctx, c))

		c.ToleranceMeters = 250
		c.Active = false
		s.Require().NoError(s.store.Update(s.ctx, c))

		found, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(250, found.ToleranceMeters)
		s.False(found.Active)
	})

	s.Run("returns ErrNotFound for unknown center", func() {
		err := s.store.Update(s.ctx, s.newCenter("Ghost", true))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned values are copies", func() {
		c := s.newCenter("Copy", true)
		s.Require().NoError(s.store.Create(s.ctx, c))

		found, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		found.Services[0] = "mutated"

		again, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("Mapas", again.Services[0])
	})
}
