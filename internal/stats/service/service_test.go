package service

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	attendancemodels "presence/internal/attendance/models"
	centermodels "presence/internal/center/models"
	centerservice "presence/internal/center/service"
	centerstore "presence/internal/center/store"
	"presence/internal/stats/models"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/testutil"
)

func ptr[T any](v T) *T { return &v }

type fakeSessions struct {
	sessions []*attendancemodels.Session
	calls    int
}

func (f *fakeSessions) History(_ context.Context, filter attendancemodels.HistoryFilter) ([]*attendancemodels.Session, error) {
	f.calls++
	var out []*attendancemodels.Session
	for _, s := range f.sessions {
		if filter.Matches(s) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b *attendancemodels.Session) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

type mapCache struct {
	entries map[string][]models.CenterStats
	failGet bool
}

func (m *mapCache) Get(_ context.Context, key string) ([]models.CenterStats, bool, error) {
	if m.failGet {
		return nil, false, errors.New("redis down")
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, stats []models.CenterStats) error {
	m.entries[key] = stats
	return nil
}

type StatsServiceSuite struct {
	suite.Suite
	ctx      context.Context
	centers  *centerservice.Service
	sessions *fakeSessions
	service  *Service
	centro   *centermodels.Center
}

func TestStatsServiceSuite(t *testing.T) {
	suite.Run(t, new(StatsServiceSuite))
}

func (s *StatsServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.centers = centerservice.New(centerstore.NewInMemory())
	s.sessions = &fakeSessions{}
	s.service = New(s.centers, s.sessions)

	var err error
	s.centro, err = s.centers.Create(s.ctx, centermodels.CreateCenterRequest{
		Name:            "Centro",
		Latitude:        ptr(-20.4697),
		Longitude:       ptr(-54.6201),
		ToleranceMeters: 100,
	})
	s.Require().NoError(err)
}

func completedSession(t *testing.T, centerID id.CenterID, clockIn time.Time, worked time.Duration) *attendancemodels.Session {
	t.Helper()
	session := attendancemodels.NewSession(id.NewSessionID(), centerID, id.AttendantID(uuid.New()), "Ana",
		attendancemodels.Position{Latitude: -20.4697, Longitude: -54.6201}, "", clockIn)
	if worked > 0 {
		require.NoError(t, session.Complete(clockIn.Add(worked), nil, ""))
	}
	return session
}

func (s *StatsServiceSuite) addSession(centerID id.CenterID, clockIn time.Time, worked time.Duration) {
	s.sessions.sessions = append(s.sessions.sessions, completedSession(s.T(), centerID, clockIn, worked))
}

func TestAttendanceRateOverWorkingWeek(t *testing.T) {
	ctx := context.Background()
	centers := centerservice.New(centerstore.NewInMemory())
	sessions := &fakeSessions{}
	svc := New(centers, sessions)

	var (
		centro *centermodels.Center
		week   *models.Period
		stats  []models.CenterStats
	)
	testutil.Given(t, "a center and three sessions inside a five-weekday period", func(t *testing.T) {
		var err error
		centro, err = centers.Create(ctx, centermodels.CreateCenterRequest{
			Name:            "Centro",
			Latitude:        ptr(-20.4697),
			Longitude:       ptr(-54.6201),
			ToleranceMeters: 100,
		})
		require.NoError(t, err)
		week, err = models.NewPeriod(date(2025, 3, 3), date(2025, 3, 7).Add(23*time.Hour))
		require.NoError(t, err)

		sessions.sessions = []*attendancemodels.Session{
			completedSession(t, centro.ID, date(2025, 3, 3).Add(9*time.Hour), 8*time.Hour),
			completedSession(t, centro.ID, date(2025, 3, 4).Add(9*time.Hour), 8*time.Hour+30*time.Minute),
			completedSession(t, centro.ID, date(2025, 3, 5).Add(9*time.Hour), 0),
			completedSession(t, centro.ID, date(2025, 3, 10).Add(9*time.Hour), 4*time.Hour),
		}
	})
	testutil.When(t, "stats are computed for the period", func(t *testing.T) {
		var err error
		stats, err = svc.StatsFor(ctx, &centro.ID, week)
		require.NoError(t, err)
		require.Len(t, stats, 1)
	})
	testutil.Then(t, "the attendance rate is 60%", func(t *testing.T) {
		require.Len(t, stats, 1)
		st := stats[0]
		assert.Equal(t, 3, st.TotalDays)
		assert.Equal(t, 5, st.WorkingDays)
		assert.InDelta(t, 60.0, st.AttendanceRate, 0.001)
		assert.InDelta(t, 16.5, st.TotalHours, 0.001)
		assert.InDelta(t, 5.5, st.AverageHoursPerDay, 0.001)
		assert.Equal(t, 1, st.CurrentAttendants)
		require.NotNil(t, st.LastAttendance)
		assert.True(t, st.LastAttendance.Equal(date(2025, 3, 5).Add(9*time.Hour)))
	})
}

func (s *StatsServiceSuite) TestZeroSessions() {
	stats, err := s.service.StatsFor(s.ctx, &s.centro.ID, nil)
	s.Require().NoError(err)
	s.Require().Len(stats, 1)

	st := stats[0]
	s.Equal("Centro", st.CenterName)
	s.Zero(st.TotalDays)
	s.Zero(st.TotalHours)
	s.Zero(st.AverageHoursPerDay)
	s.Zero(st.AttendanceRate)
	s.Zero(st.CurrentAttendants)
	s.Nil(st.LastAttendance)
	s.Equal(models.DefaultWorkingDays, st.WorkingDays)
}

func (s *StatsServiceSuite) TestCenterSelection() {
	other, err := s.centers.Create(s.ctx, centermodels.CreateCenterRequest{
		Name:            "Aeroporto",
		Latitude:        ptr(-20.4687),
		Longitude:       ptr(-54.6725),
		ToleranceMeters: 150,
	})
	s.Require().NoError(err)
	_, err = s.centers.Deactivate(s.ctx, other.ID)
	s.Require().NoError(err)

	s.Run("without a center only active centers are listed", func() {
		stats, err := s.service.StatsFor(s.ctx, nil, nil)
		s.Require().NoError(err)
		s.Require().Len(stats, 1)
		s.Equal(s.centro.ID, stats[0].CenterID)
	})

	s.Run("an explicit deactivated center still reports", func() {
		stats, err := s.service.StatsFor(s.ctx, &other.ID, nil)
		s.Require().NoError(err)
		s.Require().Len(stats, 1)
		s.Equal("Aeroporto", stats[0].CenterName)
	})

	s.Run("an unknown center is not found", func() {
		_, err := s.service.StatsFor(s.ctx, ptr(id.NewCenterID()), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("a weekend-only period reports a zero rate", func() {
		weekend, err := models.NewPeriod(date(2025, 3, 8), date(2025, 3, 9))
		s.Require().NoError(err)
		s.addSession(s.centro.ID, date(2025, 3, 8).Add(10*time.Hour), time.Hour)

		stats, err := s.service.StatsFor(s.ctx, &s.centro.ID, weekend)
		s.Require().NoError(err)
		s.Equal(0, stats[0].WorkingDays)
		s.Zero(stats[0].AttendanceRate)
		s.Equal(1, stats[0].TotalDays)
	})
}

func (s *StatsServiceSuite) TestCache() {
	cache := &mapCache{entries: map[string][]models.CenterStats{}}
	svc := New(s.centers, s.sessions, WithCache(cache))
	s.addSession(s.centro.ID, date(2025, 3, 3).Add(9*time.Hour), time.Hour)

	s.Run("second call is served from cache", func() {
		first, err := svc.StatsFor(s.ctx, &s.centro.ID, nil)
		s.Require().NoError(err)
		calls := s.sessions.calls

		second, err := svc.StatsFor(s.ctx, &s.centro.ID, nil)
		s.Require().NoError(err)
		s.Equal(calls, s.sessions.calls)
		s.Equal(first, second)
	})

	s.Run("cache failure falls back to computing", func() {
		cache.failGet = true
		stats, err := svc.StatsFor(s.ctx, &s.centro.ID, nil)
		s.Require().NoError(err)
		s.Equal(1, stats[0].TotalDays)
	})
}

func TestNewPeriodRejectsInvertedRange(t *testing.T) {
	_, err := models.NewPeriod(date(2025, 3, 7), date(2025, 3, 3))
	if !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
