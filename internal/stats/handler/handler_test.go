package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"presence/internal/stats/models"
	id "presence/pkg/domain"
	"presence/pkg/testutil"
)

type stubService struct {
	centerID *id.CenterID
	period   *models.Period
	result   []models.CenterStats
}

func (s *stubService) StatsFor(_ context.Context, centerID *id.CenterID, period *models.Period) ([]models.CenterStats, error) {
	s.centerID = centerID
	s.period = period
	return s.result, nil
}

type StatsHandlerSuite struct {
	suite.Suite
	router chi.Router
	svc    *stubService
}

func TestStatsHandlerSuite(t *testing.T) {
	suite.Run(t, new(StatsHandlerSuite))
}

func (s *StatsHandlerSuite) SetupTest() {
	s.svc = &stubService{result: []models.CenterStats{{CenterID: id.NewCenterID(), CenterName: "Centro", WorkingDays: 22}}}
	s.router = chi.NewRouter()
	New(s.svc, slog.New(slog.DiscardHandler)).Register(s.router)
}

func (s *StatsHandlerSuite) get(path string) int {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
	return rr.Code
}

func (s *StatsHandlerSuite) TestQueryParsing() {
	s.Run("no filters", func() {
		s.Equal(http.StatusOK, s.get("/stats/centers"))
		s.Nil(s.svc.centerID)
		s.Nil(s.svc.period)
	})

	s.Run("center and period", func() {
		centerID := uuid.New()
		code := s.get("/stats/centers?center_id=" + centerID.String() + "&from=2025-03-03T00:00:00Z&to=2025-03-07T23:59:59Z")
		s.Require().Equal(http.StatusOK, code)
		s.Require().NotNil(s.svc.centerID)
		s.Equal(id.CenterID(centerID), *s.svc.centerID)
		s.Require().NotNil(s.svc.period)
		s.True(s.svc.period.From.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
	})

	s.Run("half-open period is rejected", func() {
		s.Equal(http.StatusBadRequest, s.get("/stats/centers?from=2025-03-03T00:00:00Z"))
	})

	s.Run("inverted period is rejected", func() {
		s.Equal(http.StatusBadRequest, s.get("/stats/centers?from=2025-03-07T00:00:00Z&to=2025-03-03T00:00:00Z"))
	})

	s.Run("malformed center id is rejected", func() {
		s.Equal(http.StatusBadRequest, s.get("/stats/centers?center_id=nope"))
	})
}

func (s *StatsHandlerSuite) TestResponseShape() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/stats/centers"))
	s.Require().Equal(http.StatusOK, rr.Code)
	body := testutil.UnmarshalResponse[struct {
		Stats []models.CenterStats `json:"stats"`
	}](s.T(), rr)
	s.Require().Len(body.Stats, 1)
	s.Equal("Centro", body.Stats[0].CenterName)
	s.Equal(22, body.Stats[0].WorkingDays)
}
