package handler

import (
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"presence/internal/center/models"
	"presence/internal/center/service"
	"presence/internal/center/store"
	"presence/pkg/platform/middleware/admin"
	"presence/pkg/testutil"
)

const adminToken = "secret-token"

type CenterHandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestCenterHandlerSuite(t *testing.T) {
	suite.Run(t, new(CenterHandlerSuite))
}

func (s *CenterHandlerSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	h := New(service.New(store.NewInMemory()), logger)

	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(adminToken, logger))
		h.RegisterAdmin(r)
	})
	s.router = r
}

func (s *CenterHandlerSuite) createCenter(name string) models.Center {
	req := testutil.NewAdminJSONRequest(s.T(), http.MethodPost, "/admin/centers", adminToken, map[string]any{
		"name":             name,
		"city":             "Campo Grande",
		"latitude":         -20.4697,
		"longitude":        -54.6201,
		"tolerance_meters": 100,
		"services":         []string{"Mapas", "Wi-Fi"},
		"contact":          map[string]string{"email": "centro@example.com"},
		"hours":            map[string]string{"monday": "08:00-18:00"},
	})
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return *testutil.UnmarshalResponse[models.Center](s.T(), rr)
}

func (s *CenterHandlerSuite) TestAdminTokenRequired() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/centers", map[string]any{"name": "x"})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *CenterHandlerSuite) TestCreateAndFetch() {
	created := s.createCenter("Centro")
	s.Equal("Centro", created.Name)
	s.Equal("08:00-18:00", created.Hours.Monday)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/centers/"+created.ID.String()))
	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[models.Center](s.T(), rr)
	s.Equal(created.ID, got.ID)
	s.Equal([]string{"Mapas", "Wi-Fi"}, got.Services)
}

func (s *CenterHandlerSuite) TestCreateValidation() {
	s.Run("missing latitude", func() {
		req := testutil.NewAdminJSONRequest(s.T(), http.MethodPost, "/admin/centers", adminToken, map[string]any{
			"name": "Centro", "longitude": -54.6, "tolerance_meters": 100,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("zero tolerance", func() {
		req := testutil.NewAdminJSONRequest(s.T(), http.MethodPost, "/admin/centers", adminToken, map[string]any{
			"name": "Centro", "latitude": -20.4, "longitude": -54.6, "tolerance_meters": 0,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed json", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/centers", `{"name":`)
		req.Header.Set("X-Admin-Token", adminToken)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *CenterHandlerSuite) TestUpdateAndDeactivate() {
	c := s.createCenter("Centro")

	req := testutil.NewAdminJSONRequest(s.T(), http.MethodPatch, "/admin/centers/"+c.ID.String(), adminToken,
		map[string]any{"tolerance_meters": 250})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	s.Equal(250, testutil.UnmarshalResponse[models.Center](s.T(), rr).ToleranceMeters)

	req = testutil.NewAdminJSONRequest(s.T(), http.MethodPost, "/admin/centers/"+c.ID.String()+"/deactivate", adminToken, nil)
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/centers"))
	testutil.AssertStatusOK(s.T(), rr)
	list := testutil.UnmarshalResponse[struct {
		Centers []models.Center `json:"centers"`
	}](s.T(), rr)
	s.Empty(list.Centers)
}

func (s *CenterHandlerSuite) TestLookupErrors() {
	s.Run("unknown center", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/centers/"+uuid.NewString()))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed id", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/centers/not-a-uuid"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}
