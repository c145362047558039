package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"presence/internal/attendance/models"
	"presence/internal/attendance/service/mocks"
	"presence/internal/attendance/store"
	centermodels "presence/internal/center/models"
	centerservice "presence/internal/center/service"
	centerstore "presence/internal/center/store"
	"presence/internal/geo"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/audit"
	auditmemory "presence/pkg/platform/audit/store/memory"
	"presence/pkg/platform/sentinel"
	"presence/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

func ptr[T any](v T) *T { return &v }

type AttendanceServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *store.InMemory
	centers *centerservice.Service
	audits  *auditmemory.InMemoryStore
	service *Service
	centro  *centermodels.Center
	second  *centermodels.Center
}

func TestAttendanceServiceSuite(t *testing.T) {
	suite.Run(t, new(AttendanceServiceSuite))
}

func (s *AttendanceServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }

	s.store = store.NewInMemory()
	s.audits = auditmemory.NewInMemoryStore()
	s.centers = centerservice.New(centerstore.NewInMemory(), centerservice.WithClock(clock))
	s.service = New(s.store, s.centers,
		WithAuditPublisher(audit.NewPublisher(s.audits)),
		WithClock(clock),
	)

	var err error
	s.centro, err = s.centers.Create(s.ctx, centermodels.CreateCenterRequest{
		Name:            "Centro",
		Address:         "Rua 14 de Julho, 1000",
		City:            "Campo Grande",
		Latitude:        ptr(-20.4697),
		Longitude:       ptr(-54.6201),
		ToleranceMeters: 100,
	})
	s.Require().NoError(err)
	s.second, err = s.centers.Create(s.ctx, centermodels.CreateCenterRequest{
		Name:            "Aeroporto",
		Latitude:        ptr(-20.4687),
		Longitude:       ptr(-54.6725),
		ToleranceMeters: 150,
	})
	s.Require().NoError(err)
}

func (s *AttendanceServiceSuite) clockInReq(centerID id.CenterID, attendantID uuid.UUID, lat, lng float64) models.ClockInRequest {
	return models.ClockInRequest{
		CenterID:      centerID.String(),
		AttendantID:   attendantID.String(),
		AttendantName: "Ana Souza",
		Latitude:      ptr(lat),
		Longitude:     ptr(lng),
	}
}

func (s *AttendanceServiceSuite) TestClockIn() {
	s.Run("accepts a position at the center", func() {
		attendant := uuid.New()
		session, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4697, -54.6201))
		s.Require().NoError(err)
		s.Equal(models.StatusActive, session.Status)
		s.Equal(models.AuditValid, session.AuditStatus)
		s.Equal(s.now, session.ClockInTime)
		s.Equal(s.centro.ID, session.CenterID)

		active, err := s.service.ActiveSession(s.ctx, id.AttendantID(attendant))
		s.Require().NoError(err)
		s.Require().NotNil(active)
		s.Equal(session.ID, active.ID)

		events, err := s.audits.ListByAttendant(s.ctx, id.AttendantID(attendant))
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventClockInRecorded), events[0].Action)
		s.Equal(audit.CategoryCompliance, events[0].Category)
	})

	s.Run("rejects a position outside the fence and persists nothing", func() {
		attendant := uuid.New()
		_, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4800, -54.6300))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeGeofenceViolation))

		var violation *geo.Violation
		s.Require().ErrorAs(err, &violation)
		s.Equal(100, violation.ToleranceMeters)
		s.InDelta(1540, violation.DistanceMeters, 100)

		active, err := s.service.ActiveSession(s.ctx, id.AttendantID(attendant))
		s.Require().NoError(err)
		s.Nil(active)

		history, err := s.service.History(s.ctx, models.HistoryFilter{AttendantID: ptr(id.AttendantID(attendant))})
		s.Require().NoError(err)
		s.Empty(history)

		events, err := s.audits.ListByAttendant(s.ctx, id.AttendantID(attendant))
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventClockInRejected), events[0].Action)
		s.Equal(audit.CategorySecurity, events[0].Category)
	})

	s.Run("rejects a second clock-in at another center", func() {
		attendant := uuid.New()
		_, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4697, -54.6201))
		s.Require().NoError(err)

		_, err = s.service.ClockIn(s.ctx, s.clockInReq(s.second.ID, attendant, -20.4687, -54.6725))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown center is not found", func() {
		_, err := s.service.ClockIn(s.ctx, s.clockInReq(id.NewCenterID(), uuid.New(), 0, 0))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("malformed identifiers are rejected before any lookup", func() {
		req := s.clockInReq(s.centro.ID, uuid.New(), -20.4697, -54.6201)
		req.AttendantID = "not-a-uuid"
		_, err := s.service.ClockIn(s.ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing coordinates are a validation error", func() {
		req := s.clockInReq(s.centro.ID, uuid.New(), 0, 0)
		req.Latitude = nil
		_, err := s.service.ClockIn(s.ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("records the device label from the user agent", func() {
		ctx := requestcontext.WithClientMetadata(s.ctx, "10.0.0.1",
			"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36")
		session, err := s.service.ClockIn(ctx, s.clockInReq(s.centro.ID, uuid.New(), -20.4697, -54.6201))
		s.Require().NoError(err)
		s.Contains(session.Device, "Chrome")
	})
}

func (s *AttendanceServiceSuite) TestClockOut() {
	s.Run("computes duration rounded to two decimals", func() {
		attendant := uuid.New()
		_, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4697, -54.6201))
		s.Require().NoError(err)

		s.now = s.now.Add(8*time.Hour + 30*time.Minute)
		session, err := s.service.ClockOut(s.ctx, models.ClockOutRequest{
			AttendantID: attendant.String(),
			Latitude:    ptr(-20.4698),
			Longitude:   ptr(-54.6202),
			Notes:       "fim do turno",
		})
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, session.Status)
		s.Require().NotNil(session.DurationHours)
		s.InDelta(8.50, *session.DurationHours, 0.0001)
		s.Require().NotNil(session.ClockOutPosition)
		s.Equal("fim do turno", session.Notes)

		active, err := s.service.ActiveSession(s.ctx, id.AttendantID(attendant))
		s.Require().NoError(err)
		s.Nil(active)
	})

	s.Run("immediate clock-out yields zero hours", func() {
		attendant := uuid.New()
		_, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4697, -54.6201))
		s.Require().NoError(err)

		s.now = s.now.Add(time.Second)
		session, err := s.service.ClockOut(s.ctx, models.ClockOutRequest{AttendantID: attendant.String()})
		s.Require().NoError(err)
		s.InDelta(0.0, *session.DurationHours, 0.0001)
		s.Nil(session.ClockOutPosition)
	})

	s.Run("a lone latitude is not recorded as a position", func() {
		attendant := uuid.New()
		_, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4697, -54.6201))
		s.Require().NoError(err)

		s.now = s.now.Add(time.Hour)
		session, err := s.service.ClockOut(s.ctx, models.ClockOutRequest{AttendantID: attendant.String(), Latitude: ptr(-20.0)})
		s.Require().NoError(err)
		s.Nil(session.ClockOutPosition)
	})

	s.Run("clock-out far from the center is accepted", func() {
		attendant := uuid.New()
		_, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4697, -54.6201))
		s.Require().NoError(err)

		s.now = s.now.Add(time.Hour)
		_, err = s.service.ClockOut(s.ctx, models.ClockOutRequest{
			AttendantID: attendant.String(),
			Latitude:    ptr(-23.5505),
			Longitude:   ptr(-46.6333),
		})
		s.Require().NoError(err)
	})

	s.Run("without an open session is not found", func() {
		_, err := s.service.ClockOut(s.ctx, models.ClockOutRequest{AttendantID: uuid.New().String()})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("clock that did not advance violates the ordering invariant", func() {
		attendant := uuid.New()
		_, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4697, -54.6201))
		s.Require().NoError(err)

		_, err = s.service.ClockOut(s.ctx, models.ClockOutRequest{AttendantID: attendant.String()})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		active, err := s.service.ActiveSession(s.ctx, id.AttendantID(attendant))
		s.Require().NoError(err)
		s.NotNil(active)
	})
}

func (s *AttendanceServiceSuite) TestQueries() {
	first := uuid.New()
	second := uuid.New()
	_, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, first, -20.4697, -54.6201))
	s.Require().NoError(err)
	s.now = s.now.Add(time.Hour)
	_, err = s.service.ClockIn(s.ctx, s.clockInReq(s.second.ID, second, -20.4687, -54.6725))
	s.Require().NoError(err)

	s.Run("history is newest first", func() {
		sessions, err := s.service.History(s.ctx, models.HistoryFilter{})
		s.Require().NoError(err)
		s.Require().Len(sessions, 2)
		s.Equal(id.AttendantID(second), sessions[0].AttendantID)
	})

	s.Run("history filters by center", func() {
		sessions, err := s.service.History(s.ctx, models.HistoryFilter{CenterID: &s.centro.ID})
		s.Require().NoError(err)
		s.Require().Len(sessions, 1)
		s.Equal(id.AttendantID(first), sessions[0].AttendantID)
	})

	s.Run("history rejects an inverted range", func() {
		from := s.now
		to := s.now.Add(-time.Hour)
		_, err := s.service.History(s.ctx, models.HistoryFilter{From: &from, To: &to})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("active attendants carry their center location", func() {
		board, err := s.service.ActiveAttendants(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(board, 2)
		s.Equal("Centro", board[0].CenterName)
		s.Equal("Campo Grande", board[0].CenterCity)
		s.Equal("Aeroporto", board[1].CenterName)
	})

	s.Run("get unknown session is not found", func() {
		_, err := s.service.Get(s.ctx, id.NewSessionID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *AttendanceServiceSuite) TestRecordAuditOutcome() {
	attendant := uuid.New()
	session, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4697, -54.6201))
	s.Require().NoError(err)

	s.Run("failed re-check flags audit status only", func() {
		updated, err := s.service.RecordAuditOutcome(s.ctx, session.ID, false, false)
		s.Require().NoError(err)
		s.Equal(models.AuditInvalid, updated.AuditStatus)
		s.Equal(models.StatusActive, updated.Status)
	})

	s.Run("strict mode invalidates the lifecycle", func() {
		updated, err := s.service.RecordAuditOutcome(s.ctx, session.ID, false, true)
		s.Require().NoError(err)
		s.Equal(models.StatusInvalid, updated.Status)

		active, err := s.service.ActiveSession(s.ctx, id.AttendantID(attendant))
		s.Require().NoError(err)
		s.Nil(active)
	})

	s.Run("passing re-check restores audit status", func() {
		updated, err := s.service.RecordAuditOutcome(s.ctx, session.ID, true, true)
		s.Require().NoError(err)
		s.Equal(models.AuditValid, updated.AuditStatus)
		s.Equal(models.StatusInvalid, updated.Status)
	})
}

// interleavingStore runs afterFirstRead once, right after the first session
// lookup by id, standing in for a clock-out that commits between a caller's
// read and its write.
type interleavingStore struct {
	*store.InMemory
	once           sync.Once
	afterFirstRead func()
}

func (st *interleavingStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	session, err := st.InMemory.FindByID(ctx, sessionID)
	if st.afterFirstRead != nil {
		st.once.Do(st.afterFirstRead)
	}
	return session, err
}

func (s *AttendanceServiceSuite) TestRecordAuditOutcomeKeepsInterleavedClockOut() {
	sessions := &interleavingStore{InMemory: store.NewInMemory()}
	svc := New(sessions, s.centers, WithClock(func() time.Time { return s.now }))

	attendant := uuid.New()
	opened, err := svc.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4697, -54.6201))
	s.Require().NoError(err)

	sessions.afterFirstRead = func() {
		s.now = s.now.Add(time.Hour)
		_, err := svc.ClockOut(s.ctx, models.ClockOutRequest{AttendantID: attendant.String()})
		s.Require().NoError(err)
	}

	updated, err := svc.RecordAuditOutcome(s.ctx, opened.ID, true, false)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, updated.Status)
	s.Equal(models.AuditValid, updated.AuditStatus)
	s.Require().NotNil(updated.DurationHours)
	s.InDelta(1.0, *updated.DurationHours, 0.0001)

	stored, err := svc.Get(s.ctx, opened.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, stored.Status)
	s.NotNil(stored.ClockOutTime)

	active, err := svc.ActiveSession(s.ctx, id.AttendantID(attendant))
	s.Require().NoError(err)
	s.Nil(active, "a re-check must not reopen a completed session")
}

func (s *AttendanceServiceSuite) TestConcurrentClockOutsCompleteOnce() {
	attendant := uuid.New()
	_, err := s.service.ClockIn(s.ctx, s.clockInReq(s.centro.ID, attendant, -20.4697, -54.6201))
	s.Require().NoError(err)
	s.now = s.now.Add(2 * time.Hour)

	const goroutines = 10
	var wg sync.WaitGroup
	var completed, notFound atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.ClockOut(s.ctx, models.ClockOutRequest{AttendantID: attendant.String()})
			switch {
			case err == nil:
				completed.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), completed.Load())
	s.Equal(int32(goroutines-1), notFound.Load())
	s.Equal(1, s.audits.CountByAction(s.ctx, audit.EventClockOutRecorded))
}

func (s *AttendanceServiceSuite) TestStoreFailures() {
	newService := func() (*Service, *mocks.MockStore, *mocks.MockCenterLookup) {
		ctrl := gomock.NewController(s.T())
		st := mocks.NewMockStore(ctrl)
		centers := mocks.NewMockCenterLookup(ctrl)
		return New(st, centers, WithClock(func() time.Time { return s.now })), st, centers
	}

	s.Run("insert constraint violation is the canonical conflict", func() {
		svc, st, centers := newService()
		centers.EXPECT().GetByID(gomock.Any(), s.centro.ID).Return(s.centro, nil)
		st.EXPECT().FindActiveByAttendant(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		st.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

		_, err := svc.ClockIn(s.ctx, s.clockInReq(s.centro.ID, uuid.New(), -20.4697, -54.6201))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("storage failure is unavailable and retryable", func() {
		svc, st, centers := newService()
		centers.EXPECT().GetByID(gomock.Any(), s.centro.ID).Return(s.centro, nil)
		st.EXPECT().FindActiveByAttendant(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

		_, err := svc.ClockIn(s.ctx, s.clockInReq(s.centro.ID, uuid.New(), -20.4697, -54.6201))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.True(dErrors.Retryable(err))
	})

	s.Run("geofence rejection never reaches the store", func() {
		svc, _, centers := newService()
		centers.EXPECT().GetByID(gomock.Any(), s.centro.ID).Return(s.centro, nil)

		_, err := svc.ClockIn(s.ctx, s.clockInReq(s.centro.ID, uuid.New(), -20.4800, -54.6300))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeGeofenceViolation))
	})

	s.Run("history storage failure is unavailable", func() {
		svc, st, _ := newService()
		st.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

		_, err := svc.History(s.ctx, models.HistoryFilter{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}
