// Package service aggregates attendance sessions into per-center figures for
// the reporting surface.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	attendancemodels "presence/internal/attendance/models"
	centermodels "presence/internal/center/models"
	"presence/internal/stats/models"
	id "presence/pkg/domain"
)

var tracer = otel.Tracer("presence/internal/stats/service")

type CenterSource interface {
	GetByID(ctx context.Context, centerID id.CenterID) (*centermodels.Center, error)
	ListActive(ctx context.Context) ([]*centermodels.Center, error)
}

// SessionSource returns sessions newest first.
type SessionSource interface {
	History(ctx context.Context, filter attendancemodels.HistoryFilter) ([]*attendancemodels.Session, error)
}

// Cache stores computed results. Failures are logged and otherwise ignored.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.CenterStats, bool, error)
	Set(ctx context.Context, key string, stats []models.CenterStats) error
}

type Service struct {
	centers            CenterSource
	sessions           SessionSource
	cache              Cache
	logger             *slog.Logger
	location           *time.Location
	defaultWorkingDays int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithLocation sets the zone whose calendar dates count as working days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithDefaultWorkingDays(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultWorkingDays = n
		}
	}
}

func New(centers CenterSource, sessions SessionSource, opts ...Option) *Service {
	s := &Service{
		centers:            centers,
		sessions:           sessions,
		location:           time.UTC,
		defaultWorkingDays: models.DefaultWorkingDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StatsFor computes figures for one center, or for every active center when
// centerID is nil. A nil period covers all time.
func (s *Service) StatsFor(ctx context.Context, centerID *id.CenterID, period *models.Period) ([]models.CenterStats, error) {
	ctx, span := tracer.Start(ctx, "stats.StatsFor")
	defer span.End()

	key := cacheKey(centerID, period)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.warn(ctx, "stats cache read failed", err)
		} else if ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached, nil
		}
	}

	var centers []*centermodels.Center
	if centerID != nil {
		c, err := s.centers.GetByID(ctx, *centerID)
		if err != nil {
			return nil, err
		}
		centers = []*centermodels.Center{c}
	} else {
		var err error
		if centers, err = s.centers.ListActive(ctx); err != nil {
			return nil, err
		}
	}

	out := make([]models.CenterStats, 0, len(centers))
	for _, c := range centers {
		filter := attendancemodels.HistoryFilter{CenterID: &c.ID}
		if period != nil {
			filter.From, filter.To = &period.From, &period.To
		}
		sessions, err := s.sessions.History(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, s.summarize(c, sessions, period))
	}
	span.SetAttributes(attribute.Int("centers", len(out)))

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out); err != nil {
			s.warn(ctx, "stats cache write failed", err)
		}
	}
	return out, nil
}

func (s *Service) summarize(c *centermodels.Center, sessions []*attendancemodels.Session, period *models.Period) models.CenterStats {
	st := models.CenterStats{
		CenterID:    c.ID,
		CenterName:  c.Name,
		TotalDays:   len(sessions),
		WorkingDays: s.defaultWorkingDays,
	}
	if period != nil {
		st.WorkingDays = WorkingDays(period.From, period.To, s.location)
	}

	var hours float64
	for _, session := range sessions {
		hours += session.Hours()
		if session.Status == attendancemodels.StatusActive {
			st.CurrentAttendants++
		}
		if st.LastAttendance == nil || session.CreatedAt.After(*st.LastAttendance) {
			created := session.CreatedAt
			st.LastAttendance = &created
		}
	}

	st.TotalHours = attendancemodels.RoundTo2(hours)
	if st.TotalDays > 0 {
		st.AverageHoursPerDay = attendancemodels.RoundTo2(hours / float64(st.TotalDays))
	}
	if st.WorkingDays > 0 {
		st.AttendanceRate = attendancemodels.RoundTo2(float64(st.TotalDays) / float64(st.WorkingDays) * 100)
	}
	return st
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, "error", err)
	}
}

func cacheKey(centerID *id.CenterID, period *models.Period) string {
	center := "all"
	if centerID != nil {
		center = centerID.String()
	}
	if period == nil {
		return "stats:" + center + ":all"
	}
	return fmt.Sprintf("stats:%s:%d:%d", center, period.From.UnixNano(), period.To.UnixNano())
}
