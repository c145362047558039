// Package service re-runs the geofence check against recorded clock-in
// positions, for example after a center's coordinates were corrected.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	attendancemodels "presence/internal/attendance/models"
	centermodels "presence/internal/center/models"
	"presence/internal/geo"
	"presence/internal/revalidation/metrics"
	"presence/internal/revalidation/models"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	pstrings "presence/pkg/platform/strings"
)

var tracer = otel.Tracer("presence/internal/revalidation/service")

const (
	defaultConcurrency = 8
	defaultMaxBatch    = 500
)

type Ledger interface {
	Get(ctx context.Context, sessionID id.SessionID) (*attendancemodels.Session, error)
	RecordAuditOutcome(ctx context.Context, sessionID id.SessionID, withinTolerance, invalidate bool) (*attendancemodels.Session, error)
}

type CenterLookup interface {
	GetByID(ctx context.Context, centerID id.CenterID) (*centermodels.Center, error)
}

type Service struct {
	ledger      Ledger
	centers     CenterLookup
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
	maxBatch    int
	invalidate  bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithMaxBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// WithInvalidateLifecycle makes a failed re-check also move the session to
// the terminal invalid state. Off by default: only the audit status changes.
func WithInvalidateLifecycle(enabled bool) Option {
	return func(s *Service) {
		s.invalidate = enabled
	}
}

func New(ledger Ledger, centers CenterLookup, opts ...Option) *Service {
	s := &Service{
		ledger:      ledger,
		centers:     centers,
		concurrency: defaultConcurrency,
		maxBatch:    defaultMaxBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type outcome struct {
	valid bool
	err   error
}

// Revalidate re-checks every id independently. A failure for one id lands in
// Errors and never affects the others; the call itself only fails for an
// oversized batch. An empty batch yields an empty result. Duplicate ids are
// checked once.
func (s *Service) Revalidate(ctx context.Context, rawIDs []string) (*models.Result, error) {
	ids := pstrings.DedupeAndTrim(rawIDs)
	if len(ids) == 0 {
		return &models.Result{Valid: []string{}, Invalid: []string{}, Errors: []string{}}, nil
	}
	if len(ids) > s.maxBatch {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d session ids per batch", s.maxBatch))
	}

	ctx, span := tracer.Start(ctx, "revalidation.Revalidate")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(ids)))
	if s.metrics != nil {
		s.metrics.BatchSize.Observe(float64(len(ids)))
	}

	outcomes := make([]outcome, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, raw := range ids {
		g.Go(func() error {
			valid, err := s.revalidateOne(ctx, raw)
			outcomes[i] = outcome{valid: valid, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := &models.Result{Valid: []string{}, Invalid: []string{}, Errors: []string{}}
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("session %s: %s", ids[i], describe(o.err)))
			s.count(metrics.OutcomeError)
		case o.valid:
			result.Valid = append(result.Valid, ids[i])
			s.count(metrics.OutcomeValid)
		default:
			result.Invalid = append(result.Invalid, ids[i])
			s.count(metrics.OutcomeInvalid)
		}
	}
	span.SetAttributes(
		attribute.Int("valid", len(result.Valid)),
		attribute.Int("invalid", len(result.Invalid)),
		attribute.Int("errors", len(result.Errors)),
	)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "revalidation batch complete",
			"batch_size", len(ids),
			"valid", len(result.Valid),
			"invalid", len(result.Invalid),
			"errors", len(result.Errors),
		)
	}
	return result, nil
}

func (s *Service) revalidateOne(ctx context.Context, raw string) (bool, error) {
	sessionID, err := id.ParseSessionID(raw)
	if err != nil {
		return false, err
	}
	session, err := s.ledger.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	center, err := s.centers.GetByID(ctx, session.CenterID)
	if err != nil {
		return false, err
	}
	result := geo.Validate(center.Fence(), session.ClockInPosition.Point())
	if _, err := s.ledger.RecordAuditOutcome(ctx, sessionID, result.WithinTolerance, s.invalidate); err != nil {
		return false, err
	}
	return result.WithinTolerance, nil
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.Outcomes.WithLabelValues(outcome).Inc()
	}
}

// describe keeps internal failure text out of the response.
func describe(err error) string {
	var de *dErrors.Error
	if !errors.As(err, &de) || de.Code == dErrors.CodeInternal {
		return "internal error"
	}
	return de.Message
}
