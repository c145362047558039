// Package service implements the center registry: the catalog of physical
// locations and the geofence each one enforces.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"presence/internal/center/metrics"
	"presence/internal/center/models"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/audit"
	"presence/pkg/platform/sentinel"
	"presence/pkg/platform/validation"
	"presence/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, c *models.Center) error
	Update(ctx context.Context, c *models.Center) error
	FindByID(ctx context.Context, centerID id.CenterID) (*models.Center, error)
	ListActive(ctx context.Context) ([]*models.Center, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service manages centers.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	clock          func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new center, assigning its ID and timestamps.
func (s *Service) Create(ctx context.Context, req models.CreateCenterRequest) (*models.Center, error) {
	req.Normalize()
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}

	c, err := models.NewCenter(id.CenterID(uuid.New()), req, s.clock())
	if err != nil {
		return nil, invariantAsValidation(err)
	}

	if err := s.store.Create(ctx, c); err != nil {
		return nil, translateStoreError(err, "failed to create center")
	}

	s.logAudit(ctx, audit.EventCenterCreated, c.ID, "name", c.Name)
	if s.metrics != nil {
		s.metrics.CentersCreated.Inc()
	}
	return c, nil
}

// Update applies a partial patch to an existing center.
func (s *Service) Update(ctx context.Context, centerID id.CenterID, patch models.UpdateCenterRequest) (*models.Center, error) {
	patch.Normalize()
	if err := validation.Struct(&patch); err != nil {
		return nil, err
	}

	c, err := s.GetByID(ctx, centerID)
	if err != nil {
		return nil, err
	}
	if err := c.Apply(patch, s.clock()); err != nil {
		return nil, invariantAsValidation(err)
	}
	if err := s.store.Update(ctx, c); err != nil {
		return nil, translateStoreError(err, "failed to update center")
	}

	s.logAudit(ctx, audit.EventCenterUpdated, c.ID)
	if s.metrics != nil {
		s.metrics.CentersUpdated.Inc()
	}
	return c, nil
}

// Deactivate hides the center from listings without touching its sessions.
func (s *Service) Deactivate(ctx context.Context, centerID id.CenterID) (*models.Center, error) {
	c, err := s.GetByID(ctx, centerID)
	if err != nil {
		return nil, err
	}
	if err := c.Deactivate(s.clock()); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, c); err != nil {
		return nil, translateStoreError(err, "failed to deactivate center")
	}

	s.logAudit(ctx, audit.EventCenterDeactivated, c.ID)
	if s.metrics != nil {
		s.metrics.CentersDeactivated.Inc()
	}
	return c, nil
}

// ListActive returns active centers sorted by name ascending.
func (s *Service) ListActive(ctx context.Context) ([]*models.Center, error) {
	centers, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, translateStoreError(err, "failed to list centers")
	}
	return centers, nil
}

// GetByID returns a center regardless of its active flag.
func (s *Service) GetByID(ctx context.Context, centerID id.CenterID) (*models.Center, error) {
	c, err := s.store.FindByID(ctx, centerID)
	if err != nil {
		return nil, translateStoreError(err, "failed to load center")
	}
	return c, nil
}

func translateStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "center not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "center already exists")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
}

func invariantAsValidation(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code == dErrors.CodeInvariantViolation {
		return dErrors.New(dErrors.CodeValidation, de.Message)
	}
	return err
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, centerID id.CenterID, attributes ...any) {
	if s.logger != nil {
		args := append([]any{
			"center_id", centerID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"event", string(event),
			"log_type", "audit",
		}, attributes...)
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:   string(event),
		Subject:  centerID.String(),
		CenterID: centerID,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
