// Package service implements the attendance ledger: clock-in behind the
// geofence, clock-out, and the history and active-session queries managers read.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"presence/internal/attendance/device"
	"presence/internal/attendance/metrics"
	"presence/internal/attendance/models"
	centermodels "presence/internal/center/models"
	"presence/internal/geo"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/audit"
	"presence/pkg/platform/sentinel"
	"presence/pkg/platform/validation"
	"presence/pkg/requestcontext"
)

var tracer = otel.Tracer("presence/internal/attendance/service")

type Store interface {
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindActiveByAttendant(ctx context.Context, attendantID id.AttendantID) (*models.Session, error)
	List(ctx context.Context, filter models.HistoryFilter) ([]*models.Session, error)
	ListActive(ctx context.Context) ([]*models.Session, error)
}

// CenterLookup resolves centers regardless of their active flag. Errors are
// expected to carry domain codes already.
type CenterLookup interface {
	GetByID(ctx context.Context, centerID id.CenterID) (*centermodels.Center, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service records attendance sessions.
type Service struct {
	store          Store
	centers        CenterLookup
	tx             TxRunner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	clock          func() time.Time
	newID          func() id.SessionID
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

// WithTx replaces the in-memory sharded lock, typically with a SQL transaction runner.
func WithTx(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(store Store, centers CenterLookup, opts ...Option) *Service {
	s := &Service{
		store:   store,
		centers: centers,
		tx:      NewShardedTx(),
		clock:   time.Now,
		newID:   id.NewSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClockIn opens a session after checking, in order: the center exists, the
// position is inside its fence, and the attendant has no open session. The
// insert itself is the authoritative uniqueness check; a constraint violation
// surfaces as the same conflict as the pre-check.
func (s *Service) ClockIn(ctx context.Context, req models.ClockInRequest) (*models.Session, error) {
	start := time.Now()
	req.Normalize()
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	centerID := req.ParsedCenterID()
	attendantID := req.ParsedAttendantID()

	ctx, span := tracer.Start(ctx, "attendance.ClockIn", trace.WithAttributes(
		attribute.String("center_id", centerID.String()),
		attribute.String("attendant_id", attendantID.String()),
	))
	defer span.End()

	center, err := s.centers.GetByID(ctx, centerID)
	if err != nil {
		s.observeClockIn(start, outcomeFor(err))
		return nil, spanError(span, err)
	}

	position := req.Position()
	result := geo.Validate(center.Fence(), position.Point())
	span.SetAttributes(
		attribute.Int("distance_meters", result.DistanceMeters),
		attribute.Bool("within_tolerance", result.WithinTolerance),
	)
	if s.metrics != nil {
		s.metrics.GeofenceDistance.Observe(float64(result.DistanceMeters))
	}
	if violation := result.Violation(); violation != nil {
		s.observeClockIn(start, metrics.OutcomeGeofence)
		s.logAudit(ctx, audit.EventClockInRejected, audit.Event{
			AttendantID: attendantID,
			CenterID:    centerID,
			Decision:    "rejected",
			Reason:      violation.Error(),
		}, "distance_meters", violation.DistanceMeters, "tolerance_meters", violation.ToleranceMeters)
		return nil, spanError(span, dErrors.Wrap(violation, dErrors.CodeGeofenceViolation, "clock-in position is outside the center's geofence"))
	}

	now := s.clock()
	session := models.NewSession(s.newID(), centerID, attendantID, req.AttendantName, position,
		device.Label(requestcontext.UserAgent(ctx)), now)

	err = s.tx.RunInTx(WithTxAttendant(ctx, attendantID), func(txCtx context.Context) error {
		if _, err := s.store.FindActiveByAttendant(txCtx, attendantID); err == nil {
			return errActiveSession
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return translateStoreError(err, "failed to check active session")
		}
		if err := s.store.Create(txCtx, session); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return errActiveSession
			}
			return translateStoreError(err, "failed to record clock-in")
		}
		s.logAudit(txCtx, audit.EventClockInRecorded, audit.Event{
			AttendantID: attendantID,
			CenterID:    centerID,
			SessionID:   session.ID,
			Decision:    "accepted",
		}, "distance_meters", result.DistanceMeters, "device", session.Device)
		return nil
	})
	if err != nil {
		s.observeClockIn(start, outcomeFor(err))
		return nil, spanError(span, err)
	}

	s.observeClockIn(start, metrics.OutcomeAccepted)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}
	span.SetAttributes(attribute.String("session_id", session.ID.String()))
	return session, nil
}

// ClockOut completes the attendant's open session. The position, when given,
// is recorded as reported; it is not checked against the fence.
func (s *Service) ClockOut(ctx context.Context, req models.ClockOutRequest) (*models.Session, error) {
	req.Normalize()
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	attendantID := req.ParsedAttendantID()

	ctx, span := tracer.Start(ctx, "attendance.ClockOut", trace.WithAttributes(
		attribute.String("attendant_id", attendantID.String()),
	))
	defer span.End()

	var session *models.Session
	err := s.tx.RunInTx(WithTxAttendant(ctx, attendantID), func(txCtx context.Context) error {
		active, err := s.store.FindActiveByAttendant(txCtx, attendantID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "no active session for attendant")
			}
			return translateStoreError(err, "failed to load active session")
		}
		if err := active.Complete(s.clock(), req.Position(), req.Notes); err != nil {
			return err
		}
		if err := s.store.Update(txCtx, active); err != nil {
			return translateStoreError(err, "failed to record clock-out")
		}
		s.logAudit(txCtx, audit.EventClockOutRecorded, audit.Event{
			AttendantID: attendantID,
			CenterID:    active.CenterID,
			SessionID:   active.ID,
		}, "duration_hours", active.Hours())
		session = active
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	if s.metrics != nil {
		s.metrics.ClockOuts.Inc()
		s.metrics.ActiveSessions.Dec()
		s.metrics.SessionHours.Observe(session.Hours())
	}
	span.SetAttributes(
		attribute.String("session_id", session.ID.String()),
		attribute.Float64("duration_hours", session.Hours()),
	)
	return session, nil
}

// ActiveSession returns the attendant's open session, or nil when there is none.
func (s *Service) ActiveSession(ctx context.Context, attendantID id.AttendantID) (*models.Session, error) {
	session, err := s.store.FindActiveByAttendant(ctx, attendantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, translateStoreError(err, "failed to load active session")
	}
	return session, nil
}

// History returns sessions matching filter, newest first.
func (s *Service) History(ctx context.Context, filter models.HistoryFilter) ([]*models.Session, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, dErrors.New(dErrors.CodeValidation, "from must not be after to")
	}
	sessions, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, translateStoreError(err, "failed to list sessions")
	}
	return sessions, nil
}

// ActiveAttendants lists open sessions with their center's location. Sessions
// whose center can no longer be resolved are listed without location.
func (s *Service) ActiveAttendants(ctx context.Context) ([]models.ActiveAttendant, error) {
	sessions, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, translateStoreError(err, "failed to list active sessions")
	}

	centers := make(map[id.CenterID]*centermodels.Center)
	out := make([]models.ActiveAttendant, 0, len(sessions))
	for _, session := range sessions {
		entry := models.ActiveAttendant{Session: session}
		center, seen := centers[session.CenterID]
		if !seen {
			center, err = s.centers.GetByID(ctx, session.CenterID)
			if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil, err
			}
			centers[session.CenterID] = center
		}
		if center != nil {
			entry.CenterName = center.Name
			entry.CenterAddress = center.Address
			entry.CenterCity = center.City
		}
		out = append(out, entry)
	}
	return out, nil
}

// Get returns a session by ID.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, translateStoreError(err, "failed to load session")
	}
	return session, nil
}

// RecordAuditOutcome stores the result of a geofence re-check. With
// invalidate set, a failed re-check also moves the session to the terminal
// invalid state; sessions already invalid keep that state.
func (s *Service) RecordAuditOutcome(ctx context.Context, sessionID id.SessionID, withinTolerance, invalidate bool) (*models.Session, error) {
	// The first read only finds the attendant that keys the transaction; the
	// session is re-read inside it so a clock-out that committed in between
	// is not overwritten.
	found, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var session *models.Session
	err = s.tx.RunInTx(WithTxAttendant(ctx, found.AttendantID), func(txCtx context.Context) error {
		var err error
		session, err = s.Get(txCtx, sessionID)
		if err != nil {
			return err
		}
		now := s.clock()
		session.SetAuditStatus(models.AuditStatusFor(withinTolerance), now)
		event := audit.EventSessionRevalidated
		if !withinTolerance {
			event = audit.EventSessionFlagged
			if invalidate && session.Status != models.StatusInvalid {
				if err := session.Invalidate(now); err != nil {
					return err
				}
			}
		}
		if err := s.store.Update(txCtx, session); err != nil {
			return translateStoreError(err, "failed to record audit outcome")
		}
		s.logAudit(txCtx, event, audit.Event{
			AttendantID: session.AttendantID,
			CenterID:    session.CenterID,
			SessionID:   session.ID,
			Decision:    string(session.AuditStatus),
		}, "status", string(session.Status))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

var errActiveSession = dErrors.New(dErrors.CodeConflict, "attendant already has an active session")

func translateStoreError(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "session conflicts with existing state")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
}

func outcomeFor(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeConflict:
		return metrics.OutcomeConflict
	case dErrors.CodeNotFound:
		return metrics.OutcomeNotFound
	case dErrors.CodeGeofenceViolation:
		return metrics.OutcomeGeofence
	default:
		return metrics.OutcomeError
	}
}

func (s *Service) observeClockIn(start time.Time, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveClockIn(start, outcome)
	}
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, base audit.Event, attributes ...any) {
	if s.logger != nil {
		args := append([]any{
			"attendant_id", base.AttendantID.String(),
			"center_id", base.CenterID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"event", string(event),
			"log_type", "audit",
		}, attributes...)
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	base.Action = string(event)
	if base.Subject == "" {
		base.Subject = base.AttendantID.String()
	}
	if err := s.auditPublisher.Emit(ctx, base); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
