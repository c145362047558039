package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"presence/internal/attendance/models"
	id "presence/pkg/domain"
	"presence/pkg/platform/httputil"
	"presence/pkg/requestcontext"
)

// Service defines the ledger operations the handler needs.
type Service interface {
	ClockIn(ctx context.Context, req models.ClockInRequest) (*models.Session, error)
	ClockOut(ctx context.Context, req models.ClockOutRequest) (*models.Session, error)
	ActiveSession(ctx context.Context, attendantID id.AttendantID) (*models.Session, error)
	History(ctx context.Context, filter models.HistoryFilter) ([]*models.Session, error)
	ActiveAttendants(ctx context.Context) ([]models.ActiveAttendant, error)
}

// Handler wires attendance endpoints to the ledger service.
type Handler struct {
	service    Service
	logger     *slog.Logger
	clockLimit int
}

// New builds the handler. clockLimit caps clock-in and clock-out requests per
// client IP per minute; zero disables the cap.
func New(service Service, logger *slog.Logger, clockLimit int) *Handler {
	return &Handler{service: service, logger: logger, clockLimit: clockLimit}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.clockLimit > 0 {
			r.Use(httprate.LimitByIP(h.clockLimit, time.Minute))
		}
		r.Post("/attendance/clock-in", h.HandleClockIn)
		r.Post("/attendance/clock-out", h.HandleClockOut)
	})
	r.Get("/attendance/attendants/{attendantID}/active", h.HandleActiveSession)
	r.Get("/attendance/history", h.HandleHistory)
	r.Get("/attendance/active", h.HandleActiveAttendants)
}

func (h *Handler) HandleClockIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.ClockInRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	session, err := h.service.ClockIn(ctx, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "clock-in rejected",
			"request_id", requestID,
			"attendant_id", req.AttendantID,
			"center_id", req.CenterID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, session)
}

func (h *Handler) HandleClockOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.ClockOutRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	session, err := h.service.ClockOut(ctx, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "clock-out failed", "request_id", requestID, "attendant_id", req.AttendantID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) HandleActiveSession(w http.ResponseWriter, r *http.Request) {
	attendantID, err := id.ParseAttendantID(chi.URLParam(r, "attendantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	session, err := h.service.ActiveSession(r.Context(), attendantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"active":  session != nil,
		"session": session,
	})
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sessions, err := h.service.History(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) HandleActiveAttendants(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.ActiveAttendants(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"attendants": board})
}

func parseHistoryFilter(r *http.Request) (models.HistoryFilter, error) {
	var filter models.HistoryFilter
	q := r.URL.Query()
	if v := q.Get("attendant_id"); v != "" {
		attendantID, err := id.ParseAttendantID(v)
		if err != nil {
			return filter, err
		}
		filter.AttendantID = &attendantID
	}
	if v := q.Get("center_id"); v != "" {
		centerID, err := id.ParseCenterID(v)
		if err != nil {
			return filter, err
		}
		filter.CenterID = &centerID
	}
	from, err := httputil.ParseTimeParam(q.Get("from"), "from")
	if err != nil {
		return filter, err
	}
	to, err := httputil.ParseTimeParam(q.Get("to"), "to")
	if err != nil {
		return filter, err
	}
	filter.From, filter.To = from, to
	return filter, nil
}
