package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presence/internal/stats/models"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/httputil"
	"presence/pkg/requestcontext"
)

type Service interface {
	StatsFor(ctx context.Context, centerID *id.CenterID, period *models.Period) ([]models.CenterStats, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/stats/centers", h.HandleCenterStats)
}

// HandleCenterStats serves GET /stats/centers. from and to must be given together.
func (h *Handler) HandleCenterStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var centerID *id.CenterID
	if v := q.Get("center_id"); v != "" {
		parsed, err := id.ParseCenterID(v)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		centerID = &parsed
	}

	period, err := parsePeriod(q.Get("from"), q.Get("to"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	stats, err := h.service.StatsFor(ctx, centerID, period)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to compute stats", "request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func parsePeriod(fromParam, toParam string) (*models.Period, error) {
	from, err := httputil.ParseTimeParam(fromParam, "from")
	if err != nil {
		return nil, err
	}
	to, err := httputil.ParseTimeParam(toParam, "to")
	if err != nil {
		return nil, err
	}
	switch {
	case from == nil && to == nil:
		return nil, nil
	case from == nil || to == nil:
		return nil, dErrors.New(dErrors.CodeBadRequest, "from and to must be given together")
	}
	return models.NewPeriod(*from, *to)
}
