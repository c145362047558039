package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presence/internal/revalidation/models"
	"presence/pkg/platform/httputil"
	"presence/pkg/requestcontext"
)

type Service interface {
	Revalidate(ctx context.Context, sessionIDs []string) (*models.Result, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts the batch endpoint; the caller applies the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/attendance/revalidate", h.HandleRevalidate)
}

func (h *Handler) HandleRevalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RevalidateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	result, err := h.service.Revalidate(ctx, req.SessionIDs)
	if err != nil {
		h.logger.WarnContext(ctx, "revalidation rejected", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
