package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presence/internal/center/models"
	id "presence/pkg/domain"
	"presence/pkg/platform/httputil"
	"presence/pkg/requestcontext"
)

// Service defines the center operations the handler needs.
type Service interface {
	Create(ctx context.Context, req models.CreateCenterRequest) (*models.Center, error)
	Update(ctx context.Context, centerID id.CenterID, patch models.UpdateCenterRequest) (*models.Center, error)
	Deactivate(ctx context.Context, centerID id.CenterID) (*models.Center, error)
	ListActive(ctx context.Context) ([]*models.Center, error)
	GetByID(ctx context.Context, centerID id.CenterID) (*models.Center, error)
}

// Handler wires center endpoints to the center service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/centers", h.HandleList)
	r.Get("/centers/{id}", h.HandleGet)
}

// RegisterAdmin mounts catalog maintenance endpoints; the caller applies the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/centers", h.HandleCreate)
	r.Patch("/admin/centers/{id}", h.HandleUpdate)
	r.Post("/admin/centers/{id}/deactivate", h.HandleDeactivate)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateCenterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.Create(ctx, *req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create center", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	centerID, err := id.ParseCenterID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	patch, ok := httputil.DecodeAndPrepare[models.UpdateCenterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.Update(ctx, centerID, *patch)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to update center", "request_id", requestID, "center_id", centerID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	centerID, err := id.ParseCenterID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Deactivate(ctx, centerID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to deactivate center",
			"request_id", requestcontext.RequestID(ctx),
			"center_id", centerID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	centers, err := h.service.ListActive(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"centers": centers})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	centerID, err := id.ParseCenterID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.GetByID(r.Context(), centerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}
