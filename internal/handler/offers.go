package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/angebot-ai/sales-assistant/internal/middleware"
	"github.com/angebot-ai/sales-assistant/internal/model"
	"github.com/angebot-ai/sales-assistant/internal/service"
	"github.com/angebot-ai/sales-assistant/pkg/logger"
)

// OfferHandler handles saved-offer endpoints.
type OfferHandler struct {
	service *service.OfferService
	logger  *logger.Logger
}

// NewOfferHandler creates a new offer handler.
func NewOfferHandler(svc *service.OfferService, log *logger.Logger) *OfferHandler {
	return &OfferHandler{
		service: svc,
		logger:  log,
	}
}

// Save handles POST /api/v1/offers
func (h *OfferHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.SaveOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.service.Save(ctx, userID, req.Offer)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, saved)
}

// List handles GET /api/v1/offers
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	resp, err := h.service.List(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list offers", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list offers")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/offers/:id
func (h *OfferHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	offerID := chi.URLParam(r, "id")

	if err := middleware.ValidateOfferID(offerID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.service.Get(ctx, userID, offerID)
	if err != nil {
		writeError(w, http.StatusNotFound, "offer not found")
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

// Delete handles DELETE /api/v1/offers/:id
func (h *OfferHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	offerID := chi.URLParam(r, "id")

	if err := middleware.ValidateOfferID(offerID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(ctx, userID, offerID); err != nil {
		writeError(w, http.StatusNotFound, "offer not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
