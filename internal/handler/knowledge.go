package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/angebot-ai/sales-assistant/internal/knowledge"
	"github.com/angebot-ai/sales-assistant/internal/middleware"
	"github.com/angebot-ai/sales-assistant/internal/model"
	"github.com/angebot-ai/sales-assistant/pkg/logger"
)

// KnowledgeHandler handles the admin knowledge-base endpoints.
type KnowledgeHandler struct {
	store  *knowledge.Store
	logger *logger.Logger
}

// NewKnowledgeHandler creates a new knowledge handler.
func NewKnowledgeHandler(store *knowledge.Store, log *logger.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		store:  store,
		logger: log,
	}
}

// Create handles POST /api/v1/knowledge
func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.UpsertKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content cannot be empty")
		return
	}

	item, err := h.store.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create knowledge item", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create knowledge item")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// List handles GET /api/v1/knowledge
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list knowledge items", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list knowledge items")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListKnowledgeResponse{
		Items: items,
		Total: len(items),
	})
}

// Update handles PUT /api/v1/knowledge/:id
func (h *KnowledgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateKnowledgeID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpsertKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.store.Update(r.Context(), id, &req)
	if err != nil {
		writeError(w, http.StatusNotFound, "knowledge item not found")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /api/v1/knowledge/:id
func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateKnowledgeID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "knowledge item not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
