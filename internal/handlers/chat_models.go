package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"quillpost/internal/middleware"
	"quillpost/internal/models"
)

type ChatModelsHandler struct {
	models modelConfigService
}

type modelConfigService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*models.ModelConfig, error)
	Register(ctx context.Context, userID uuid.UUID, req models.CreateModelRequest) (*models.ModelConfig, error)
}

func NewChatModelsHandler(svc modelConfigService) *ChatModelsHandler {
	return &ChatModelsHandler{models: svc}
}

func (h *ChatModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	configs, err := h.models.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    configs,
	})
}

func (h *ChatModelsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	m, err := h.models.Register(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    m,
	})
}
