package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"quillpost/internal/middleware"
	"quillpost/internal/models"
)

type ChatHandler struct {
	completer completer
}

type completer interface {
	Complete(ctx context.Context, userID uuid.UUID, req models.CompletionRequest) (string, error)
}

func NewChatHandler(c completer) *ChatHandler {
	return &ChatHandler{completer: c}
}

// Complete answers POST /api/chat with {success, data:{content}}.
func (h *ChatHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req models.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	reply, err := h.completer.Complete(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    models.CompletionData{Content: &reply},
	})
}
