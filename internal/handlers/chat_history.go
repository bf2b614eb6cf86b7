package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"quillpost/internal/middleware"
	"quillpost/internal/models"
)

const defaultHistoryTitle = "New chat"

type ChatHistoryHandler struct {
	repo chatHistoryRepository
}

type chatHistoryRepository interface {
	Create(ctx context.Context, h *models.ChatHistory) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChatHistory, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ChatHistory, error)
	UpdateMessages(ctx context.Context, id uuid.UUID, messages []models.Message, title *string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

func NewChatHistoryHandler(repo chatHistoryRepository) *ChatHistoryHandler {
	return &ChatHistoryHandler{repo: repo}
}

// Get serves one conversation when ?id= is present, otherwise the caller's
// whole list.
func (h *ChatHistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	userID := middleware.GetUserID(r.Context())

	if rawID := r.URL.Query().Get("id"); rawID != "" {
		history, ok := h.loadOwned(w, r, rawID, userID)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":     true,
			"chatHistory": history,
		})
		return
	}

	histories, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch chat histories", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"histories": histories,
	})
}

func (h *ChatHistoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if !h.bodyUserMatches(w, r, req.UserID, userID) {
		return
	}

	msgs, err := models.ParseMessages(req.Messages)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid messages",
			map[string]string{"messages": err.Error()}, r))
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultHistoryTitle
	}

	history := &models.ChatHistory{UserID: userID, Title: title, Messages: msgs}
	if err := h.repo.Create(r.Context(), history); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create chat history", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"chatHistory": history,
	})
}

func (h *ChatHistoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if !h.bodyUserMatches(w, r, req.UserID, userID) {
		return
	}

	msgs, err := models.ParseMessages(req.Messages)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid messages",
			map[string]string{"messages": err.Error()}, r))
		return
	}

	existing, ok := h.loadOwned(w, r, req.ID, userID)
	if !ok {
		return
	}

	var title *string
	if t := strings.TrimSpace(req.Title); t != "" {
		title = &t
	}

	id, _ := uuid.Parse(existing.ID)
	if err := h.repo.UpdateMessages(r.Context(), id, msgs, title); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat history not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update chat history", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *ChatHistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	existing, ok := h.loadOwned(w, r, r.URL.Query().Get("id"), userID)
	if !ok {
		return
	}

	id, _ := uuid.Parse(existing.ID)
	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete chat history", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// loadOwned fetches rawID and checks it belongs to userID, writing the error
// response itself when it does not.
func (h *ChatHistoryHandler) loadOwned(w http.ResponseWriter, r *http.Request, rawID string, userID uuid.UUID) (*models.ChatHistory, bool) {
	if rawID == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Missing chat history ID",
			map[string]string{"id": "is required"}, r))
		return nil, false
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid chat history ID", r))
		return nil, false
	}

	history, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat history not found", r))
			return nil, false
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch chat history", r))
		return nil, false
	}
	if history.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "You do not have access to this chat history", r))
		return nil, false
	}
	return history, true
}

// bodyUserMatches rejects a userId in the body that names someone other than
// the authenticated caller.
func (h *ChatHistoryHandler) bodyUserMatches(w http.ResponseWriter, r *http.Request, bodyUserID string, userID uuid.UUID) bool {
	if bodyUserID == "" || bodyUserID == userID.String() {
		return true
	}
	writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "userId does not match the authenticated user", r))
	return false
}
