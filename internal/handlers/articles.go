package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"quillpost/internal/middleware"
	"quillpost/internal/models"
)

type ArticleHandler struct {
	publisher publisher
}

type publisher interface {
	ListDrafts(ctx context.Context, userID uuid.UUID) ([]*models.Article, error)
	CreateDraft(ctx context.Context, userID uuid.UUID, title, content string) (*models.Article, error)
	Publish(ctx context.Context, userID uuid.UUID, articleID string) (*models.Article, error)
}

func NewArticleHandler(p publisher) *ArticleHandler {
	return &ArticleHandler{publisher: p}
}

// List returns the caller's drafts as a bare JSON array.
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	articles, err := h.publisher.ListDrafts(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if articles == nil {
		articles = []*models.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	a, err := h.publisher.CreateDraft(r.Context(), middleware.GetUserID(r.Context()), req.Title, req.Content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *ArticleHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req models.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	a, err := h.publisher.Publish(r.Context(), middleware.GetUserID(r.Context()), req.ArticleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Article published",
		"article": a,
	})
}
