package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ArticleDraft     = "draft"
	ArticlePublished = "published"
)

type Article struct {
	ID          string     `json:"id"`
	UserID      uuid.UUID  `json:"-"`
	Title       string     `json:"title"`
	Content     string     `json:"content,omitempty"`
	Status      string     `json:"status,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt,omitempty"`
}

type PublishRequest struct {
	ArticleID string `json:"articleId"`
}

type CreateArticleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
