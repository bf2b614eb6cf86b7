package models

import (
	"time"

	"github.com/google/uuid"
)

// PublishJob asks the delivery workers to push a published article downstream.
type PublishJob struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ArticleID  uuid.UUID `json:"article_id"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
	CreatedAt  time.Time `json:"created_at"`
}
