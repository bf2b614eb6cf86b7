package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quillpost/internal/models"
)

const (
	PublishQueue   = "queue:article-publish"
	deliveryFailed = "failed"
)

type articleStore interface {
	Create(ctx context.Context, a *models.Article) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Article, error)
	ListDrafts(ctx context.Context, userID uuid.UUID) ([]*models.Article, error)
	MarkPublished(ctx context.Context, id uuid.UUID) (time.Time, error)
}

type deliveryStore interface {
	Create(ctx context.Context, j *models.PublishJob) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// JobQueue pushes a serialized job onto a named queue.
type JobQueue interface {
	Push(ctx context.Context, queue string, payload []byte) error
}

type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Push(ctx context.Context, queue string, payload []byte) error {
	return q.client.LPush(ctx, queue, payload).Err()
}

type PublishService struct {
	articles   articleStore
	deliveries deliveryStore
	queue      JobQueue
	logger     *zap.Logger
}

func NewPublishService(articles articleStore, deliveries deliveryStore, queue JobQueue, logger *zap.Logger) *PublishService {
	return &PublishService{articles: articles, deliveries: deliveries, queue: queue, logger: logger}
}

func (s *PublishService) ListDrafts(ctx context.Context, userID uuid.UUID) ([]*models.Article, error) {
	return s.articles.ListDrafts(ctx, userID)
}

func (s *PublishService) CreateDraft(ctx context.Context, userID uuid.UUID, title, content string) (*models.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Fields: map[string]string{"title": "is required"}}
	}
	a := &models.Article{UserID: userID, Title: title, Content: content}
	if err := s.articles.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}
	return a, nil
}

// Publish moves the caller's draft to published and queues its delivery.
// A delivery that cannot be queued is recorded as failed; the article stays
// published.
func (s *PublishService) Publish(ctx context.Context, userID uuid.UUID, articleID string) (*models.Article, error) {
	id, err := uuid.Parse(articleID)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"articleId": "must be a valid ID"}}
	}

	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Article not found"}
		}
		return nil, fmt.Errorf("get article: %w", err)
	}
	if article.UserID != userID {
		return nil, &ForbiddenError{Message: "You do not have access to this article"}
	}
	if article.Status == models.ArticlePublished {
		return nil, &ConflictError{Message: "Article is already published"}
	}

	publishedAt, err := s.articles.MarkPublished(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ConflictError{Message: "Article is already published"}
		}
		return nil, fmt.Errorf("mark article published: %w", err)
	}
	article.Status = models.ArticlePublished
	article.PublishedAt = &publishedAt

	s.enqueueDelivery(ctx, userID, id)
	return article, nil
}

func (s *PublishService) enqueueDelivery(ctx context.Context, userID, articleID uuid.UUID) {
	job := &models.PublishJob{UserID: userID, ArticleID: articleID}
	if err := s.deliveries.Create(ctx, job); err != nil {
		s.logger.Error("failed to record publish delivery", zap.String("article_id", articleID.String()), zap.Error(err))
		return
	}

	payload, _ := json.Marshal(job)
	if s.queue == nil {
		s.logger.Warn("publish queue is unavailable", zap.String("job_id", job.ID.String()))
		s.markFailed(ctx, job.ID)
		return
	}
	if err := s.queue.Push(ctx, PublishQueue, payload); err != nil {
		s.logger.Error("failed to enqueue publish delivery", zap.String("job_id", job.ID.String()), zap.Error(err))
		s.markFailed(ctx, job.ID)
		return
	}
	s.logger.Info("publish delivery queued",
		zap.String("job_id", job.ID.String()),
		zap.String("article_id", articleID.String()),
	)
}

func (s *PublishService) markFailed(ctx context.Context, jobID uuid.UUID) {
	if err := s.deliveries.UpdateStatus(ctx, jobID, deliveryFailed); err != nil {
		s.logger.Warn("failed to mark publish delivery failed", zap.String("job_id", jobID.String()), zap.Error(err))
	}
}
