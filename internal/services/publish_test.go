package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"quillpost/internal/models"
)

type stubArticleStore struct {
	articles  map[uuid.UUID]*models.Article
	published []uuid.UUID
}

func (s *stubArticleStore) Create(ctx context.Context, a *models.Article) error {
	id := uuid.New()
	a.ID = id.String()
	a.Status = models.ArticleDraft
	s.articles[id] = a
	return nil
}

func (s *stubArticleStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	a, ok := s.articles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (s *stubArticleStore) ListDrafts(ctx context.Context, userID uuid.UUID) ([]*models.Article, error) {
	return nil, nil
}

func (s *stubArticleStore) MarkPublished(ctx context.Context, id uuid.UUID) (time.Time, error) {
	s.published = append(s.published, id)
	s.articles[id].Status = models.ArticlePublished
	return time.Now(), nil
}

type stubDeliveries struct {
	created   []*models.PublishJob
	statuses  map[uuid.UUID]string
	statusErr error
}

func (s *stubDeliveries) Create(ctx context.Context, j *models.PublishJob) error {
	j.ID = uuid.New()
	s.created = append(s.created, j)
	return nil
}

func (s *stubDeliveries) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	if s.statuses == nil {
		s.statuses = map[uuid.UUID]string{}
	}
	s.statuses[id] = status
	return nil
}

type memQueue struct {
	pushed map[string][][]byte
	err    error
}

func (q *memQueue) Push(ctx context.Context, queue string, payload []byte) error {
	if q.err != nil {
		return q.err
	}
	if q.pushed == nil {
		q.pushed = map[string][][]byte{}
	}
	q.pushed[queue] = append(q.pushed[queue], payload)
	return nil
}

func TestPublishService_Publish(t *testing.T) {
	owner := uuid.New()
	articleID := uuid.New()
	articles := &stubArticleStore{articles: map[uuid.UUID]*models.Article{
		articleID: {ID: articleID.String(), UserID: owner, Title: "Draft", Status: models.ArticleDraft},
	}}
	deliveries := &stubDeliveries{}
	queue := &memQueue{}
	svc := NewPublishService(articles, deliveries, queue, zap.NewNop())

	a, err := svc.Publish(context.Background(), owner, articleID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != models.ArticlePublished || a.PublishedAt == nil {
		t.Fatalf("expected published article, got %+v", a)
	}
	if len(queue.pushed[PublishQueue]) != 1 {
		t.Fatalf("expected one queued delivery, got %d", len(queue.pushed[PublishQueue]))
	}

	var job models.PublishJob
	if err := json.Unmarshal(queue.pushed[PublishQueue][0], &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ArticleID != articleID || job.UserID != owner || job.ID != deliveries.created[0].ID {
		t.Fatalf("unexpected job %+v", job)
	}

	_, err = svc.Publish(context.Background(), owner, articleID.String())
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict on second publish, got %v", err)
	}
}

func TestPublishService_Guards(t *testing.T) {
	owner := uuid.New()
	articleID := uuid.New()
	articles := &stubArticleStore{articles: map[uuid.UUID]*models.Article{
		articleID: {ID: articleID.String(), UserID: owner, Status: models.ArticleDraft},
	}}
	svc := NewPublishService(articles, &stubDeliveries{}, &memQueue{}, zap.NewNop())

	var ve *ValidationError
	if _, err := svc.Publish(context.Background(), owner, "bad"); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var nf *NotFoundError
	if _, err := svc.Publish(context.Background(), owner, uuid.NewString()); !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
	var fe *ForbiddenError
	if _, err := svc.Publish(context.Background(), uuid.New(), articleID.String()); !errors.As(err, &fe) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(articles.published) != 0 {
		t.Fatalf("no article should have been published")
	}
}

func TestPublishService_QueueFailureKeepsArticlePublished(t *testing.T) {
	owner := uuid.New()
	articleID := uuid.New()
	articles := &stubArticleStore{articles: map[uuid.UUID]*models.Article{
		articleID: {ID: articleID.String(), UserID: owner, Status: models.ArticleDraft},
	}}
	deliveries := &stubDeliveries{}
	svc := NewPublishService(articles, deliveries, &memQueue{err: errors.New("redis down")}, zap.NewNop())

	if _, err := svc.Publish(context.Background(), owner, articleID.String()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobID := deliveries.created[0].ID
	if deliveries.statuses[jobID] != "failed" {
		t.Fatalf("expected delivery marked failed, got %q", deliveries.statuses[jobID])
	}
}

func TestPublishService_QueueFailureLogsStatusError(t *testing.T) {
	owner := uuid.New()
	articleID := uuid.New()
	articles := &stubArticleStore{articles: map[uuid.UUID]*models.Article{
		articleID: {ID: articleID.String(), UserID: owner, Status: models.ArticleDraft},
	}}
	deliveries := &stubDeliveries{statusErr: errors.New("db down")}
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewPublishService(articles, deliveries, &memQueue{err: errors.New("redis down")}, zap.New(core))

	if _, err := svc.Publish(context.Background(), owner, articleID.String()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := logs.FilterMessage("failed to mark publish delivery failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected the status error to be logged once, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["job_id"]; got != deliveries.created[0].ID.String() {
		t.Errorf("Expected job_id %s, got %v", deliveries.created[0].ID, got)
	}
}

func TestPublishService_CreateDraft(t *testing.T) {
	articles := &stubArticleStore{articles: map[uuid.UUID]*models.Article{}}
	svc := NewPublishService(articles, &stubDeliveries{}, nil, zap.NewNop())

	var ve *ValidationError
	if _, err := svc.CreateDraft(context.Background(), uuid.New(), "   ", ""); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	a, err := svc.CreateDraft(context.Background(), uuid.New(), " Title ", "body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Title != "Title" || a.Status != models.ArticleDraft {
		t.Fatalf("unexpected article %+v", a)
	}
}
