package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quillpost/internal/models"
	"quillpost/internal/repository"
	"quillpost/internal/services"
)

type articleReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Article, error)
}

type deliveryTracker interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, attempts int) error
}

// Deliverer hands a published article to the downstream channel.
type Deliverer interface {
	Deliver(ctx context.Context, article *models.Article) error
}

const (
	pollTimeout = 5 * time.Second
	lockTTL     = 10 * time.Minute
)

// Pool drains the publish queue. Each job is guarded by a Redis lock so a
// job pushed twice is delivered once at a time.
type Pool struct {
	redis      *redis.Client
	queue      services.JobQueue
	articles   articleReader
	deliveries deliveryTracker
	deliverer  Deliverer
	logger     *zap.Logger
	size       int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	backoff func(attempt int) time.Duration
}

func NewPool(
	redisClient *redis.Client,
	articles articleReader,
	deliveries deliveryTracker,
	deliverer Deliverer,
	logger *zap.Logger,
	size int,
) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		redis:      redisClient,
		queue:      services.NewRedisQueue(redisClient),
		articles:   articles,
		deliveries: deliveries,
		deliverer:  deliverer,
		logger:     logger,
		size:       size,
		ctx:        ctx,
		cancel:     cancel,
		backoff:    exponentialBackoff,
	}
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	p.logger.Info("publish workers started", zap.Int("workers", p.size))
}

// Stop cancels any pending BLPOP and waits for in-flight deliveries.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker", id))

	for p.ctx.Err() == nil {
		job, ok := p.next(log)
		if !ok {
			continue
		}
		p.deliverLocked(job)
	}
	log.Debug("worker stopped")
}

// next blocks for up to pollTimeout and decodes one job.
func (p *Pool) next(log *zap.Logger) (*models.PublishJob, bool) {
	result, err := p.redis.BLPop(p.ctx, pollTimeout, services.PublishQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && p.ctx.Err() == nil {
			log.Warn("publish queue poll failed", zap.Error(err))
			time.Sleep(time.Second)
		}
		return nil, false
	}
	if len(result) < 2 {
		return nil, false
	}

	var job models.PublishJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		log.Warn("dropping malformed publish job", zap.Error(err))
		return nil, false
	}
	return &job, true
}

// deliverLocked runs one job under its lock. Deliveries use a fresh context
// so shutdown lets them finish.
func (p *Pool) deliverLocked(job *models.PublishJob) {
	ctx := context.Background()
	lockKey := "publish_lock:" + job.ID.String()
	locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil || !locked {
		return
	}
	defer p.redis.Del(ctx, lockKey)

	p.process(ctx, job)
}

func (p *Pool) process(ctx context.Context, job *models.PublishJob) {
	log := p.logger.With(zap.String("job_id", job.ID.String()), zap.String("article_id", job.ArticleID.String()))

	article, err := p.articles.GetByID(ctx, job.ArticleID)
	if err != nil {
		p.handleFailure(ctx, job, fmt.Errorf("failed to load article: %w", err))
		return
	}

	if err := p.deliverer.Deliver(ctx, article); err != nil {
		p.handleFailure(ctx, job, err)
		return
	}

	p.setStatus(ctx, job, repository.DeliveryDelivered)
	log.Info("article delivered", zap.Int("attempt", job.RetryCount+1))
}

func (p *Pool) handleFailure(ctx context.Context, job *models.PublishJob, err error) {
	job.RetryCount++
	errMsg := err.Error()
	log := p.logger.With(zap.String("job_id", job.ID.String()), zap.Int("attempt", job.RetryCount))

	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	if uerr := p.deliveries.UpdateError(ctx, job.ID, errMsg, job.RetryCount); uerr != nil {
		log.Warn("failed to record delivery error", zap.Error(uerr))
	}

	if job.RetryCount < maxRetries {
		log.Warn("delivery failed, retrying", zap.Error(err))
		p.setStatus(ctx, job, repository.DeliveryPending)

		jobBytes, _ := json.Marshal(job)
		time.AfterFunc(p.backoff(job.RetryCount), func() {
			if err := p.queue.Push(context.Background(), services.PublishQueue, jobBytes); err != nil {
				p.logger.Error("failed to requeue publish job", zap.String("job_id", job.ID.String()), zap.Error(err))
			}
		})
		return
	}

	log.Error("delivery failed permanently", zap.Error(err))
	p.setStatus(ctx, job, repository.DeliveryFailed)
}

func (p *Pool) setStatus(ctx context.Context, job *models.PublishJob, status string) {
	if err := p.deliveries.UpdateStatus(ctx, job.ID, status); err != nil {
		p.logger.Warn("failed to update delivery status",
			zap.String("job_id", job.ID.String()),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}
