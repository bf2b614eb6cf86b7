package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"quillpost/internal/models"
)

const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// JobRepo tracks publish deliveries so a webhook outage is visible after the
// Redis job is gone.
type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Create(ctx context.Context, j *models.PublishJob) error {
	j.ID = uuid.New()
	j.RetryCount = 0
	j.MaxRetries = 3

	query := `INSERT INTO publish_deliveries (id, article_id, user_id, status)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	return r.pool.QueryRow(ctx, query, j.ID, j.ArticleID, j.UserID, DeliveryPending).Scan(&j.CreatedAt)
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if status == DeliveryDelivered {
		_, err := r.pool.Exec(ctx,
			"UPDATE publish_deliveries SET status = $1, delivered_at = $2 WHERE id = $3",
			status, time.Now(), id,
		)
		return err
	}
	_, err := r.pool.Exec(ctx, "UPDATE publish_deliveries SET status = $1 WHERE id = $2", status, id)
	return err
}

func (r *JobRepo) UpdateError(ctx context.Context, id uuid.UUID, errMsg string, attempts int) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE publish_deliveries SET last_error = $1, attempts = $2 WHERE id = $3",
		errMsg, attempts, id,
	)
	return err
}
