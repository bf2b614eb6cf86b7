package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quillpost/internal/models"
)

type ArticleRepo struct {
	pool *pgxpool.Pool
}

func NewArticleRepo(pool *pgxpool.Pool) *ArticleRepo {
	return &ArticleRepo{pool: pool}
}

const articleColumns = `id, user_id, title, content, status, published_at, created_at`

func (r *ArticleRepo) Create(ctx context.Context, a *models.Article) error {
	id := uuid.New()
	a.Status = models.ArticleDraft

	query := `INSERT INTO articles (id, user_id, title, content, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	if err := r.pool.QueryRow(ctx, query, id, a.UserID, a.Title, a.Content, a.Status).Scan(&a.CreatedAt); err != nil {
		return err
	}
	a.ID = id.String()
	return nil
}

func (r *ArticleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+articleColumns+" FROM articles WHERE id = $1", id)
	return scanArticle(row)
}

// ListDrafts returns the user's unpublished articles, newest first.
func (r *ArticleRepo) ListDrafts(ctx context.Context, userID uuid.UUID) ([]*models.Article, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+articleColumns+" FROM articles WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC",
		userID, models.ArticleDraft,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := []*models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// MarkPublished moves a draft to published. It returns pgx.ErrNoRows when
// the article is not a draft anymore.
func (r *ArticleRepo) MarkPublished(ctx context.Context, id uuid.UUID) (time.Time, error) {
	var publishedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE articles SET status = $1, published_at = NOW() WHERE id = $2 AND status = $3 RETURNING published_at`,
		models.ArticlePublished, id, models.ArticleDraft,
	).Scan(&publishedAt)
	return publishedAt, err
}

func scanArticle(row pgx.Row) (*models.Article, error) {
	var (
		a  models.Article
		id uuid.UUID
	)
	if err := row.Scan(&id, &a.UserID, &a.Title, &a.Content, &a.Status, &a.PublishedAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.ID = id.String()
	return &a, nil
}
