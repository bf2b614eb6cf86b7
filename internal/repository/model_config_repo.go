package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quillpost/internal/models"
)

type ModelConfigRepo struct {
	pool *pgxpool.Pool
}

func NewModelConfigRepo(pool *pgxpool.Pool) *ModelConfigRepo {
	return &ModelConfigRepo{pool: pool}
}

const modelConfigColumns = `id, user_id, name, endpoint, model, provider, api_key_enc, is_default, created_at`

// Create stores m. When m is the default, any previous default of the same
// user is cleared in the same transaction.
func (r *ModelConfigRepo) Create(ctx context.Context, m *models.ModelConfig) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if m.IsDefault {
		if _, err := tx.Exec(ctx,
			"UPDATE model_configs SET is_default = FALSE WHERE user_id = $1 AND is_default", m.UserID,
		); err != nil {
			return err
		}
	}

	id := uuid.New()
	query := `INSERT INTO model_configs (id, user_id, name, endpoint, model, provider, api_key_enc, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`
	if err := tx.QueryRow(ctx, query,
		id, m.UserID, m.Name, m.Endpoint, m.Model, m.Provider, m.APIKeyEnc, m.IsDefault,
	).Scan(&m.CreatedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	m.ID = id.String()
	m.HasAPIKey = len(m.APIKeyEnc) > 0
	return nil
}

func (r *ModelConfigRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ModelConfig, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+modelConfigColumns+" FROM model_configs WHERE user_id = $1 ORDER BY is_default DESC, created_at ASC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []*models.ModelConfig{}
	for rows.Next() {
		m, err := scanModelConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, m)
	}
	return configs, rows.Err()
}

func (r *ModelConfigRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+modelConfigColumns+" FROM model_configs WHERE id = $1", id)
	return scanModelConfig(row)
}

func scanModelConfig(row pgx.Row) (*models.ModelConfig, error) {
	var (
		m  models.ModelConfig
		id uuid.UUID
	)
	if err := row.Scan(
		&id, &m.UserID, &m.Name, &m.Endpoint, &m.Model, &m.Provider, &m.APIKeyEnc, &m.IsDefault, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.ID = id.String()
	m.HasAPIKey = len(m.APIKeyEnc) > 0
	return &m, nil
}
