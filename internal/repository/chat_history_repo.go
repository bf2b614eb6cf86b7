package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quillpost/internal/models"
)

type ChatHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewChatHistoryRepo(pool *pgxpool.Pool) *ChatHistoryRepo {
	return &ChatHistoryRepo{pool: pool}
}

const chatHistoryColumns = `id, user_id, title, topic, description, category, messages, is_starred, tags, created_at, updated_at`

func (r *ChatHistoryRepo) Create(ctx context.Context, h *models.ChatHistory) error {
	id := uuid.New()
	msgBytes, err := marshalMessages(h.Messages)
	if err != nil {
		return err
	}
	if h.Tags == nil {
		h.Tags = []string{}
	}

	query := `INSERT INTO chat_histories (id, user_id, title, topic, description, category, messages, is_starred, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		id, h.UserID, h.Title, h.Topic, h.Description, h.Category, msgBytes, h.IsStarred, h.Tags,
	).Scan(&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return err
	}
	h.ID = id.String()
	return nil
}

func (r *ChatHistoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatHistory, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+chatHistoryColumns+" FROM chat_histories WHERE id = $1", id)
	return scanChatHistory(row)
}

// ListByUser returns the user's conversations, most recently updated first.
func (r *ChatHistoryRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ChatHistory, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+chatHistoryColumns+" FROM chat_histories WHERE user_id = $1 ORDER BY updated_at DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	histories := []*models.ChatHistory{}
	for rows.Next() {
		h, err := scanChatHistory(rows)
		if err != nil {
			return nil, err
		}
		histories = append(histories, h)
	}
	return histories, rows.Err()
}

// UpdateMessages replaces the transcript, and the title when title is non-nil.
func (r *ChatHistoryRepo) UpdateMessages(ctx context.Context, id uuid.UUID, messages []models.Message, title *string) error {
	msgBytes, err := marshalMessages(messages)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE chat_histories SET messages = $1, title = COALESCE($2, title), updated_at = NOW() WHERE id = $3`,
		msgBytes, title, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ChatHistoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM chat_histories WHERE id = $1", id)
	return err
}

func scanChatHistory(row pgx.Row) (*models.ChatHistory, error) {
	var (
		h      models.ChatHistory
		id     uuid.UUID
		rawMsg []byte
	)
	err := row.Scan(
		&id, &h.UserID, &h.Title, &h.Topic, &h.Description, &h.Category,
		&rawMsg, &h.IsStarred, &h.Tags, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	h.ID = id.String()

	// A stored transcript that no longer validates is served empty.
	msgs, err := models.ParseMessages(rawMsg)
	if err != nil {
		msgs = []models.Message{}
	}
	h.Messages = msgs
	return &h, nil
}

func marshalMessages(msgs []models.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []models.Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode messages: %w", err)
	}
	return b, nil
}
