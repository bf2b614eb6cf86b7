package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quillpost/internal/models"
)

// HistoryStore keeps the list of saved conversations in sync with the server
// and switches the active conversation.
type HistoryStore struct {
	api    API
	state  *State
	notify Notifier
	nav    Navigator
	logger *zap.Logger
}

func NewHistoryStore(api API, state *State, notify Notifier, nav Navigator, logger *zap.Logger) *HistoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryStore{api: api, state: state, notify: notify, nav: nav, logger: logger}
}

// FetchAll refreshes the conversation list. It never fails: a broken record
// keeps its metadata with an empty transcript, and a failed request leaves
// an empty list.
func (h *HistoryStore) FetchAll(ctx context.Context) []models.ChatHistory {
	list, err := h.api.ListHistories(ctx)
	if err != nil {
		h.logger.Error("failed to fetch chat histories", zap.Error(err))
		h.notify.Error("Failed to load chat histories")
		h.state.setHistories([]models.ChatHistory{})
		return []models.ChatHistory{}
	}
	if !list.Success {
		h.logger.Warn("chat history list was not successful", zap.String("message", list.Message))
		h.state.setHistories([]models.ChatHistory{})
		return []models.ChatHistory{}
	}

	out := make([]models.ChatHistory, 0, len(list.Histories))
	for _, rec := range list.Histories {
		history, err := rec.Normalize()
		if err != nil {
			h.logger.Warn("dropping malformed messages",
				zap.String("chat_id", rec.ID),
				zap.Error(err),
			)
			history.Messages = []models.Message{}
		}
		out = append(out, history)
	}

	h.state.setHistories(out)
	return out
}

// Load makes conversation id the active one.
func (h *HistoryStore) Load(ctx context.Context, id string) error {
	rec, err := h.api.GetHistory(ctx, id)
	if err != nil {
		h.logger.Error("failed to load chat history", zap.String("chat_id", id), zap.Error(err))
		h.notify.Error("Failed to load conversation")
		return fmt.Errorf("load chat %s: %w", id, err)
	}

	history, err := rec.Normalize()
	if err != nil {
		h.logger.Error("chat history has invalid messages", zap.String("chat_id", id), zap.Error(err))
		h.notify.Error("Conversation data is invalid")
		return fmt.Errorf("load chat %s: %w", id, err)
	}

	h.state.replace(id, history.Messages)
	h.nav.SetChatID(id)
	return nil
}

// Delete removes conversation id. Deleting the active conversation clears it.
func (h *HistoryStore) Delete(ctx context.Context, id string) error {
	if err := h.api.DeleteHistory(ctx, id); err != nil {
		h.logger.Error("failed to delete chat history", zap.String("chat_id", id), zap.Error(err))
		h.notify.Error("Failed to delete conversation")
		return fmt.Errorf("delete chat %s: %w", id, err)
	}

	h.notify.Success("Conversation deleted")
	if h.state.clearIfCurrent(id) {
		h.nav.SetChatID("")
	}
	h.FetchAll(ctx)
	return nil
}
