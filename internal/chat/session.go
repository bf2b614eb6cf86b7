package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"quillpost/internal/models"
)

// Session drives the active conversation: sending, regenerating and the
// per-message actions.
type Session struct {
	api     API
	state   *State
	history *HistoryStore
	notify  Notifier
	nav     Navigator
	logger  *zap.Logger
	now     func() time.Time
}

func NewSession(api API, state *State, history *HistoryStore, notify Notifier, nav Navigator, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		api:     api,
		state:   state,
		history: history,
		notify:  notify,
		nav:     nav,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Session) State() *State { return s.state }

func (s *Session) timestamp() int64 { return s.now().UnixMilli() }

// Send posts text as a new user message and appends the assistant's reply.
// Nothing is appended or sent for blank input, while another request is in
// flight, or without a selected model.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	st := s.state
	st.mu.Lock()
	if st.inFlight {
		st.mu.Unlock()
		return ErrBusy
	}
	if !st.hasModels || st.selectedModel == "" {
		st.mu.Unlock()
		s.notify.Error("Please configure an AI model first")
		return ErrNoModel
	}

	quote, body, quoted := parseQuote(text)
	userMsg := models.Message{
		Role:      models.RoleUser,
		Content:   body,
		Timestamp: s.timestamp(),
		Status:    models.StatusSending,
	}
	if quoted {
		userMsg.ReplyTo = &models.ReplyRef{Content: quote, Role: quotedRole(st.messages, quote)}
	}

	isNew := len(st.messages) == 0 && st.currentID == ""
	st.messages = append(st.messages, userMsg)
	userIdx := len(st.messages) - 1
	st.draft = ""
	st.inFlight = true
	gen := st.generation
	modelID := st.selectedModel
	transcript := models.CloneMessages(st.messages)
	st.mu.Unlock()

	defer st.finishRequest()

	if isNew {
		s.createEagerly(ctx, gen, userMsg)
	}

	reply, err := s.api.Complete(ctx, models.CompletionRequest{
		Messages: models.ToChatMessages(transcript),
		ModelID:  modelID,
	})
	if err != nil {
		s.markFailed(gen, userIdx, err)
		s.notify.Error("Failed to send message: " + err.Error())
		return fmt.Errorf("send message: %w", err)
	}

	snapshot, id, ok := s.appendReply(gen, userIdx, reply.Content)
	if !ok {
		s.logger.Debug("discarding reply for a switched conversation")
		return ErrSuperseded
	}

	if id != "" {
		s.update(ctx, id, snapshot, GenerateTitle(snapshot, s.now()))
	} else {
		s.create(ctx, gen, snapshot)
	}
	return nil
}

// Regenerate drops message at and everything after it, then asks for a new
// reply to what remains.
func (s *Session) Regenerate(ctx context.Context, at int) error {
	st := s.state
	st.mu.Lock()
	if st.inFlight {
		st.mu.Unlock()
		return ErrBusy
	}
	if !st.hasModels || st.selectedModel == "" {
		st.mu.Unlock()
		s.notify.Error("Please configure an AI model first")
		return ErrNoModel
	}
	if at < 0 || at > len(st.messages) {
		st.mu.Unlock()
		return ErrIndexOutOfRange
	}

	st.messages = st.messages[:at:at]
	if len(st.messages) == 0 {
		st.mu.Unlock()
		return nil
	}
	st.inFlight = true
	gen := st.generation
	modelID := st.selectedModel
	kept := models.CloneMessages(st.messages)
	st.mu.Unlock()

	defer st.finishRequest()

	reply, err := s.api.Complete(ctx, models.CompletionRequest{
		Messages: models.ToChatMessages(kept),
		ModelID:  modelID,
	})
	if err != nil {
		s.notify.Error("Failed to regenerate response: " + err.Error())
		return fmt.Errorf("regenerate: %w", err)
	}

	snapshot, id, ok := s.appendReply(gen, -1, reply.Content)
	if !ok {
		return ErrSuperseded
	}

	if id != "" {
		var title string
		if len(kept) == 1 {
			title = GenerateTitle(kept, s.now())
		}
		s.update(ctx, id, snapshot, title)
	} else {
		s.create(ctx, gen, snapshot)
	}
	return nil
}

// createEagerly saves a brand-new conversation before its first reply.
// Failures are logged only; the record is created again after the reply.
func (s *Session) createEagerly(ctx context.Context, gen uint64, first models.Message) {
	msgs := []models.Message{first}
	id, err := s.api.CreateHistory(ctx, GenerateTitle(msgs, s.now()), msgs)
	if err != nil {
		s.logger.Warn("failed to create conversation", zap.Error(err))
		return
	}
	if s.state.adoptID(gen, id) {
		s.nav.SetChatID(id)
		s.history.FetchAll(ctx)
	}
}

func (s *Session) create(ctx context.Context, gen uint64, msgs []models.Message) {
	id, err := s.api.CreateHistory(ctx, GenerateTitle(msgs, s.now()), msgs)
	if err != nil {
		s.logger.Error("failed to save conversation", zap.Error(err))
		s.notify.Error("Failed to save conversation")
		return
	}
	if s.state.adoptID(gen, id) {
		s.nav.SetChatID(id)
	}
	s.notify.Success("Conversation saved")
	s.history.FetchAll(ctx)
}

func (s *Session) update(ctx context.Context, id string, msgs []models.Message, title string) {
	if err := s.api.UpdateHistory(ctx, id, msgs, title); err != nil {
		s.logger.Error("failed to update conversation", zap.String("chat_id", id), zap.Error(err))
		s.notify.Error("Failed to save conversation")
		return
	}
	s.history.FetchAll(ctx)
}

func (s *Session) markFailed(gen uint64, idx int, cause error) {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.generation != gen || idx >= len(st.messages) {
		return
	}
	st.messages[idx].Status = models.StatusError
	st.messages[idx].Error = cause.Error()
}

// appendReply records a successful reply. userIdx, when not negative, is the
// user message that is marked delivered. It returns the transcript and the
// current id to persist.
func (s *Session) appendReply(gen uint64, userIdx int, content string) ([]models.Message, string, bool) {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.generation != gen {
		return nil, "", false
	}
	if userIdx >= 0 && userIdx < len(st.messages) {
		st.messages[userIdx].Status = models.StatusSuccess
		st.messages[userIdx].Error = ""
	}
	st.messages = append(st.messages, models.Message{
		Role:      models.RoleAssistant,
		Content:   content,
		Timestamp: s.timestamp(),
		Status:    models.StatusSuccess,
	})
	return models.CloneMessages(st.messages), st.currentID, true
}

func quotedRole(msgs []models.Message, quote string) models.Role {
	for _, m := range msgs {
		if strings.Contains(m.Content, quote) {
			return m.Role
		}
	}
	return models.RoleAssistant
}

// NewChat starts an unsaved conversation.
func (s *Session) NewChat() {
	s.state.replace("", nil)
	s.nav.SetChatID("")
}

// Open prepares the session at start-up: it refreshes the sidebar and the
// model list, then opens id or starts a new chat.
func (s *Session) Open(ctx context.Context, id string) {
	s.history.FetchAll(ctx)
	if err := s.CheckModels(ctx); err != nil {
		s.logger.Warn("no models available", zap.Error(err))
	}

	if id == "" {
		s.NewChat()
		return
	}
	if err := s.history.Load(ctx, id); err != nil {
		s.NewChat()
	}
}

// CheckModels refreshes the configured models and picks the default (or the
// first) when nothing is selected yet.
func (s *Session) CheckModels(ctx context.Context) error {
	list, err := s.api.ListModels(ctx)

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err != nil {
		st.hasModels = false
		return fmt.Errorf("check models: %w", err)
	}
	st.models = list
	if len(list) == 0 {
		st.hasModels = false
		return ErrNoModel
	}
	st.hasModels = true
	if st.selectedModel == "" {
		st.selectedModel = list[0].ID
		for _, m := range list {
			if m.IsDefault {
				st.selectedModel = m.ID
				break
			}
		}
	}
	return nil
}

func (s *Session) SelectModel(id string) error {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, m := range st.models {
		if m.ID == id {
			st.selectedModel = id
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownModel, id)
}

func (s *Session) ToggleStar(i int) error {
	return s.state.mutate(i, func(m *models.Message) error {
		m.IsStarred = !m.IsStarred
		return nil
	})
}

func (s *Session) AddTag(i int, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ErrEmptyInput
	}
	return s.state.mutate(i, func(m *models.Message) error {
		for _, t := range m.Tags {
			if t == tag {
				return nil
			}
		}
		m.Tags = append(m.Tags, tag)
		return nil
	})
}

func (s *Session) RemoveTag(i int, tag string) error {
	return s.state.mutate(i, func(m *models.Message) error {
		kept := m.Tags[:0]
		for _, t := range m.Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		m.Tags = kept
		return nil
	})
}

func (s *Session) AddReaction(i int, kind string) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return ErrEmptyInput
	}
	ts := s.timestamp()
	return s.state.mutate(i, func(m *models.Message) error {
		m.Reactions = append(m.Reactions, models.Reaction{Type: kind, Timestamp: ts})
		return nil
	})
}

// EditMessage replaces the content of message i, keeping the old content in
// its edit history.
func (s *Session) EditMessage(i int, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyInput
	}
	ts := s.timestamp()
	return s.state.mutate(i, func(m *models.Message) error {
		if m.Content == content {
			return nil
		}
		m.EditHistory = append(m.EditHistory, models.Edit{Content: m.Content, Timestamp: ts})
		m.Content = content
		return nil
	})
}

// PrepareEdit copies message i into the input draft.
func (s *Session) PrepareEdit(i int) error {
	return s.draftFrom(i, func(content string) string { return content })
}

// QuoteReply starts a draft that quotes message i.
func (s *Session) QuoteReply(i int) error {
	return s.draftFrom(i, quoteDraft)
}

func (s *Session) draftFrom(i int, format func(string) string) error {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()
	if i < 0 || i >= len(st.messages) {
		return ErrIndexOutOfRange
	}
	st.draft = format(st.messages[i].Content)
	return nil
}

// DraftArticleFromMessage creates a draft article from message i.
func (s *Session) DraftArticleFromMessage(ctx context.Context, i int) (*models.Article, error) {
	st := s.state
	st.mu.Lock()
	if i < 0 || i >= len(st.messages) {
		st.mu.Unlock()
		return nil, ErrIndexOutOfRange
	}
	content := st.messages[i].Content
	st.mu.Unlock()

	article, err := s.api.CreateArticle(ctx, ExtractArticleTitle(content), content)
	if err != nil {
		s.logger.Error("failed to create draft article", zap.Error(err))
		s.notify.Error("Failed to create article, please copy the content manually")
		return nil, fmt.Errorf("create draft article: %w", err)
	}
	s.notify.Success("Draft article created: " + article.Title)
	return article, nil
}
