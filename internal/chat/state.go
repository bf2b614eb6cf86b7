// Package chat holds the client side of a conversation: the active
// transcript, the sidebar list of saved conversations and the model picker.
package chat

import (
	"context"
	"errors"
	"sync"

	"quillpost/internal/apiclient"
	"quillpost/internal/models"
)

var (
	ErrEmptyInput      = errors.New("input is empty")
	ErrBusy            = errors.New("a request is already in flight")
	ErrNoModel         = errors.New("no model configured")
	ErrUnknownModel    = errors.New("unknown model")
	ErrIndexOutOfRange = errors.New("message index out of range")

	// ErrSuperseded is returned when a reply arrives after the active
	// conversation was switched. The reply is dropped.
	ErrSuperseded = errors.New("conversation changed while waiting for a reply")
)

// API is the subset of the REST client the chat package drives.
type API interface {
	ListHistories(ctx context.Context) (*apiclient.HistoryList, error)
	GetHistory(ctx context.Context, id string) (*models.ChatHistoryRecord, error)
	CreateHistory(ctx context.Context, title string, messages []models.Message) (string, error)
	UpdateHistory(ctx context.Context, id string, messages []models.Message, title string) error
	DeleteHistory(ctx context.Context, id string) error
	ListModels(ctx context.Context) ([]models.ModelConfig, error)
	Complete(ctx context.Context, req models.CompletionRequest) (models.Completion, error)
	CreateArticle(ctx context.Context, title, content string) (*models.Article, error)
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Navigator reflects the active conversation id in the visible location.
// An empty id clears it.
type Navigator interface {
	SetChatID(id string)
}

// State is the shared client state. All access goes through its methods.
type State struct {
	mu sync.Mutex

	messages  []models.Message
	currentID string
	draft     string

	histories []models.ChatHistory

	models        []models.ModelConfig
	hasModels     bool
	selectedModel string

	inFlight   bool
	generation uint64
}

func NewState() *State {
	return &State{messages: []models.Message{}, histories: []models.ChatHistory{}}
}

// Messages returns a copy of the active transcript.
func (s *State) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneMessages(s.messages)
}

func (s *State) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

func (s *State) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *State) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

func (s *State) Histories() []models.ChatHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatHistory, len(s.histories))
	copy(out, s.histories)
	return out
}

func (s *State) Models() []models.ModelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ModelConfig, len(s.models))
	copy(out, s.models)
	return out
}

func (s *State) HasModels() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasModels
}

func (s *State) SelectedModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedModel
}

func (s *State) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

func (s *State) setHistories(list []models.ChatHistory) {
	s.mu.Lock()
	s.histories = list
	s.mu.Unlock()
}

// replace swaps in a new active conversation. Replies still in flight for the
// previous one are discarded.
func (s *State) replace(id string, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msgs == nil {
		msgs = []models.Message{}
	}
	s.messages = msgs
	s.currentID = id
	s.draft = ""
	s.generation++
}

func (s *State) clearIfCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentID != id {
		return false
	}
	s.messages = []models.Message{}
	s.currentID = ""
	s.generation++
	return true
}

func (s *State) finishRequest() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// adoptID sets the current id if the conversation is unchanged and still
// unsaved.
func (s *State) adoptID(gen uint64, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.currentID != "" {
		return false
	}
	s.currentID = id
	return true
}

// mutate applies fn to message i under the lock.
func (s *State) mutate(i int, fn func(m *models.Message) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.messages) {
		return ErrIndexOutOfRange
	}
	return fn(&s.messages[i])
}
