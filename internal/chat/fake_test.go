package chat

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"quillpost/internal/apiclient"
	"quillpost/internal/models"
)

type updateCall struct {
	ID       string
	Messages []models.Message
	Title    string
}

type createCall struct {
	Title    string
	Messages []models.Message
}

type fakeAPI struct {
	mu sync.Mutex

	histories    *apiclient.HistoryList
	historiesErr error
	record       *models.ChatHistoryRecord
	recordErr    error

	modelList []models.ModelConfig
	modelsErr error

	reply       models.Completion
	completeErr error

	// block, when set, is waited on before Complete returns.
	block chan struct{}

	createErr error
	nextID    int

	deleteErr error

	articleErr error

	completeCalls []models.CompletionRequest
	creates       []createCall
	updates       []updateCall
	deletes       []string
	articles      []createCall
	listCalls     int
}

func (f *fakeAPI) ListHistories(ctx context.Context) (*apiclient.HistoryList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.historiesErr != nil {
		return nil, f.historiesErr
	}
	if f.histories == nil {
		return &apiclient.HistoryList{Success: true}, nil
	}
	return f.histories, nil
}

func (f *fakeAPI) GetHistory(ctx context.Context, id string) (*models.ChatHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	return f.record, nil
}

func (f *fakeAPI) CreateHistory(ctx context.Context, title string, msgs []models.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, createCall{Title: title, Messages: msgs})
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	return "chat-" + strconv.Itoa(f.nextID), nil
}

func (f *fakeAPI) UpdateHistory(ctx context.Context, id string, msgs []models.Message, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{ID: id, Messages: msgs, Title: title})
	return nil
}

func (f *fakeAPI) DeleteHistory(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.deleteErr
}

func (f *fakeAPI) ListModels(ctx context.Context) ([]models.ModelConfig, error) {
	return f.modelList, f.modelsErr
}

func (f *fakeAPI) Complete(ctx context.Context, req models.CompletionRequest) (models.Completion, error) {
	f.mu.Lock()
	f.completeCalls = append(f.completeCalls, req)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.Completion{}, ctx.Err()
		}
	}
	if f.completeErr != nil {
		return models.Completion{}, f.completeErr
	}
	return f.reply, nil
}

func (f *fakeAPI) CreateArticle(ctx context.Context, title, content string) (*models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.articles = append(f.articles, createCall{Title: title, Messages: []models.Message{{Content: content}}})
	if f.articleErr != nil {
		return nil, f.articleErr
	}
	return &models.Article{ID: "a-1", Title: title, Status: models.ArticleDraft}, nil
}

func (f *fakeAPI) completeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completeCalls)
}

type recordingNotifier struct {
	mu        sync.Mutex
	errors    []string
	successes []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	n.successes = append(n.successes, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	n.errors = append(n.errors, msg)
	n.mu.Unlock()
}

type recordingNavigator struct {
	ids []string
}

func (n *recordingNavigator) SetChatID(id string) { n.ids = append(n.ids, id) }

func (n *recordingNavigator) last() string {
	if len(n.ids) == 0 {
		return "<unset>"
	}
	return n.ids[len(n.ids)-1]
}

var errBoom = errors.New("boom")

type fixture struct {
	api     *fakeAPI
	state   *State
	notify  *recordingNotifier
	nav     *recordingNavigator
	history *HistoryStore
	session *Session
}

func newFixture() *fixture {
	api := &fakeAPI{
		modelList: []models.ModelConfig{
			{ID: "m-1", Name: "first"},
			{ID: "m-2", Name: "default", IsDefault: true},
		},
		reply: models.Completion{Shape: models.ShapeContent, Content: "assistant reply"},
	}
	state := NewState()
	notify := &recordingNotifier{}
	nav := &recordingNavigator{}
	history := NewHistoryStore(api, state, notify, nav, nil)
	session := NewSession(api, state, history, notify, nav, nil)
	session.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{api: api, state: state, notify: notify, nav: nav, history: history, session: session}
}

// withModels runs model discovery so Send is allowed.
func (fx *fixture) withModels() *fixture {
	if err := fx.session.CheckModels(context.Background()); err != nil {
		panic(err)
	}
	return fx
}

func msgs(contents ...string) []models.Message {
	out := make([]models.Message, len(contents))
	for i, c := range contents {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		out[i] = models.Message{Role: role, Content: c, Status: models.StatusSuccess}
	}
	return out
}
