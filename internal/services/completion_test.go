package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"quillpost/internal/models"
)

type stubModelStore struct {
	configs []*models.ModelConfig
}

func (s *stubModelStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error) {
	for _, c := range s.configs {
		if c.ID == id.String() {
			return c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubModelStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ModelConfig, error) {
	var out []*models.ModelConfig
	for _, c := range s.configs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type plainKeys struct{}

func (plainKeys) Open(sealed []byte) (string, error) { return string(sealed), nil }

type recordingProvider struct {
	reply   string
	err     error
	gotCfg  *models.ModelConfig
	gotKey  string
	gotMsgs []models.ChatMessage
}

func (p *recordingProvider) Complete(ctx context.Context, cfg *models.ModelConfig, apiKey string, msgs []models.ChatMessage) (string, error) {
	p.gotCfg, p.gotKey, p.gotMsgs = cfg, apiKey, msgs
	return p.reply, p.err
}

func newTestCompletion(store *stubModelStore, p Provider) *CompletionService {
	return NewCompletionService(store, plainKeys{}, map[string]Provider{"fake": p}, 2, time.Second, zap.NewNop())
}

func TestCompletionService_RoutesToRequestedModel(t *testing.T) {
	user := uuid.New()
	modelID := uuid.New().String()
	store := &stubModelStore{configs: []*models.ModelConfig{
		{ID: uuid.New().String(), UserID: user, Provider: "fake", IsDefault: true},
		{ID: modelID, UserID: user, Provider: "fake", Model: "m1", APIKeyEnc: []byte("sk-1")},
	}}
	p := &recordingProvider{reply: "hello"}
	svc := newTestCompletion(store, p)

	msgs := []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}
	reply, err := svc.Complete(context.Background(), user, models.CompletionRequest{Messages: msgs, ModelID: modelID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("expected reply 'hello', got %q", reply)
	}
	if p.gotCfg.ID != modelID || p.gotKey != "sk-1" || len(p.gotMsgs) != 1 {
		t.Fatalf("unexpected provider call: cfg=%s key=%q msgs=%d", p.gotCfg.ID, p.gotKey, len(p.gotMsgs))
	}
}

func TestCompletionService_DefaultsWhenModelIDEmpty(t *testing.T) {
	user := uuid.New()
	defaultID := uuid.New().String()
	store := &stubModelStore{configs: []*models.ModelConfig{
		{ID: uuid.New().String(), UserID: user, Provider: "fake"},
		{ID: defaultID, UserID: user, Provider: "fake", IsDefault: true},
	}}
	p := &recordingProvider{reply: "ok"}
	svc := newTestCompletion(store, p)

	_, err := svc.Complete(context.Background(), user, models.CompletionRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.gotCfg.ID != defaultID {
		t.Fatalf("expected default model %s, got %s", defaultID, p.gotCfg.ID)
	}
}

func TestCompletionService_Errors(t *testing.T) {
	user := uuid.New()
	foreignID := uuid.New().String()
	failingID := uuid.New().String()
	store := &stubModelStore{configs: []*models.ModelConfig{
		{ID: foreignID, UserID: uuid.New(), Provider: "fake"},
		{ID: failingID, UserID: user, Provider: "fake"},
	}}
	p := &recordingProvider{err: errors.New("boom")}
	svc := newTestCompletion(store, p)
	hi := []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}

	tests := []struct {
		name   string
		req    models.CompletionRequest
		target interface{}
	}{
		{"no messages", models.CompletionRequest{ModelID: failingID}, new(*ValidationError)},
		{"bad role", models.CompletionRequest{Messages: []models.ChatMessage{{Role: "system"}}, ModelID: failingID}, new(*ValidationError)},
		{"bad id", models.CompletionRequest{Messages: hi, ModelID: "nope"}, new(*ValidationError)},
		{"unknown model", models.CompletionRequest{Messages: hi, ModelID: uuid.New().String()}, new(*NotFoundError)},
		{"other user's model", models.CompletionRequest{Messages: hi, ModelID: foreignID}, new(*NotFoundError)},
		{"provider failure", models.CompletionRequest{Messages: hi, ModelID: failingID}, new(*UpstreamError)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Complete(context.Background(), user, tc.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.As(err, tc.target) {
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
		})
	}

	_, err := svc.Complete(context.Background(), uuid.New(), models.CompletionRequest{Messages: hi})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found for user without models, got %v", err)
	}
}

func TestOpenAIProvider_AgainstCompatibleEndpoint(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	cfg := &models.ModelConfig{Endpoint: srv.URL + "/v1/", Model: "local-model"}
	reply, err := OpenAIProvider{}.Complete(context.Background(), cfg, "sk-test", []models.ChatMessage{
		{Role: models.RoleUser, Content: "ping"},
		{Role: models.RoleAssistant, Content: "pong?"},
		{Role: models.RoleUser, Content: "ping again"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "pong" {
		t.Fatalf("expected 'pong', got %q", reply)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody.Model != "local-model" || len(gotBody.Messages) != 3 || gotBody.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
}
