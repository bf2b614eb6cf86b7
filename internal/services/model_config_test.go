package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"quillpost/internal/models"
	"quillpost/internal/secrets"
)

type stubModelWriter struct {
	created []*models.ModelConfig
}

func (s *stubModelWriter) Create(ctx context.Context, m *models.ModelConfig) error {
	m.ID = uuid.NewString()
	m.HasAPIKey = len(m.APIKeyEnc) > 0
	s.created = append(s.created, m)
	return nil
}

func (s *stubModelWriter) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ModelConfig, error) {
	return s.created, nil
}

func TestModelConfigService_RegisterSealsKey(t *testing.T) {
	sealer, err := secrets.NewSealer("test", 1000)
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	repo := &stubModelWriter{}
	svc := NewModelConfigService(repo, sealer)

	m, err := svc.Register(context.Background(), uuid.New(), models.CreateModelRequest{
		Name: "Local", Model: "qwen", Endpoint: "http://localhost:11434/v1", APIKey: "sk-secret", IsDefault: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Provider != models.ProviderOpenAI || !m.HasAPIKey || !m.IsDefault {
		t.Fatalf("unexpected model %+v", m)
	}
	plain, err := sealer.Open(m.APIKeyEnc)
	if err != nil || plain != "sk-secret" {
		t.Fatalf("expected sealed key to open, got %q %v", plain, err)
	}
}

func TestModelConfigService_RegisterValidates(t *testing.T) {
	svc := NewModelConfigService(&stubModelWriter{}, nil)

	_, err := svc.Register(context.Background(), uuid.New(), models.CreateModelRequest{
		Provider: "anthropic", Endpoint: "ftp://x",
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, f := range []string{"name", "model", "provider", "endpoint"} {
		if _, ok := ve.Fields[f]; !ok {
			t.Errorf("expected field error for %s", f)
		}
	}
}
