package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"quillpost/internal/models"
)

type modelConfigWriter interface {
	Create(ctx context.Context, m *models.ModelConfig) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ModelConfig, error)
}

type keySealer interface {
	Seal(plaintext string) ([]byte, error)
}

type ModelConfigService struct {
	repo   modelConfigWriter
	sealer keySealer
}

func NewModelConfigService(repo modelConfigWriter, sealer keySealer) *ModelConfigService {
	return &ModelConfigService{repo: repo, sealer: sealer}
}

func (s *ModelConfigService) List(ctx context.Context, userID uuid.UUID) ([]*models.ModelConfig, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Register validates req, seals its API key and stores the model.
func (s *ModelConfigService) Register(ctx context.Context, userID uuid.UUID, req models.CreateModelRequest) (*models.ModelConfig, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Model = strings.TrimSpace(req.Model)
	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if req.Provider == "" {
		req.Provider = models.ProviderOpenAI
	}

	fields := map[string]string{}
	if req.Name == "" {
		fields["name"] = "is required"
	}
	if req.Model == "" {
		fields["model"] = "is required"
	}
	if req.Provider != models.ProviderOpenAI && req.Provider != models.ProviderGemini {
		fields["provider"] = "must be openai or gemini"
	}
	if req.Endpoint != "" {
		u, err := url.Parse(req.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			fields["endpoint"] = "must be an http(s) URL"
		}
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	m := &models.ModelConfig{
		UserID:    userID,
		Name:      req.Name,
		Endpoint:  req.Endpoint,
		Model:     req.Model,
		Provider:  req.Provider,
		IsDefault: req.IsDefault,
	}
	if req.APIKey != "" {
		sealed, err := s.sealer.Seal(req.APIKey)
		if err != nil {
			return nil, fmt.Errorf("seal api key: %w", err)
		}
		m.APIKeyEnc = sealed
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create model config: %w", err)
	}
	return m, nil
}
