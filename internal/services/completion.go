package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"quillpost/internal/models"
)

type modelConfigStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ModelConfig, error)
}

type keyOpener interface {
	Open(sealed []byte) (string, error)
}

// CompletionService routes a conversation to the provider behind the
// requested model configuration. At most `concurrency` provider calls run at
// once.
type CompletionService struct {
	configs   modelConfigStore
	keys      keyOpener
	providers map[string]Provider
	rateChan  chan struct{} // Token bucket
	timeout   time.Duration
	logger    *zap.Logger
}

func NewCompletionService(
	configs modelConfigStore,
	keys keyOpener,
	providers map[string]Provider,
	concurrency int,
	timeout time.Duration,
	logger *zap.Logger,
) *CompletionService {
	if concurrency <= 0 {
		concurrency = 1
	}
	rateChan := make(chan struct{}, concurrency)
	for i := 0; i < concurrency; i++ {
		rateChan <- struct{}{}
	}

	return &CompletionService{
		configs:   configs,
		keys:      keys,
		providers: providers,
		rateChan:  rateChan,
		timeout:   timeout,
		logger:    logger,
	}
}

// DefaultProviders wires the SDK-backed providers by name.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		models.ProviderOpenAI: OpenAIProvider{},
		models.ProviderGemini: GeminiProvider{},
	}
}

// acquireRate blocks until a rate slot is available
func (s *CompletionService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return &RateLimitError{Message: "Model is busy, please retry"}
	}
}

func (s *CompletionService) releaseRate() {
	s.rateChan <- struct{}{}
}

func (s *CompletionService) Complete(ctx context.Context, userID uuid.UUID, req models.CompletionRequest) (string, error) {
	if err := validateCompletion(req); err != nil {
		return "", err
	}

	cfg, err := s.resolveModel(ctx, userID, req.ModelID)
	if err != nil {
		return "", err
	}

	provider, ok := s.providers[cfg.Provider]
	if !ok {
		return "", &ValidationError{Fields: map[string]string{"modelId": "unsupported provider " + cfg.Provider}}
	}

	apiKey := ""
	if len(cfg.APIKeyEnc) > 0 {
		apiKey, err = s.keys.Open(cfg.APIKeyEnc)
		if err != nil {
			s.logger.Error("failed to open model api key", zap.String("model_id", cfg.ID), zap.Error(err))
			return "", fmt.Errorf("open api key for model %s: %w", cfg.ID, err)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	start := time.Now()
	reply, err := provider.Complete(ctx, cfg, apiKey, req.Messages)
	if err != nil {
		s.logger.Warn("completion failed",
			zap.String("model_id", cfg.ID),
			zap.String("provider", cfg.Provider),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return "", &UpstreamError{Message: "Model request failed", Err: err}
	}

	s.logger.Info("completion served",
		zap.String("model_id", cfg.ID),
		zap.String("provider", cfg.Provider),
		zap.Int("messages", len(req.Messages)),
		zap.Duration("duration", time.Since(start)),
	)
	return reply, nil
}

// resolveModel loads modelID for userID, or the user's default (else first)
// model when modelID is empty.
func (s *CompletionService) resolveModel(ctx context.Context, userID uuid.UUID, modelID string) (*models.ModelConfig, error) {
	if modelID == "" {
		configs, err := s.configs.ListByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list model configs: %w", err)
		}
		if len(configs) == 0 {
			return nil, &NotFoundError{Message: "No model configured"}
		}
		for _, c := range configs {
			if c.IsDefault {
				return c, nil
			}
		}
		return configs[0], nil
	}

	id, err := uuid.Parse(modelID)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"modelId": "must be a valid ID"}}
	}
	cfg, err := s.configs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Model not found"}
		}
		return nil, fmt.Errorf("get model config: %w", err)
	}
	if cfg.UserID != userID {
		return nil, &NotFoundError{Message: "Model not found"}
	}
	return cfg, nil
}

func validateCompletion(req models.CompletionRequest) error {
	fields := map[string]string{}
	if len(req.Messages) == 0 {
		fields["messages"] = "at least one message is required"
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			fields[fmt.Sprintf("messages[%d].role", i)] = "must be user or assistant"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
