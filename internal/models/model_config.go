package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ModelConfig is a named completion backend. The sealed API key never leaves
// the server; clients only learn whether one is configured.
type ModelConfig struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Name      string    `json:"name"`
	Endpoint  string    `json:"endpoint"`
	Model     string    `json:"model"`
	Provider  string    `json:"provider,omitempty"`
	HasAPIKey bool      `json:"hasApiKey"`
	IsDefault bool      `json:"isDefault,omitempty"`
	APIKeyEnc []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type CreateModelRequest struct {
	Name      string `json:"name"`
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	Provider  string `json:"provider"`
	APIKey    string `json:"apiKey"`
	IsDefault bool   `json:"isDefault"`
}
