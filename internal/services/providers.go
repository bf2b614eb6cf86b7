package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"quillpost/internal/models"
)

// Provider sends a conversation to one kind of model backend and returns the
// assistant's reply text.
type Provider interface {
	Complete(ctx context.Context, cfg *models.ModelConfig, apiKey string, msgs []models.ChatMessage) (string, error)
}

var errEmptyReply = errors.New("model returned no content")

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct{}

func (OpenAIProvider) Complete(ctx context.Context, cfg *models.ModelConfig, apiKey string, msgs []models.ChatMessage) (string, error) {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	client := openai.NewClientWithConfig(clientCfg)

	req := openai.ChatCompletionRequest{
		Model:    cfg.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

// GeminiProvider replays the history into a chat session and sends the last
// message.
type GeminiProvider struct{}

func (GeminiProvider) Complete(ctx context.Context, cfg *models.ModelConfig, apiKey string, msgs []models.ChatMessage) (string, error) {
	if len(msgs) == 0 {
		return "", errors.New("no messages to send")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(0.7)

	cs := model.StartChat()
	last := msgs[len(msgs)-1]
	for _, m := range msgs[:len(msgs)-1] {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", err
	}
	text := extractText(resp)
	if text == "" {
		return "", errEmptyReply
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
