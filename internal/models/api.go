package models

import (
	"encoding/json"
	"errors"
)

type CreateHistoryRequest struct {
	Title    string          `json:"title"`
	Messages json.RawMessage `json:"messages"`
	UserID   string          `json:"userId,omitempty"`
}

type UpdateHistoryRequest struct {
	ID       string          `json:"id"`
	Messages json.RawMessage `json:"messages"`
	Title    string          `json:"title,omitempty"`
	UserID   string          `json:"userId,omitempty"`
}

type CompletionRequest struct {
	Messages []ChatMessage `json:"messages"`
	ModelID  string        `json:"modelId"`
}

// CompletionShape records which of the accepted reply layouts the server used.
type CompletionShape int

const (
	ShapeContent CompletionShape = iota + 1
	ShapeChoices
	ShapeMessage
)

func (s CompletionShape) String() string {
	switch s {
	case ShapeContent:
		return "content"
	case ShapeChoices:
		return "choices"
	case ShapeMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Completion is the resolved assistant reply.
type Completion struct {
	Shape   CompletionShape
	Content string
}

var ErrUnrecognizedCompletion = errors.New("unrecognized completion response")

type CompletionChoice struct {
	Message ChatMessage `json:"message"`
}

// CompletionData is the `data` member of a /api/chat response. Exactly one of
// its layouts is expected to be populated.
type CompletionData struct {
	Content *string            `json:"content,omitempty"`
	Choices []CompletionChoice `json:"choices,omitempty"`
	Message *ChatMessage       `json:"message,omitempty"`
}

func (d CompletionData) Resolve() (Completion, error) {
	switch {
	case d.Content != nil && *d.Content != "":
		return Completion{Shape: ShapeContent, Content: *d.Content}, nil
	case len(d.Choices) > 0:
		return Completion{Shape: ShapeChoices, Content: d.Choices[0].Message.Content}, nil
	case d.Message != nil:
		return Completion{Shape: ShapeMessage, Content: d.Message.Content}, nil
	default:
		return Completion{}, ErrUnrecognizedCompletion
	}
}

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

// ErrorResponse carries both the `{success, message}` fields the chat UI reads
// and the structured error block.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Error   APIError `json:"error"`
}
