package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidMessages is returned when a message list cannot be parsed or
// contains a message without a recognized role and string content.
var ErrInvalidMessages = errors.New("invalid message list")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// MessageStatus tracks delivery of a single message: sending -> success | error.
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSuccess MessageStatus = "success"
	StatusError   MessageStatus = "error"
)

type ReplyRef struct {
	Content string `json:"content"`
	Role    Role   `json:"role"`
}

type Edit struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type Reaction struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Message is one entry of a conversation transcript. Timestamps are Unix
// milliseconds to match what browsers persist.
type Message struct {
	Role        Role          `json:"role"`
	Content     string        `json:"content"`
	Timestamp   int64         `json:"timestamp"`
	Status      MessageStatus `json:"status,omitempty"`
	Error       string        `json:"error,omitempty"`
	ReplyTo     *ReplyRef     `json:"replyTo,omitempty"`
	EditHistory []Edit        `json:"editHistory,omitempty"`
	IsStarred   bool          `json:"isStarred,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Reactions   []Reaction    `json:"reactions,omitempty"`
}

// Clone returns a deep copy so callers can hand transcripts across goroutines.
func (m Message) Clone() Message {
	c := m
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		c.ReplyTo = &r
	}
	if m.EditHistory != nil {
		c.EditHistory = append([]Edit(nil), m.EditHistory...)
	}
	if m.Tags != nil {
		c.Tags = append([]string(nil), m.Tags...)
	}
	if m.Reactions != nil {
		c.Reactions = append([]Reaction(nil), m.Reactions...)
	}
	return c
}

func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// ChatMessage is the role+content pair sent to a completion endpoint.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func ToChatMessages(msgs []Message) []ChatMessage {
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

type ChatHistory struct {
	ID          string    `json:"id"`
	UserID      uuid.UUID `json:"-"`
	Title       string    `json:"title"`
	Topic       *string   `json:"topic,omitempty"`
	Description *string   `json:"description,omitempty"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	IsStarred   bool      `json:"isStarred,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Category    *string   `json:"category,omitempty"`
}

// ChatHistoryRecord is a ChatHistory as it arrives over the wire, where the
// messages may be an array or a JSON-encoded string.
type ChatHistoryRecord struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Topic       *string         `json:"topic,omitempty"`
	Description *string         `json:"description,omitempty"`
	Messages    json.RawMessage `json:"messages"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	IsStarred   bool            `json:"isStarred,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Category    *string         `json:"category,omitempty"`
}

// Normalize parses the record's messages. The returned history always carries
// the metadata; Messages is nil when err is non-nil.
func (r ChatHistoryRecord) Normalize() (ChatHistory, error) {
	h := ChatHistory{
		ID:          r.ID,
		Title:       r.Title,
		Topic:       r.Topic,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		IsStarred:   r.IsStarred,
		Tags:        r.Tags,
		Category:    r.Category,
	}
	msgs, err := ParseMessages(r.Messages)
	if err != nil {
		return h, err
	}
	h.Messages = msgs
	return h, nil
}

// ParseMessages accepts either a JSON array of messages or a JSON string that
// encodes such an array. Every message must have role "user" or "assistant"
// and string content.
func ParseMessages(raw json.RawMessage) ([]Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing", ErrInvalidMessages)
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessages, err)
		}
		raw = bytes.TrimSpace([]byte(encoded))
		if len(raw) == 0 || raw[0] != '[' {
			return nil, fmt.Errorf("%w: encoded value is not an array", ErrInvalidMessages)
		}
	}

	if raw[0] != '[' {
		return nil, fmt.Errorf("%w: not an array", ErrInvalidMessages)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessages, err)
	}

	msgs := make([]Message, 0, len(items))
	for i, item := range items {
		if err := validateMessage(item); err != nil {
			return nil, fmt.Errorf("%w: message %d: %v", ErrInvalidMessages, i, err)
		}
		var m Message
		if err := json.Unmarshal(item, &m); err != nil {
			return nil, fmt.Errorf("%w: message %d: %v", ErrInvalidMessages, i, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func validateMessage(raw json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return errors.New("not an object")
	}

	var role string
	roleRaw, ok := fields["role"]
	if !ok || !isJSONString(roleRaw) || json.Unmarshal(roleRaw, &role) != nil {
		return errors.New("role must be a string")
	}
	if !Role(role).Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	contentRaw, ok := fields["content"]
	if !ok || !isJSONString(contentRaw) {
		return errors.New("content must be a string")
	}
	return nil
}

func isJSONString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) >= 2 && raw[0] == '"'
}
