// Package apiclient is a typed client for the quillpost REST API. It sends
// the same cookies a browser session would, plus a bearer token.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"quillpost/internal/models"
)

const (
	sessionCookie = "next-auth.session-token"
	userCookie    = "user_token"
)

// ErrUnsuccessful is returned when a 2xx response carries success:false.
var ErrUnsuccessful = errors.New("request was not successful")

// StatusError is a non-2xx response. Message is the server's message when
// the body carried one.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

type Options struct {
	BaseURL      string
	SessionToken string
	UserToken    string
	UserID       string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

type Client struct {
	baseURL      string
	sessionToken string
	userToken    string
	userID       string
	http         *http.Client
	logger       *zap.Logger
	now          func() time.Time
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      opts.BaseURL,
		sessionToken: opts.SessionToken,
		userToken:    opts.UserToken,
		userID:       opts.UserID,
		http:         hc,
		logger:       logger,
		now:          time.Now,
	}
}

// UserID is the configured user id sent with history writes, if any.
func (c *Client) UserID() string { return c.userID }

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type HistoryList struct {
	Success   bool                       `json:"success"`
	Message   string                     `json:"message"`
	Histories []models.ChatHistoryRecord `json:"histories"`
}

// ListHistories fetches every conversation, bypassing HTTP caches. A
// success:false body is returned as is, without an error.
func (c *Client) ListHistories(ctx context.Context) (*HistoryList, error) {
	var out HistoryList
	q := url.Values{"t": {c.cacheBuster()}}
	if err := c.do(ctx, http.MethodGet, "/api/chat/history", q, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetHistory(ctx context.Context, id string) (*models.ChatHistoryRecord, error) {
	var out struct {
		envelope
		ChatHistory *models.ChatHistoryRecord `json:"chatHistory"`
	}
	q := url.Values{"id": {id}}
	if err := c.do(ctx, http.MethodGet, "/api/chat/history", q, nil, &out, true); err != nil {
		return nil, err
	}
	if !out.Success || out.ChatHistory == nil {
		return nil, unsuccessful(out.Message)
	}
	return out.ChatHistory, nil
}

// CreateHistory persists a new conversation and returns its id.
func (c *Client) CreateHistory(ctx context.Context, title string, messages []models.Message) (string, error) {
	raw, err := encodeMessages(messages)
	if err != nil {
		return "", err
	}
	req := models.CreateHistoryRequest{Title: title, Messages: raw, UserID: c.userID}

	var out struct {
		envelope
		ChatHistory struct {
			ID string `json:"id"`
		} `json:"chatHistory"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat/history", nil, req, &out, false); err != nil {
		return "", err
	}
	if !out.Success || out.ChatHistory.ID == "" {
		return "", unsuccessful(out.Message)
	}
	return out.ChatHistory.ID, nil
}

// UpdateHistory replaces the transcript of id. An empty title leaves the
// stored title unchanged.
func (c *Client) UpdateHistory(ctx context.Context, id string, messages []models.Message, title string) error {
	raw, err := encodeMessages(messages)
	if err != nil {
		return err
	}
	req := models.UpdateHistoryRequest{ID: id, Messages: raw, Title: title, UserID: c.userID}

	var out envelope
	if err := c.do(ctx, http.MethodPut, "/api/chat/history", nil, req, &out, false); err != nil {
		return err
	}
	if !out.Success {
		return unsuccessful(out.Message)
	}
	return nil
}

func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	var out envelope
	if err := c.do(ctx, http.MethodDelete, "/api/chat/history", url.Values{"id": {id}}, nil, &out, false); err != nil {
		return err
	}
	if !out.Success {
		return unsuccessful(out.Message)
	}
	return nil
}

func (c *Client) ListModels(ctx context.Context) ([]models.ModelConfig, error) {
	var out struct {
		envelope
		Data []models.ModelConfig `json:"data"`
	}
	q := url.Values{"t": {c.cacheBuster()}}
	if err := c.do(ctx, http.MethodGet, "/api/chat-models", q, nil, &out, true); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, unsuccessful(out.Message)
	}
	return out.Data, nil
}

func (c *Client) RegisterModel(ctx context.Context, req models.CreateModelRequest) (*models.ModelConfig, error) {
	var out struct {
		envelope
		Data *models.ModelConfig `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat-models", nil, req, &out, false); err != nil {
		return nil, err
	}
	if !out.Success || out.Data == nil {
		return nil, unsuccessful(out.Message)
	}
	return out.Data, nil
}

// Complete sends the conversation and resolves whichever reply layout the
// server used.
func (c *Client) Complete(ctx context.Context, req models.CompletionRequest) (models.Completion, error) {
	var out struct {
		envelope
		Data *models.CompletionData `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat", nil, req, &out, false); err != nil {
		return models.Completion{}, err
	}
	if !out.Success || out.Data == nil {
		return models.Completion{}, unsuccessful(out.Message)
	}
	completion, err := out.Data.Resolve()
	if err != nil {
		return models.Completion{}, err
	}
	c.logger.Debug("completion received", zap.Stringer("shape", completion.Shape), zap.Int("chars", len(completion.Content)))
	return completion, nil
}

func (c *Client) ListArticles(ctx context.Context) ([]models.Article, error) {
	var out []models.Article
	if err := c.do(ctx, http.MethodGet, "/api/articles", nil, nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateArticle(ctx context.Context, title, content string) (*models.Article, error) {
	var out models.Article
	req := models.CreateArticleRequest{Title: title, Content: content}
	if err := c.do(ctx, http.MethodPost, "/api/articles", nil, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Publish(ctx context.Context, articleID string) error {
	var out envelope
	if err := c.do(ctx, http.MethodPost, "/api/publish", nil, models.PublishRequest{ArticleID: articleID}, &out, false); err != nil {
		return err
	}
	if !out.Success {
		return unsuccessful(out.Message)
	}
	return nil
}

func (c *Client) cacheBuster() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, noCache bool) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if noCache {
		req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		req.Header.Set("Pragma", "no-cache")
		req.Header.Set("Expires", "0")
	}
	if c.userToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.userToken)
		req.AddCookie(&http.Cookie{Name: userCookie, Value: c.userToken})
	}
	if c.sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.sessionToken})
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var e models.ErrorResponse
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error.Message
}

func encodeMessages(msgs []models.Message) (json.RawMessage, error) {
	if msgs == nil {
		msgs = []models.Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	return b, nil
}

func unsuccessful(message string) error {
	if message == "" {
		return ErrUnsuccessful
	}
	return fmt.Errorf("%w: %s", ErrUnsuccessful, message)
}
