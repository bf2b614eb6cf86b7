// Package publish lists draft articles and publishes the selected one.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"quillpost/internal/models"
)

var (
	ErrNothingSelected = errors.New("no article selected")
	ErrBusy            = errors.New("publish already in progress")
	ErrUnknownArticle  = errors.New("unknown article")
)

type API interface {
	ListArticles(ctx context.Context) ([]models.Article, error)
	Publish(ctx context.Context, articleID string) error
}

type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type Dashboard struct {
	api    API
	notify Notifier
	logger *zap.Logger

	mu         sync.Mutex
	articles   []models.Article
	selected   *models.Article
	publishing bool
}

func NewDashboard(api API, notify Notifier, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{api: api, notify: notify, logger: logger}
}

// ListDrafts reloads the drafts and selects the first one.
func (d *Dashboard) ListDrafts(ctx context.Context) ([]models.Article, error) {
	list, err := d.api.ListArticles(ctx)
	if err != nil {
		d.logger.Error("failed to fetch articles", zap.Error(err))
		d.notify.Error("Failed to load articles")
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.articles = list
	d.selected = nil
	if len(list) > 0 {
		first := list[0]
		d.selected = &first
	}
	return append([]models.Article(nil), list...), nil
}

func (d *Dashboard) Articles() []models.Article {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Article(nil), d.articles...)
}

// Selected returns the selected article, or nil.
func (d *Dashboard) Selected() *models.Article {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil {
		return nil
	}
	a := *d.selected
	return &a
}

func (d *Dashboard) Publishing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.publishing
}

func (d *Dashboard) SelectDraft(a models.Article) {
	d.mu.Lock()
	d.selected = &a
	d.mu.Unlock()
}

func (d *Dashboard) SelectByID(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.articles {
		if a.ID == id {
			sel := a
			d.selected = &sel
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownArticle, id)
}

// Publish publishes the selected article and refreshes the list.
func (d *Dashboard) Publish(ctx context.Context) error {
	d.mu.Lock()
	if d.selected == nil {
		d.mu.Unlock()
		return ErrNothingSelected
	}
	if d.publishing {
		d.mu.Unlock()
		return ErrBusy
	}
	d.publishing = true
	article := *d.selected
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.publishing = false
		d.mu.Unlock()
	}()

	if err := d.api.Publish(ctx, article.ID); err != nil {
		d.logger.Error("publish failed", zap.String("article_id", article.ID), zap.Error(err))
		d.notify.Error("Publish failed, please retry")
		return fmt.Errorf("publish %s: %w", article.ID, err)
	}

	d.logger.Info("article published", zap.String("article_id", article.ID))
	d.notify.Success("Published: " + article.Title)
	if _, err := d.ListDrafts(ctx); err != nil {
		d.logger.Warn("failed to refresh drafts after publish", zap.Error(err))
	}
	return nil
}
