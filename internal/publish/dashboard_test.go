package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quillpost/internal/models"
)

type fakeAPI struct {
	mu         sync.Mutex
	articles   []models.Article
	listErr    error
	publishErr error
	block      chan struct{}
	published  []string
}

func (f *fakeAPI) ListArticles(ctx context.Context) ([]models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Article(nil), f.articles...), nil
}

func (f *fakeAPI) Publish(ctx context.Context, id string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, id)
	if f.publishErr != nil {
		return f.publishErr
	}
	kept := f.articles[:0]
	for _, a := range f.articles {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	f.articles = kept
	return nil
}

type notes struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *notes) Success(m string) {
	n.mu.Lock()
	n.successes = append(n.successes, m)
	n.mu.Unlock()
}

func (n *notes) Error(m string) {
	n.mu.Lock()
	n.errors = append(n.errors, m)
	n.mu.Unlock()
}

func drafts() []models.Article {
	return []models.Article{{ID: "a1", Title: "First"}, {ID: "a2", Title: "Second"}}
}

func TestListDrafts_SelectsFirst(t *testing.T) {
	api := &fakeAPI{articles: drafts()}
	d := NewDashboard(api, &notes{}, nil)

	list, err := d.ListDrafts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a1", d.Selected().ID)
}

func TestListDrafts_Empty(t *testing.T) {
	d := NewDashboard(&fakeAPI{}, &notes{}, nil)

	list, err := d.ListDrafts(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
	require.Nil(t, d.Selected())
	require.ErrorIs(t, d.Publish(context.Background()), ErrNothingSelected)
}

func TestListDrafts_Failure(t *testing.T) {
	n := &notes{}
	d := NewDashboard(&fakeAPI{listErr: errors.New("down")}, n, nil)

	_, err := d.ListDrafts(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"Failed to load articles"}, n.errors)
}

func TestSelect(t *testing.T) {
	d := NewDashboard(&fakeAPI{articles: drafts()}, &notes{}, nil)
	_, err := d.ListDrafts(context.Background())
	require.NoError(t, err)

	require.NoError(t, d.SelectByID("a2"))
	require.Equal(t, "Second", d.Selected().Title)
	require.ErrorIs(t, d.SelectByID("zzz"), ErrUnknownArticle)

	d.SelectDraft(models.Article{ID: "a1", Title: "First"})
	require.Equal(t, "a1", d.Selected().ID)
}

func TestPublish_RefreshesList(t *testing.T) {
	api := &fakeAPI{articles: drafts()}
	n := &notes{}
	d := NewDashboard(api, n, nil)
	_, err := d.ListDrafts(context.Background())
	require.NoError(t, err)

	require.NoError(t, d.Publish(context.Background()))

	require.Equal(t, []string{"a1"}, api.published)
	require.Equal(t, []string{"Published: First"}, n.successes)
	require.Len(t, d.Articles(), 1)
	require.Equal(t, "a2", d.Selected().ID)
	require.False(t, d.Publishing())
}

func TestPublish_Failure(t *testing.T) {
	api := &fakeAPI{articles: drafts(), publishErr: errors.New("conflict")}
	n := &notes{}
	d := NewDashboard(api, n, nil)
	_, err := d.ListDrafts(context.Background())
	require.NoError(t, err)

	err = d.Publish(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"Publish failed, please retry"}, n.errors)
	require.Len(t, d.Articles(), 2)
	require.False(t, d.Publishing())
}

func TestPublish_RejectsWhileInFlight(t *testing.T) {
	api := &fakeAPI{articles: drafts(), block: make(chan struct{})}
	d := NewDashboard(api, &notes{}, nil)
	_, err := d.ListDrafts(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Publish(context.Background()) }()
	require.Eventually(t, d.Publishing, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, d.Publish(context.Background()), ErrBusy)

	close(api.block)
	require.NoError(t, <-done)
	require.Equal(t, []string{"a1"}, api.published)
}
