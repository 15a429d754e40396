package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/toxiflow/internal/clients"
	"github.com/spacesedan/toxiflow/internal/models"
)

type fakeFetcher struct {
	calls      int
	listing    string
	listingErr error
	threads    map[string]string
}

func (f *fakeFetcher) FetchJSON(ctx context.Context, rawURL string, params url.Values, v any) error {
	f.calls++

	if strings.Contains(rawURL, "/comments/") {
		parts := strings.Split(rawURL, "/comments/")
		id := strings.TrimSuffix(strings.TrimSuffix(parts[1], "/.json"), "/")
		thread, ok := f.threads[id]
		if !ok {
			return &clients.FatalError{Status: 404, Body: "no such thread"}
		}
		return unmarshalInto(thread, v)
	}

	if f.listingErr != nil {
		return f.listingErr
	}
	return unmarshalInto(f.listing, v)
}

func unmarshalInto(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}

type memStore struct {
	posts     map[string]models.ContentRecord
	comments  map[string]models.ContentRecord
	saveCalls int
}

func newMemStore() *memStore {
	return &memStore{
		posts:    map[string]models.ContentRecord{},
		comments: map[string]models.ContentRecord{},
	}
}

func (m *memStore) SavePosts(ctx context.Context, container string, posts []models.FlatPost, maxComments int) (int, error) {
	m.saveCalls++
	count := 0
	for _, flat := range posts {
		if flat.Post.ID == "" {
			continue
		}
		m.posts[flat.Post.ID] = flat.Post

		comments := flat.Comments
		if len(comments) > maxComments {
			comments = comments[:maxComments]
		}
		for _, comment := range comments {
			if comment.ID != "" {
				m.comments[comment.ID] = comment
			}
		}
		count++
	}
	return count, nil
}

type memSeen struct {
	keys map[string]map[string]struct{}
}

func newMemSeen() *memSeen {
	return &memSeen{keys: map[string]map[string]struct{}{}}
}

func (m *memSeen) SeenKeys(ctx context.Context, container string) map[string]struct{} {
	seen := map[string]struct{}{}
	for k := range m.keys[container] {
		seen[k] = struct{}{}
	}
	return seen
}

func (m *memSeen) MarkSeen(ctx context.Context, container string, ids ...string) error {
	if m.keys[container] == nil {
		m.keys[container] = map[string]struct{}{}
	}
	for _, id := range ids {
		m.keys[container][id] = struct{}{}
	}
	return nil
}

func listingJSON(visibility string, postIDs ...string) string {
	children := make([]string, 0, len(postIDs))
	for _, id := range postIDs {
		children = append(children, fmt.Sprintf(
			`{"kind": "t3", "data": {"id": %q, "title": "title %s", "subreddit_type": %q}}`,
			id, id, visibility))
	}
	return fmt.Sprintf(`{"kind": "Listing", "data": {"children": [%s]}}`, strings.Join(children, ","))
}

func threadJSONFor(id string) string {
	return fmt.Sprintf(`[
      {"kind": "Listing", "data": {"children": [
        {"kind": "t3", "data": {"id": %q, "title": "title %s", "selftext": "body", "author": "a", "created_utc": 1700000000}}
      ]}},
      {"kind": "Listing", "data": {"children": [
        {"kind": "t1", "data": {"id": "%s-c1", "parent_id": "t3_%s", "author": "b", "body": "hi", "replies": ""}}
      ]}}
    ]`, id, id, id, id)
}

func testOptions() Options {
	return Options{
		AllowScrape:     true,
		MaxPosts:        10,
		CommentsPerPost: 10,
		Delay:           time.Millisecond,
	}
}

func TestIngestConsentDeniedMakesNoNetworkCalls(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newMemStore()

	opts := testOptions()
	opts.AllowScrape = false
	opts.EnvOptIn = false
	ing := NewIngester(fetcher, store, nil, opts)

	report := ing.IngestContainer(context.Background(), "golang")

	assert.Equal(t, models.IngestStatusSkipped, report.Status)
	assert.Equal(t, 0, fetcher.calls)
	assert.Empty(t, store.posts)
	assert.Equal(t, 0, store.saveCalls)
}

func TestIngestPrivacyBlockPersistsNothing(t *testing.T) {
	fetcher := &fakeFetcher{
		listing: listingJSON("private", "p1", "p2"),
		threads: map[string]string{
			"p1": threadJSONFor("p1"),
			"p2": threadJSONFor("p2"),
		},
	}
	store := newMemStore()
	ing := NewIngester(fetcher, store, nil, testOptions())

	report := ing.IngestContainer(context.Background(), "secretclub")

	assert.Equal(t, models.IngestStatusBlocked, report.Status)
	// Only the listing was fetched; no item fetches, no rows.
	assert.Equal(t, 1, fetcher.calls)
	assert.Empty(t, store.posts)
	assert.Empty(t, store.comments)
}

func TestIngestSuccess(t *testing.T) {
	fetcher := &fakeFetcher{
		listing: listingJSON("public", "p1", "p2"),
		threads: map[string]string{
			"p1": threadJSONFor("p1"),
			"p2": threadJSONFor("p2"),
		},
	}
	store := newMemStore()
	ing := NewIngester(fetcher, store, nil, testOptions())

	report := ing.IngestContainer(context.Background(), "golang")

	assert.Equal(t, models.IngestStatusSuccess, report.Status)
	assert.Equal(t, 2, report.PostsSaved)
	assert.Equal(t, 2, report.Attempted)
	assert.Len(t, store.posts, 2)
	assert.Len(t, store.comments, 2)
	assert.Equal(t, 1, store.comments["p1-c1"].Depth)
}

func TestIngestDuplicateIDPersistedOnce(t *testing.T) {
	fetcher := &fakeFetcher{
		listing: listingJSON("public", "post-1", "post-1"),
		threads: map[string]string{
			"post-1": threadJSONFor("post-1"),
		},
	}
	store := newMemStore()
	ing := NewIngester(fetcher, store, nil, testOptions())

	report := ing.IngestContainer(context.Background(), "golang")

	assert.Equal(t, models.IngestStatusSuccess, report.Status)
	assert.Equal(t, 1, report.PostsSaved)
	assert.Equal(t, 1, report.DuplicatesDropped)
	assert.Len(t, store.posts, 1)
}

func TestIngestIdempotentAcrossRuns(t *testing.T) {
	fetcher := &fakeFetcher{
		listing: listingJSON("public", "p1"),
		threads: map[string]string{"p1": threadJSONFor("p1")},
	}
	store := newMemStore()
	ing := NewIngester(fetcher, store, nil, testOptions())

	first := ing.IngestContainer(context.Background(), "golang")
	second := ing.IngestContainer(context.Background(), "golang")

	assert.Equal(t, models.IngestStatusSuccess, first.Status)
	assert.Equal(t, models.IngestStatusSuccess, second.Status)
	assert.Len(t, store.posts, 1)
	assert.Len(t, store.comments, 1)
}

func TestIngestSeenStoreSkipsPreviousRuns(t *testing.T) {
	fetcher := &fakeFetcher{
		listing: listingJSON("public", "p1"),
		threads: map[string]string{"p1": threadJSONFor("p1")},
	}
	store := newMemStore()
	seen := newMemSeen()
	ing := NewIngester(fetcher, store, seen, testOptions())

	first := ing.IngestContainer(context.Background(), "golang")
	require.Equal(t, models.IngestStatusSuccess, first.Status)
	require.Equal(t, 1, store.saveCalls)

	second := ing.IngestContainer(context.Background(), "golang")
	assert.Equal(t, models.IngestStatusEmpty, second.Status)
	assert.Equal(t, 1, second.DuplicatesDropped)
	assert.Equal(t, 1, store.saveCalls)
}

func TestIngestEmptyListing(t *testing.T) {
	fetcher := &fakeFetcher{listing: listingJSON("public")}
	store := newMemStore()
	ing := NewIngester(fetcher, store, nil, testOptions())

	report := ing.IngestContainer(context.Background(), "golang")

	assert.Equal(t, models.IngestStatusEmpty, report.Status)
	assert.Empty(t, store.posts)
}

func TestIngestListingErrorReported(t *testing.T) {
	fetcher := &fakeFetcher{
		listingErr: &clients.FatalError{Status: 403, Body: "forbidden"},
	}
	store := newMemStore()
	ing := NewIngester(fetcher, store, nil, testOptions())

	report := ing.IngestContainer(context.Background(), "golang")

	assert.Equal(t, models.IngestStatusError, report.Status)
	assert.Contains(t, report.Message, "listing fetch failed")
	assert.Empty(t, store.posts)
}

func TestIngestMaxPostsCap(t *testing.T) {
	fetcher := &fakeFetcher{
		listing: listingJSON("public", "p1", "p2", "p3"),
		threads: map[string]string{
			"p1": threadJSONFor("p1"),
			"p2": threadJSONFor("p2"),
			"p3": threadJSONFor("p3"),
		},
	}
	store := newMemStore()
	opts := testOptions()
	opts.MaxPosts = 2
	ing := NewIngester(fetcher, store, nil, opts)

	report := ing.IngestContainer(context.Background(), "golang")

	assert.Equal(t, models.IngestStatusSuccess, report.Status)
	assert.Equal(t, 2, report.PostsSaved)
	assert.Len(t, store.posts, 2)
}

func TestIngestCancelledBetweenItems(t *testing.T) {
	fetcher := &fakeFetcher{
		listing: listingJSON("public", "p1", "p2"),
		threads: map[string]string{
			"p1": threadJSONFor("p1"),
			"p2": threadJSONFor("p2"),
		},
	}
	store := newMemStore()
	opts := testOptions()
	opts.Delay = 50 * time.Millisecond
	ing := NewIngester(fetcher, store, nil, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	report := ing.IngestContainer(ctx, "golang")
	assert.Equal(t, models.IngestStatusError, report.Status)
	assert.Empty(t, store.posts)
}
