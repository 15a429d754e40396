package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spacesedan/toxiflow/internal/clients"
	"github.com/spacesedan/toxiflow/internal/models"
)

// Fetcher is the transport boundary; satisfied by clients.FetchClient.
type Fetcher interface {
	FetchJSON(ctx context.Context, rawURL string, params url.Values, v any) error
}

// Store is the persistence boundary; satisfied by db.Repository.
type Store interface {
	SavePosts(ctx context.Context, container string, posts []models.FlatPost, maxComments int) (int, error)
}

// SeenStore pre-seeds the deduplicator with ids persisted by previous runs;
// satisfied by clients.ValkeyClient. May be absent.
type SeenStore interface {
	SeenKeys(ctx context.Context, container string) map[string]struct{}
	MarkSeen(ctx context.Context, container string, ids ...string) error
}

type Options struct {
	// AllowScrape is the explicit operator consent flag; EnvOptIn is the
	// environment-level opt-in. Both are resolved before construction.
	AllowScrape bool
	EnvOptIn    bool

	MaxPosts        int
	CommentsPerPost int
	Timeframe       string

	// Delay is the fixed wait between successive item fetches within one
	// container, respecting upstream rate limits.
	Delay time.Duration

	BaseURL string
}

const (
	DEFAULT_MAX_POSTS    = 25
	DEFAULT_MAX_COMMENTS = 10
	DEFAULT_TIMEFRAME    = "week"
	DEFAULT_ITEM_DELAY   = 1500 * time.Millisecond
)

// Ingester runs the full ingestion pipeline for one container at a time:
// consent gate, listing fetch with parameter negotiation, per-item thread
// fetches with a rate-limit delay, tree flattening, cross-run dedupe and
// idempotent persistence.
type Ingester struct {
	fetcher    Fetcher
	store      Store
	seen       SeenStore
	negotiator *Negotiator
	opts       Options
}

func NewIngester(fetcher Fetcher, store Store, seen SeenStore, opts Options) *Ingester {
	if opts.MaxPosts <= 0 {
		opts.MaxPosts = DEFAULT_MAX_POSTS
	}
	if opts.CommentsPerPost <= 0 {
		opts.CommentsPerPost = DEFAULT_MAX_COMMENTS
	}
	if opts.Timeframe == "" {
		opts.Timeframe = DEFAULT_TIMEFRAME
	}
	if opts.Delay <= 0 {
		opts.Delay = DEFAULT_ITEM_DELAY
	}
	if opts.BaseURL == "" {
		opts.BaseURL = clients.BASE_URL
	}

	ing := &Ingester{
		fetcher: fetcher,
		store:   store,
		seen:    seen,
		opts:    opts,
	}
	ing.negotiator = NewNegotiator(ing.fetchListingPage)
	return ing
}

// IngestContainer ingests one container end to end and reports the outcome.
// Consent and privacy outcomes become statuses, never errors; network and
// persistence failures become status "error" with a reason.
func (ing *Ingester) IngestContainer(ctx context.Context, container string) models.IngestReport {
	report := models.IngestReport{Container: container}

	gate := NewSafetyGate(ing.opts.AllowScrape, ing.opts.EnvOptIn)
	if !gate.Authorize() {
		report.Status = models.IngestStatusSkipped
		report.Message = "scraping disabled by default; set ALLOW_SCRAPE or pass explicit consent"
		return report
	}

	listing, err := ing.negotiator.FetchListing(ctx, container, ListingParams{
		Limit:     ing.opts.MaxPosts,
		Timeframe: ing.opts.Timeframe,
	})
	if err != nil {
		report.Status = models.IngestStatusError
		report.Message = fmt.Sprintf("listing fetch failed: %v", err)
		return report
	}

	children := postChildren(listing)
	if len(children) == 0 {
		report.Status = models.IngestStatusEmpty
		report.Message = "no posts in listing"
		return report
	}

	if !gate.CheckVisibility(children[0].data) {
		slog.Warn("[Ingester] Container is not public, discarding fetched items",
			slog.String("container", container))
		report.Status = models.IngestStatusBlocked
		report.Message = "container is not public or requires credentials"
		return report
	}

	if len(children) > ing.opts.MaxPosts {
		children = children[:ing.opts.MaxPosts]
	}

	flats, err := ing.fetchThreads(ctx, container, children)
	if err != nil {
		report.Status = models.IngestStatusError
		report.Message = fmt.Sprintf("thread fetch failed: %v", err)
		return report
	}

	seen := map[string]struct{}{}
	if ing.seen != nil {
		seen = ing.seen.SeenKeys(ctx, container)
	}
	flats, dropped := Dedupe(flats, func(f models.FlatPost) string { return f.Post.ID }, seen)
	report.DuplicatesDropped = dropped
	report.Attempted = len(flats)

	if len(flats) == 0 {
		report.Status = models.IngestStatusEmpty
		report.Message = "nothing new to persist"
		return report
	}

	saved, err := ing.store.SavePosts(ctx, container, flats, ing.opts.CommentsPerPost)
	if err != nil {
		report.Status = models.IngestStatusError
		report.Message = fmt.Sprintf("persistence failed: %v", err)
		return report
	}
	report.PostsSaved = saved

	if ing.seen != nil {
		ids := make([]string, 0, len(flats))
		for _, flat := range flats {
			ids = append(ids, flat.Post.ID)
		}
		if err := ing.seen.MarkSeen(ctx, container, ids...); err != nil {
			slog.Warn("[Ingester] Failed to mark ids as seen",
				slog.String("container", container),
				slog.String("error", err.Error()))
		}
	}

	if saved == 0 {
		report.Status = models.IngestStatusError
		report.Message = "no post could be persisted"
		return report
	}

	report.Status = models.IngestStatusSuccess
	return report
}

// fetchThreads retrieves and flattens each post's thread payload, waiting the
// configured delay between items. The wait is interruptible: cancellation
// between items leaves previously committed data valid.
func (ing *Ingester) fetchThreads(ctx context.Context, container string, children []postChild) ([]models.FlatPost, error) {
	flats := make([]models.FlatPost, 0, len(children))
	commentSeen := map[string]struct{}{}

	for i, child := range children {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(ing.opts.Delay):
			}
		}

		var payload models.ThreadPayload
		params := url.Values{}
		params.Set("raw_json", "1")
		params.Set("limit", strconv.Itoa(ing.opts.CommentsPerPost))
		if err := ing.fetcher.FetchJSON(ctx, ing.threadURL(container, child.data), params, &payload); err != nil {
			return nil, fmt.Errorf("post %s: %w", child.data.ID, err)
		}

		flat, err := FlattenThread(payload, container, time.Now().UTC())
		if err != nil {
			slog.Warn("[Ingester] Skipping malformed thread payload",
				slog.String("container", container),
				slog.String("post_id", child.data.ID),
				slog.String("error", err.Error()))
			continue
		}
		flat.Comments, _ = Dedupe(flat.Comments,
			func(c models.ContentRecord) string { return c.ID }, commentSeen)
		flats = append(flats, flat)
	}

	return flats, nil
}

func (ing *Ingester) fetchListingPage(ctx context.Context, container string, params ListingParams) (*models.Listing, error) {
	listingURL := fmt.Sprintf("%s/r/%s/top/.json", ing.opts.BaseURL, container)

	values := url.Values{}
	values.Set("raw_json", "1")
	if params.Timeframe != "" {
		values.Set("t", params.Timeframe)
	}
	if params.Limit > 0 {
		values.Set("limit", strconv.Itoa(params.Limit))
	}

	var listing models.Listing
	if err := ing.fetcher.FetchJSON(ctx, listingURL, values, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (ing *Ingester) threadURL(container string, post models.PostData) string {
	permalink := post.Permalink
	if permalink == "" {
		return fmt.Sprintf("%s/r/%s/comments/%s/.json", ing.opts.BaseURL, container, post.ID)
	}
	if !strings.HasPrefix(permalink, "/") {
		permalink = "/" + permalink
	}
	if !strings.HasSuffix(permalink, "/") {
		permalink += "/"
	}
	return ing.opts.BaseURL + permalink + ".json"
}

type postChild struct {
	data models.PostData
}

// postChildren extracts the well-formed post entries from a listing,
// skipping anything that is not a recognized content kind.
func postChildren(listing *models.Listing) []postChild {
	var out []postChild
	for _, child := range listing.Data.Children {
		if child.Kind != models.KindPost {
			continue
		}
		var data models.PostData
		if err := json.Unmarshal(child.Data, &data); err != nil || data.ID == "" {
			continue
		}
		out = append(out, postChild{data: data})
	}
	return out
}
