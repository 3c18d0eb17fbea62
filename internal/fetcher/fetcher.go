// Package fetcher downloads feeds and turns their items into raw entries.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"newsbuzz/internal/model"
)

// Failure classes of a single fetch. Both mean the source contributes
// nothing to the current run.
var (
	ErrSourceUnreachable = errors.New("source unreachable")
	ErrMalformedFeed     = errors.New("malformed feed")
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "NewsBuzz/1.0 (+feed ingestion)"
	maxBodyBytes     = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses RSS and Atom feeds.
type Fetcher struct {
	client    HTTPClient
	timeout   time.Duration
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds every fetch, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header sent to feed hosts.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    client,
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads one source and returns its entries in feed order.
// On failure the returned slice is nil and the error wraps
// ErrSourceUnreachable or ErrMalformedFeed.
func (f *Fetcher) Fetch(ctx context.Context, src model.FeedSource) ([]model.RawEntry, error) {
	feed, err := f.fetchFeed(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrMalformedFeed)
	}

	entries := make([]model.RawEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, ToRawEntry(item))
	}
	return entries, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrSourceUnreachable, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get: %w", ErrSourceUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSourceUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrSourceUnreachable, err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed: %w", ErrMalformedFeed, err)
	}
	return feed, nil
}

// ToRawEntry converts a parsed feed item into a RawEntry, collecting every
// structured media reference the item carries.
func ToRawEntry(item *gofeed.Item) model.RawEntry {
	e := model.RawEntry{
		Title:   item.Title,
		Link:    strings.TrimSpace(item.Link),
		Summary: item.Description,
		Content: item.Content,
	}

	switch {
	case item.PublishedParsed != nil:
		e.PublishedAt = item.PublishedParsed
		e.Published = item.Published
	case item.UpdatedParsed != nil:
		e.PublishedAt = item.UpdatedParsed
		e.Published = item.Updated
	case item.Published != "":
		e.Published = item.Published
	default:
		e.Published = item.Updated
	}

	if media, ok := item.Extensions["media"]; ok {
		e.Media = append(e.Media, mediaRefs(media)...)
	}
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		e.Media = append(e.Media, model.MediaRef{
			Kind: model.MediaEnclosure,
			URL:  strings.TrimSpace(enc.URL),
			Type: enc.Type,
		})
	}
	if item.Image != nil && item.Image.URL != "" && !inMarkup(item, item.Image.URL) {
		e.Media = append(e.Media, model.MediaRef{
			Kind:   model.MediaItemImage,
			URL:    strings.TrimSpace(item.Image.URL),
			Medium: "image",
		})
	}
	return e
}

// inMarkup reports whether u appears in the item's HTML body. gofeed fills
// Item.Image from the first embedded <img> when the feed declares none, and
// such images belong to the markup, not to the structured media.
func inMarkup(item *gofeed.Item, u string) bool {
	u = strings.TrimSpace(u)
	for _, body := range []string{item.Content, item.Description} {
		if body == "" {
			continue
		}
		if strings.Contains(body, u) || strings.Contains(html.UnescapeString(body), u) {
			return true
		}
	}
	return false
}

// mediaRefs reads media RSS elements, including those nested in media:group.
func mediaRefs(media map[string][]ext.Extension) []model.MediaRef {
	var refs []model.MediaRef
	for _, c := range media["content"] {
		refs = append(refs, mediaContentRef(c))
		for _, th := range c.Children["thumbnail"] {
			refs = append(refs, thumbnailRef(th))
		}
	}
	for _, th := range media["thumbnail"] {
		refs = append(refs, thumbnailRef(th))
	}
	for _, g := range media["group"] {
		refs = append(refs, mediaRefs(g.Children)...)
	}

	out := refs[:0]
	for _, r := range refs {
		if r.URL != "" {
			out = append(out, r)
		}
	}
	return out
}

func mediaContentRef(c ext.Extension) model.MediaRef {
	return model.MediaRef{
		Kind:   model.MediaContent,
		URL:    strings.TrimSpace(c.Attrs["url"]),
		Type:   c.Attrs["type"],
		Medium: c.Attrs["medium"],
	}
}

func thumbnailRef(th ext.Extension) model.MediaRef {
	return model.MediaRef{
		Kind:   model.MediaThumbnail,
		URL:    strings.TrimSpace(th.Attrs["url"]),
		Medium: "image",
	}
}
