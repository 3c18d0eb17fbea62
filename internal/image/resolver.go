// Package image picks a representative picture for a feed entry.
//
// Resolution walks a fixed fallback chain and stops at the first hit:
// structured media metadata, the first <img> in the entry markup, the
// og:image of the linked page (throttled, optional) and finally a
// placeholder. Resolve never fails.
package image

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsbuzz/internal/model"
)

// DefaultDenylist holds URL fragments of site chrome that feeds like to
// pass off as article images.
var DefaultDenylist = []string{"logo", "banner", "favicon", "sprite", "placeholder"}

const (
	defaultRemoteTimeout  = 10 * time.Second
	defaultRemoteInterval = 2 * time.Second
	defaultUserAgent      = "NewsBuzz/1.0 (+image lookup)"
	maxPageBytes          = 1 << 20
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".avif": true,
}

// pageImageSelectors are tried in order against the linked page.
var pageImageSelectors = []string{
	`meta[property="og:image"]`,
	`meta[property="og:image:url"]`,
	`meta[name="twitter:image"]`,
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver finds an image URL for raw feed entries.
type Resolver struct {
	client      HTTPClient
	placeholder string
	denylist    []string
	remote      bool
	timeout     time.Duration
	throttle    *Throttle
	userAgent   string
	log         *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRemoteLookup toggles the og:image page fetch.
func WithRemoteLookup(enabled bool) Option {
	return func(r *Resolver) { r.remote = enabled }
}

// WithRemoteTimeout bounds a single page fetch.
func WithRemoteTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithThrottle sets the limiter shared by every page fetch.
func WithThrottle(t *Throttle) Option {
	return func(r *Resolver) {
		if t != nil {
			r.throttle = t
		}
	}
}

// WithDenylist replaces the default URL denylist.
func WithDenylist(fragments []string) Option {
	return func(r *Resolver) { r.denylist = fragments }
}

// WithUserAgent overrides the User-Agent header of page fetches.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) {
		if ua != "" {
			r.userAgent = ua
		}
	}
}

// WithLogger sets the logger used for page fetch diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver creates a Resolver. A nil client disables the page fetch step.
func NewResolver(client HTTPClient, placeholder string, opts ...Option) *Resolver {
	r := &Resolver{
		client:      client,
		placeholder: placeholder,
		denylist:    DefaultDenylist,
		remote:      true,
		timeout:     defaultRemoteTimeout,
		throttle:    NewThrottle(defaultRemoteInterval),
		userAgent:   defaultUserAgent,
		log:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Placeholder returns the URL used when nothing better is found.
func (r *Resolver) Placeholder() string {
	return r.placeholder
}

// Resolve returns the best image URL for the entry, or the placeholder.
func (r *Resolver) Resolve(ctx context.Context, e model.RawEntry) string {
	if u := r.fromMedia(e); u != "" {
		return u
	}
	if u := r.fromMarkup(e); u != "" {
		return u
	}
	if u := r.fromPage(ctx, e.Link); u != "" {
		return u
	}
	return r.placeholder
}

func (r *Resolver) fromMedia(e model.RawEntry) string {
	for _, m := range e.Media {
		u := absolute(m.URL, e.Link)
		if u == "" || !isImage(m, u) || r.denied(u) {
			continue
		}
		return u
	}
	return ""
}

func (r *Resolver) fromMarkup(e model.RawEntry) string {
	for _, markup := range []string{e.Content, e.Summary} {
		if markup == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			continue
		}

		var found string
		doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
				v, ok := s.Attr(attr)
				if !ok {
					continue
				}
				u := absolute(v, e.Link)
				if u == "" || r.denied(u) {
					continue
				}
				found = u
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// fromPage looks up the og:image of the linked page. Every failure,
// including a cancelled throttle wait, yields "".
func (r *Resolver) fromPage(ctx context.Context, link string) string {
	if !r.remote || r.client == nil || absolute(link, "") == "" {
		return ""
	}
	if err := r.throttle.Wait(ctx); err != nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Debug("page image lookup", "link", link, "error", err)
		return ""
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.log.Debug("page image lookup", "link", link, "status", resp.StatusCode)
		return ""
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		r.log.Debug("page image lookup", "link", link, "error", err)
		return ""
	}

	for _, sel := range pageImageSelectors {
		content, ok := doc.Find(sel).First().Attr("content")
		if !ok {
			continue
		}
		if u := absolute(content, link); u != "" && !r.denied(u) {
			return u
		}
	}
	return ""
}

func (r *Resolver) denied(u string) bool {
	lower := strings.ToLower(u)
	for _, frag := range r.denylist {
		if frag != "" && strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func isImage(m model.MediaRef, u string) bool {
	switch m.Kind {
	case model.MediaThumbnail, model.MediaItemImage:
		return true
	}
	if m.Type != "" {
		return strings.HasPrefix(strings.ToLower(m.Type), "image/")
	}
	if m.Medium != "" {
		return strings.EqualFold(m.Medium, "image")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return imageExts[strings.ToLower(path.Ext(parsed.Path))]
}

// absolute resolves raw against base and returns it only if the result is
// an absolute http(s) URL. Protocol-relative URLs always get https.
func absolute(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		b, err := url.Parse(strings.TrimSpace(base))
		if err != nil || !b.IsAbs() {
			return ""
		}
		u = b.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}
