// Package normalize turns raw feed entries into storage-ready items.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"newsbuzz/internal/model"
)

// ErrInvalidEntry is returned for entries that cannot be stored, i.e. ones without a link.
var ErrInvalidEntry = errors.New("invalid entry")

const (
	defaultExcerptBudget = 340
	defaultTitleBudget   = 300
	defaultMarker        = "..."
)

// DefaultPrefixes are the display labels used when title prefixes are enabled.
var DefaultPrefixes = []string{
	"Na Wa O!", "Gist Alert:", "You Won't Believe:", "Naija Gist:", "Breaking:",
	"Omo!", "Chai!", "E Don Happen!", "This One Loud!",
}

// Normalizer converts RawEntry values into model.Item values.
type Normalizer struct {
	now      func() time.Time
	budget   int
	titleMax int
	marker   string
	prefixes []string
	pick     func(n int) int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the ingestion clock used for entries without a usable date.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithExcerptBudget sets the maximum excerpt length in characters.
func WithExcerptBudget(runes int) Option {
	return func(n *Normalizer) {
		if runes > 0 {
			n.budget = runes
		}
	}
}

// WithMarker sets the suffix appended to truncated text.
func WithMarker(marker string) Option {
	return func(n *Normalizer) { n.marker = marker }
}

// WithPrefixes enables random display prefixes on titles.
func WithPrefixes(prefixes []string) Option {
	return func(n *Normalizer) { n.prefixes = prefixes }
}

// WithRand sets the random source used to pick title prefixes.
func WithRand(r *rand.Rand) Option {
	return func(n *Normalizer) {
		if r != nil {
			n.pick = r.IntN
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		now:      time.Now,
		budget:   defaultExcerptBudget,
		titleMax: defaultTitleBudget,
		marker:   defaultMarker,
		pick:     rand.IntN,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Key returns the dedup key of an entry without building the full item.
func (n *Normalizer) Key(e model.RawEntry) (string, error) {
	link := strings.TrimSpace(e.Link)
	if link == "" {
		return "", ErrInvalidEntry
	}
	return DedupKey(link, StripHTML(e.Title)), nil
}

// Normalize builds the canonical item for an entry of src.
func (n *Normalizer) Normalize(e model.RawEntry, src model.FeedSource, imageURL string) (model.Item, error) {
	link := strings.TrimSpace(e.Link)
	if link == "" {
		return model.Item{}, ErrInvalidEntry
	}

	title := StripHTML(e.Title)
	item := model.Item{
		DedupKey:    DedupKey(link, title),
		Title:       n.displayTitle(title),
		Excerpt:     n.excerpt(e),
		Link:        link,
		ImageURL:    imageURL,
		Category:    src.Category,
		PublishedAt: n.published(e),
	}
	return item, nil
}

func (n *Normalizer) displayTitle(title string) string {
	title = Truncate(title, n.titleMax, n.marker)
	if len(n.prefixes) == 0 {
		return title
	}
	prefix := n.prefixes[n.pick(len(n.prefixes))]
	if title == "" {
		return prefix
	}
	return prefix + " " + title
}

func (n *Normalizer) excerpt(e model.RawEntry) string {
	text := StripHTML(e.Summary)
	if text == "" {
		text = StripHTML(e.Content)
	}
	return Truncate(text, n.budget, n.marker)
}

func (n *Normalizer) published(e model.RawEntry) time.Time {
	if e.PublishedAt != nil && !e.PublishedAt.IsZero() {
		return e.PublishedAt.UTC()
	}
	if raw := strings.TrimSpace(e.Published); raw != "" {
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.UTC()
		}
	}
	return n.now().UTC()
}

// DedupKey derives the identity of an item from its link and stripped title.
func DedupKey(link, title string) string {
	sum := sha256.Sum256([]byte(title + "|" + link))
	return hex.EncodeToString(sum[:])
}

// StripHTML returns the text content of s with whitespace collapsed.
func StripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	text := s
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			doc.Find("script, style").Remove()
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// Truncate cuts s to at most budget characters, appending marker when
// anything was cut.
func Truncate(s string, budget int, marker string) string {
	if budget <= 0 || utf8.RuneCountInString(s) <= budget {
		return s
	}
	runes := []rune(s)
	return string(runes[:budget]) + marker
}
