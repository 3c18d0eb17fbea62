// Package source loads the registry of feeds to ingest.
//
// The registry is read once at start-up and passed to the pipeline as an
// immutable slice.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"newsbuzz/internal/filter"
	"newsbuzz/internal/model"
)

type file struct {
	Sources []entry `yaml:"sources"`
}

type entry struct {
	Category string         `yaml:"category"`
	URL      string         `yaml:"url"`
	Filters  []model.Filter `yaml:"filters"`
}

// Load reads a YAML registry from path.
func Load(path string) ([]model.FeedSource, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML registry.
func Parse(data []byte) ([]model.FeedSource, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	sources := make([]model.FeedSource, 0, len(f.Sources))
	for _, e := range f.Sources {
		sources = append(sources, model.FeedSource{
			Category: strings.TrimSpace(e.Category),
			URL:      strings.TrimSpace(e.URL),
			Filters:  e.Filters,
		})
	}
	if err := Validate(sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// Validate checks every source and rejects duplicate URLs.
func Validate(sources []model.FeedSource) error {
	if len(sources) == 0 {
		return errors.New("no sources configured")
	}

	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		if s.Category == "" {
			return fmt.Errorf("source %d: empty category", i)
		}
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("source %d: invalid url %q", i, s.URL)
		}
		if seen[s.URL] {
			return fmt.Errorf("source %d: duplicate url %q", i, s.URL)
		}
		seen[s.URL] = true

		for j, r := range s.Filters {
			if err := filter.Validate(r); err != nil {
				return fmt.Errorf("source %d filter %d: %w", i, j, err)
			}
		}
	}
	return nil
}

func googleNews(query string) string {
	return "https://news.google.com/rss/search?q=when:24h+" + query + "&hl=en-NG&gl=NG&ceid=NG:en"
}

// Default returns the built-in registry.
func Default() []model.FeedSource {
	return []model.FeedSource{
		{Category: "naija news", URL: googleNews("site:punchng.com")},
		{Category: "naija news", URL: googleNews("site:vanguardngr.com")},
		{Category: "naija news", URL: googleNews("site:premiumtimesng.com")},
		{Category: "naija news", URL: googleNews("site:dailypost.ng")},
		{Category: "gossip", URL: googleNews("site:lindaikejisblog.com")},
		{Category: "gossip", URL: googleNews("site:bellanaija.com")},
		{Category: "football", URL: googleNews("super+eagles+OR+premier+league+nigeria")},
		{Category: "viral", URL: googleNews("site:legit.ng")},
		{Category: "entertainment", URL: googleNews("bbnaija+OR+wizkid+OR+davido")},
		{Category: "music", URL: googleNews("afrobeats+OR+burna+OR+wizkid+OR+rema")},
		{Category: "tech", URL: googleNews("site:techcabal.com")},
		{Category: "world", URL: "https://feeds.bbci.co.uk/news/world/africa/rss.xml"},
	}
}
