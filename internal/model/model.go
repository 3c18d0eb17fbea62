// Package model defines the domain types used across the application.
package model

import "time"

// FeedSource is one entry of the source registry: a feed URL and the
// category its items are filed under.
type FeedSource struct {
	Category string
	URL      string
	Filters  []Filter
}

// MediaKind records where in the feed a media reference was found.
type MediaKind int

// Supported media provenances.
const (
	MediaEnclosure MediaKind = iota + 1
	MediaContent
	MediaThumbnail
	MediaItemImage
)

func (k MediaKind) String() string {
	switch k {
	case MediaEnclosure:
		return "enclosure"
	case MediaContent:
		return "media:content"
	case MediaThumbnail:
		return "media:thumbnail"
	case MediaItemImage:
		return "image"
	default:
		return "unknown"
	}
}

// MediaRef is a structured media reference attached to a feed entry.
type MediaRef struct {
	Kind   MediaKind
	URL    string
	Type   string // declared MIME type, may be empty
	Medium string // media RSS medium attribute, may be empty
}

// RawEntry is one feed entry as delivered by the parser, before normalization.
type RawEntry struct {
	Title       string
	Link        string
	Summary     string
	Content     string
	Published   string     // raw published (or updated) text
	PublishedAt *time.Time // set when the parser understood the date
	Media       []MediaRef
}

// HasMedia reports whether the entry carries structured media metadata.
func (e RawEntry) HasMedia() bool {
	return len(e.Media) > 0
}

// HasMarkup reports whether the entry carries an HTML body to search for images.
func (e RawEntry) HasMarkup() bool {
	return e.Summary != "" || e.Content != ""
}

// Item is a normalized, storage-ready news item.
type Item struct {
	ID          int64     `json:"id"`
	DedupKey    string    `json:"dedup_key"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Link        string    `json:"link"`
	ImageURL    string    `json:"image_url"`
	Category    string    `json:"category"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// FilterKind defines the type of filter rule.
type FilterKind string

// Supported filter kinds.
const (
	FilterInclude   FilterKind = "include"
	FilterExclude   FilterKind = "exclude"
	FilterIncludeRe FilterKind = "include_re"
	FilterExcludeRe FilterKind = "exclude_re"
)

// FilterScope defines which part of an item a filter matches against.
type FilterScope string

// Supported filter scopes.
const (
	ScopeTitle   FilterScope = "title"
	ScopeContent FilterScope = "content"
	ScopeAll     FilterScope = "all"
)

// Filter is a single keyword rule attached to a feed source.
type Filter struct {
	Kind  FilterKind  `yaml:"kind"`
	Scope FilterScope `yaml:"scope"`
	Value string      `yaml:"value"`
}
