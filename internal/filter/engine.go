// Package filter implements the keyword rules a source can attach to its items.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"newsbuzz/internal/model"
)

// FeedItem is the plain text of an entry that rules are matched against.
type FeedItem struct {
	Title   string
	Excerpt string
}

// Match reports whether an item passes the given rules.
// An empty rule set accepts everything. Include rules are OR-ed,
// and any matching exclude rule rejects the item.
func Match(item FeedItem, rules []model.Filter) bool {
	if len(rules) == 0 {
		return true
	}

	hasIncludes := false
	included := false

	for _, r := range rules {
		switch r.Kind {
		case model.FilterInclude, model.FilterIncludeRe:
			hasIncludes = true
			if matches(item, r) {
				included = true
			}
		case model.FilterExclude, model.FilterExcludeRe:
			if matches(item, r) {
				return false
			}
		}
	}

	return !hasIncludes || included
}

func matches(item FeedItem, r model.Filter) bool {
	text := textForScope(item, r.Scope)
	switch r.Kind {
	case model.FilterInclude, model.FilterExclude:
		return strings.Contains(text, strings.ToLower(r.Value))
	case model.FilterIncludeRe, model.FilterExcludeRe:
		re, err := regexp.Compile("(?i)" + r.Value)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return false
}

func textForScope(item FeedItem, scope model.FilterScope) string {
	switch scope {
	case model.ScopeTitle:
		return strings.ToLower(item.Title)
	case model.ScopeContent:
		return strings.ToLower(item.Excerpt)
	default:
		return strings.ToLower(item.Title + " " + item.Excerpt)
	}
}

// Validate checks that a rule has a known kind and scope, a value,
// and, for regex kinds, a pattern that compiles.
// An empty scope is accepted and means ScopeAll.
func Validate(r model.Filter) error {
	switch r.Scope {
	case "", model.ScopeTitle, model.ScopeContent, model.ScopeAll:
	default:
		return fmt.Errorf("unknown scope %q", r.Scope)
	}
	if strings.TrimSpace(r.Value) == "" {
		return fmt.Errorf("empty value")
	}
	switch r.Kind {
	case model.FilterInclude, model.FilterExclude:
		return nil
	case model.FilterIncludeRe, model.FilterExcludeRe:
		return ValidateRegex(r.Value)
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}
