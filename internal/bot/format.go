package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"newsbuzz/internal/model"
	"newsbuzz/internal/storage"
)

// FormatReport formats the outcome of an ingestion pass.
func FormatReport(r *model.Report) string {
	var b strings.Builder
	b.WriteString(r.Summary())
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(&b, "\nTook %s", d.Round(100*time.Millisecond))
	}
	if len(r.Errors) == 0 {
		return b.String()
	}

	urls := make([]string, 0, len(r.Errors))
	for u := range r.Errors {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	b.WriteString("\n\nFailed sources:")
	for _, u := range urls {
		fmt.Fprintf(&b, "\n- %s: %s", u, r.Errors[u])
	}
	return b.String()
}

// FormatItems formats stored items as a numbered list.
func FormatItems(items []model.Item, category string) string {
	if len(items) == 0 {
		if category != "" {
			return fmt.Sprintf("No stories in %q yet.", category)
		}
		return "No stories yet. Use /run to fetch some."
	}

	var b strings.Builder
	if category != "" {
		fmt.Fprintf(&b, "Latest in %s:\n", category)
	} else {
		b.WriteString("Latest stories:\n")
	}
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, it.Title)
		if category == "" {
			fmt.Fprintf(&b, "   [%s] ", it.Category)
		} else {
			b.WriteString("   ")
		}
		fmt.Fprintf(&b, "%s\n", it.PublishedAt.Format("2006-01-02 15:04 UTC"))
		fmt.Fprintf(&b, "   %s\n", it.Link)
	}
	return b.String()
}

// FormatStats formats per-category item counts.
func FormatStats(cats []storage.CategoryCount, total int) string {
	if total == 0 {
		return "The store is empty. Use /run to fetch stories."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d stories stored:\n", total)
	for _, c := range cats {
		fmt.Fprintf(&b, "\n%s: %d", c.Category, c.Count)
	}
	return b.String()
}
