package model

import (
	"fmt"
	"strings"
	"time"
)

// SourceReport holds the outcome of one source within an ingestion run.
type SourceReport struct {
	Category   string `json:"category"`
	URL        string `json:"url"`
	Fetched    int    `json:"fetched"`
	Added      int    `json:"added"`
	Duplicates int    `json:"duplicates"`
	Invalid    int    `json:"invalid"`
	Filtered   int    `json:"filtered"`
	Error      string `json:"error,omitempty"`
}

// Report summarizes one ingestion run.
type Report struct {
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Added      int               `json:"added"`
	Duplicates int               `json:"duplicates"`
	Invalid    int               `json:"invalid"`
	Filtered   int               `json:"filtered"`
	Errors     map[string]string `json:"errors"`
	Sources    []SourceReport    `json:"sources"`
}

// NewReport returns an empty report stamped with the given start time.
func NewReport(start time.Time) *Report {
	return &Report{
		StartedAt: start,
		Errors:    make(map[string]string),
	}
}

// Record folds a finished source into the run totals.
func (r *Report) Record(s SourceReport) {
	r.Added += s.Added
	r.Duplicates += s.Duplicates
	r.Invalid += s.Invalid
	r.Filtered += s.Filtered
	if s.Error != "" {
		r.Errors[s.URL] = s.Error
	}
	r.Sources = append(r.Sources, s)
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders the report as a single human-readable line.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Added %d fresh stories from %d sources", r.Added, len(r.Sources))
	fmt.Fprintf(&b, " (%d duplicates, %d invalid, %d filtered", r.Duplicates, r.Invalid, r.Filtered)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, ", %d failed sources", len(r.Errors))
	}
	b.WriteString(")")
	return b.String()
}
