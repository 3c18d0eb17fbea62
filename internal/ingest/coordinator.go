// Package ingest runs ingestion passes over the source registry.
//
// A pass fetches every source, resolves images for unseen entries,
// normalizes them and stores each source's new items in one batch. Per
// source failures are recorded in the report; only store failures abort
// the pass.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"newsbuzz/internal/filter"
	"newsbuzz/internal/model"
	"newsbuzz/internal/normalize"
)

// Defaults for Options fields left at zero.
const (
	DefaultWorkers    = 4
	DefaultMaxEntries = 15
)

// Fetcher downloads one source.
type Fetcher interface {
	Fetch(ctx context.Context, src model.FeedSource) ([]model.RawEntry, error)
}

// ImageResolver picks an image for an entry. It never fails.
type ImageResolver interface {
	Resolve(ctx context.Context, e model.RawEntry) string
}

// Normalizer builds storage-ready items.
type Normalizer interface {
	Key(e model.RawEntry) (string, error)
	Normalize(e model.RawEntry, src model.FeedSource, imageURL string) (model.Item, error)
}

// Gate answers whether a dedup key is already stored.
type Gate interface {
	IsNew(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, keys ...string)
}

// Store persists one source's items atomically.
type Store interface {
	InsertBatch(ctx context.Context, items []model.Item) ([]bool, error)
}

// Deps are the pipeline stages used by a Coordinator.
type Deps struct {
	Fetcher    Fetcher
	Images     ImageResolver
	Normalizer Normalizer
	Gate       Gate
	Store      Store
}

// Options tune a pass.
type Options struct {
	Workers    int  // sources processed concurrently
	MaxEntries int  // entries considered per source
	Shuffle    bool // randomize source order on each pass
}

// Coordinator runs ingestion passes.
type Coordinator struct {
	deps Deps
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// New creates a Coordinator.
func New(deps Deps, opts Options, log *slog.Logger) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{deps: deps, opts: opts, log: log, now: time.Now}
}

// Run performs one pass over sources. The report is always returned; the
// error is non-nil only when the store failed and the pass was aborted.
func (c *Coordinator) Run(ctx context.Context, sources []model.FeedSource) (*model.Report, error) {
	report := model.NewReport(c.now().UTC())

	order := slices.Clone(sources)
	if c.opts.Shuffle {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	results := make([]*model.SourceReport, len(order))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, src := range order {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			sr, err := c.processSource(gctx, src)
			results[i] = &sr
			return err
		})
	}
	err := g.Wait()

	for _, sr := range results {
		if sr != nil {
			report.Record(*sr)
		}
	}
	report.FinishedAt = c.now().UTC()

	if err != nil {
		c.log.Error("ingestion aborted", "error", err, "added", report.Added)
		return report, fmt.Errorf("run ingestion: %w", err)
	}

	c.log.Info("ingestion finished",
		"added", report.Added,
		"duplicates", report.Duplicates,
		"invalid", report.Invalid,
		"filtered", report.Filtered,
		"failed_sources", len(report.Errors),
		"duration", report.Duration(),
	)
	return report, nil
}

func (c *Coordinator) processSource(ctx context.Context, src model.FeedSource) (model.SourceReport, error) {
	sr := model.SourceReport{Category: src.Category, URL: src.URL}

	entries, err := c.deps.Fetcher.Fetch(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return sr, ctx.Err()
		}
		c.log.Warn("fetch source", "source", src.URL, "error", err)
		sr.Error = err.Error()
		return sr, nil
	}
	if len(entries) > c.opts.MaxEntries {
		entries = entries[:c.opts.MaxEntries]
	}
	sr.Fetched = len(entries)

	var batch []model.Item
	pending := make(map[string]bool)
	for _, e := range entries {
		key, err := c.deps.Normalizer.Key(e)
		if err != nil {
			sr.Invalid++
			continue
		}
		if pending[key] {
			sr.Duplicates++
			continue
		}

		isNew, err := c.deps.Gate.IsNew(ctx, key)
		if err != nil {
			return sr, fmt.Errorf("dedup %s: %w", src.URL, err)
		}
		if !isNew {
			sr.Duplicates++
			continue
		}

		if !filter.Match(filterText(e), src.Filters) {
			sr.Filtered++
			continue
		}

		item, err := c.deps.Normalizer.Normalize(e, src, c.deps.Images.Resolve(ctx, e))
		if err != nil {
			if !errors.Is(err, normalize.ErrInvalidEntry) {
				c.log.Debug("normalize entry", "source", src.URL, "link", e.Link, "error", err)
			}
			sr.Invalid++
			continue
		}

		pending[key] = true
		batch = append(batch, item)
	}

	if len(batch) == 0 {
		c.log.Debug("source done", "source", src.URL, "fetched", sr.Fetched, "duplicates", sr.Duplicates)
		return sr, nil
	}

	inserted, err := c.deps.Store.InsertBatch(ctx, batch)
	if err != nil {
		return sr, fmt.Errorf("store items from %s: %w", src.URL, err)
	}

	stored := make([]string, 0, len(batch))
	for i, ok := range inserted {
		if !ok {
			sr.Duplicates++
			continue
		}
		sr.Added++
		stored = append(stored, batch[i].DedupKey)
	}
	c.deps.Gate.Remember(ctx, stored...)

	c.log.Debug("source done", "source", src.URL, "fetched", sr.Fetched, "added", sr.Added, "duplicates", sr.Duplicates)
	return sr, nil
}

func filterText(e model.RawEntry) filter.FeedItem {
	body := normalize.StripHTML(e.Summary)
	if body == "" {
		body = normalize.StripHTML(e.Content)
	}
	return filter.FeedItem{Title: normalize.StripHTML(e.Title), Excerpt: body}
}
