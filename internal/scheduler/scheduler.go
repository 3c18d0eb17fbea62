// Package scheduler triggers ingestion passes, on demand or on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"newsbuzz/internal/model"
)

// ErrRunInProgress is returned when a pass is requested while one is running.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Ingester runs one ingestion pass.
type Ingester interface {
	Run(ctx context.Context, sources []model.FeedSource) (*model.Report, error)
}

// Pruner removes items older than a cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier is told about the outcome of scheduled passes.
type Notifier interface {
	NotifyReport(report *model.Report)
}

// Scheduler runs ingestion passes, never more than one at a time.
type Scheduler struct {
	ingester Ingester
	sources  []model.FeedSource
	log      *slog.Logger
	running  atomic.Bool

	pruner   Pruner
	maxAge   time.Duration
	notifier Notifier
	now      func() time.Time
}

// New creates a Scheduler over a fixed source registry.
func New(ing Ingester, sources []model.FeedSource, log *slog.Logger) *Scheduler {
	return &Scheduler{
		ingester: ing,
		sources:  sources,
		log:      log,
		now:      time.Now,
	}
}

// SetRetention enables pruning of items older than maxAge after each pass.
func (s *Scheduler) SetRetention(p Pruner, maxAge time.Duration) {
	s.pruner = p
	s.maxAge = maxAge
}

// SetNotifier sets the receiver of scheduled pass reports.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

// Sources returns the registry the scheduler ingests.
func (s *Scheduler) Sources() []model.FeedSource {
	return s.sources
}

// Running reports whether a pass is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// RunOnce performs exactly one ingestion pass.
func (s *Scheduler) RunOnce(ctx context.Context) (*model.Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	report, err := s.ingester.Run(ctx, s.sources)
	if err != nil {
		return report, err
	}

	s.prune(ctx)
	return report, nil
}

func (s *Scheduler) prune(ctx context.Context) {
	if s.pruner == nil || s.maxAge <= 0 {
		return
	}
	cutoff := s.now().Add(-s.maxAge)
	n, err := s.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("prune items", "cutoff", cutoff, "error", err)
		return
	}
	if n > 0 {
		s.log.Info("pruned items", "count", n, "cutoff", cutoff)
	}
}

// Run performs a pass immediately and then on every activation of spec
// (standard cron syntax or descriptors such as "@every 30m"), blocking
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	s.tick(ctx)
	c.Start()
	s.log.Info("scheduler started", "schedule", spec, "sources", len(s.sources))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Info("skipping scheduled run", "reason", err)
		return
	case err != nil:
		s.log.Error("scheduled run", "error", err)
	}
	if s.notifier != nil && report != nil {
		s.notifier.NotifyReport(report)
	}
}
