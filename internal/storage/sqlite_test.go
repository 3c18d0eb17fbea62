package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"newsbuzz/internal/model"
)

var ignoreStoreFields = cmpopts.IgnoreFields(model.Item{}, "ID", "CreatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testItem(key, category string, published time.Time) model.Item {
	return model.Item{
		DedupKey:    key,
		Title:       "Title " + key,
		Excerpt:     "Excerpt " + key,
		Link:        "https://example.com/" + key,
		ImageURL:    "https://cdn.example.com/" + key + ".jpg",
		Category:    category,
		PublishedAt: published,
	}
}

func TestInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	item := testItem("a", "naija news", time.Date(2026, 10, 12, 8, 30, 0, 0, time.UTC))
	ok, err := s.InsertIfAbsent(ctx, &item)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !ok {
		t.Fatal("expected first insert to succeed")
	}
	if item.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if item.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	dup := testItem("a", "gossip", time.Now())
	dup.Title = "Different title, same key"
	ok, err = s.InsertIfAbsent(ctx, &dup)
	if err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}
	if ok {
		t.Fatal("expected duplicate insert to be skipped")
	}

	got, err := s.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if diff := cmp.Diff([]model.Item{testItem("a", "naija news", time.Date(2026, 10, 12, 8, 30, 0, 0, time.UTC))}, got, ignoreStoreFields); diff != "" {
		t.Errorf("stored items mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	pub := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)

	first := testItem("a", "tech", pub)
	if _, err := s.InsertIfAbsent(ctx, &first); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := s.InsertBatch(ctx, []model.Item{
		testItem("b", "tech", pub),
		testItem("a", "tech", pub),
		testItem("c", "tech", pub),
		testItem("b", "tech", pub),
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if diff := cmp.Diff([]bool{true, false, true, false}, got); diff != "" {
		t.Errorf("inserted mismatch (-want +got):\n%s", diff)
	}

	n, err := s.Count(ctx, "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	empty, err := s.InsertBatch(ctx, nil)
	if err != nil || empty != nil {
		t.Errorf("empty batch = %v, %v; want nil, nil", empty, err)
	}
}

func TestInsertBatchCancelledContext(t *testing.T) {
	s := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.InsertBatch(ctx, []model.Item{testItem("a", "tech", time.Now())}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	n, err := s.Count(context.Background(), "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0 after failed batch", n)
	}
}

func TestConcurrentInsertsKeepKeysUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]bool, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item := testItem("same", "viral", time.Now())
			ok, err := s.InsertIfAbsent(ctx, &item)
			if err != nil {
				t.Errorf("insert: %v", err)
			}
			results[i] = ok
		}()
	}
	wg.Wait()

	inserted := 0
	for _, ok := range results {
		if ok {
			inserted++
		}
	}
	if inserted != 1 {
		t.Errorf("inserted %d times, want exactly 1", inserted)
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	item := testItem("present", "world", time.Now())
	if _, err := s.InsertIfAbsent(ctx, &item); err != nil {
		t.Fatalf("insert: %v", err)
	}

	tests := []struct {
		key  string
		want bool
	}{
		{key: "present", want: true},
		{key: "absent", want: false},
	}
	for _, tt := range tests {
		got, err := s.Exists(ctx, tt.key)
		if err != nil {
			t.Fatalf("exists %q: %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("Exists(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	base := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

	seed := []model.Item{
		testItem("n1", "naija news", base.Add(1*time.Hour)),
		testItem("g1", "gossip", base.Add(2*time.Hour)),
		testItem("n2", "naija news", base.Add(3*time.Hour)),
		testItem("n3", "Naija News", base.Add(4*time.Hour)),
	}
	if _, err := s.InsertBatch(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "all newest first", query: Query{}, want: []string{"n3", "n2", "g1", "n1"}},
		{name: "category case-insensitive", query: Query{Category: "NAIJA NEWS"}, want: []string{"n3", "n2", "n1"}},
		{name: "limit", query: Query{Limit: 2}, want: []string{"n3", "n2"}},
		{name: "offset", query: Query{Limit: 2, Offset: 2}, want: []string{"g1", "n1"}},
		{name: "unknown category", query: Query{Category: "music"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := s.Query(ctx, tt.query)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			var got []string
			for _, it := range items {
				got = append(got, it.DedupKey)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Query() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryNormalize(t *testing.T) {
	tests := []struct {
		in   Query
		want Query
	}{
		{in: Query{}, want: Query{Limit: DefaultLimit}},
		{in: Query{Limit: 500, Offset: -3}, want: Query{Limit: MaxLimit}},
		{in: Query{Category: "tech", Limit: 5, Offset: 10}, want: Query{Category: "tech", Limit: 5, Offset: 10}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, tt.in.Normalize()); diff != "" {
			t.Errorf("Normalize(%+v) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestCategoriesAndCount(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	var seed []model.Item
	for i, cat := range []string{"tech", "gossip", "tech", "world", "tech"} {
		seed = append(seed, testItem(fmt.Sprintf("k%d", i), cat, time.Now()))
	}
	if _, err := s.InsertBatch(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := s.Categories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	want := []CategoryCount{{"gossip", 1}, {"tech", 3}, {"world", 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Categories() mismatch (-want +got):\n%s", diff)
	}

	n, err := s.Count(ctx, "TECH")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count(TECH) = %d, want 3", n)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	old := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return old }
	stale := testItem("stale", "world", old)
	if _, err := s.InsertIfAbsent(ctx, &stale); err != nil {
		t.Fatalf("insert stale: %v", err)
	}
	s.now = func() time.Time { return recent }
	fresh := testItem("fresh", "world", recent)
	if _, err := s.InsertIfAbsent(ctx, &fresh); err != nil {
		t.Fatalf("insert fresh: %v", err)
	}

	n, err := s.DeleteOlderThan(ctx, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}

	for key, want := range map[string]bool{"stale": false, "fresh": true} {
		got, err := s.Exists(ctx, key)
		if err != nil {
			t.Fatalf("exists: %v", err)
		}
		if got != want {
			t.Errorf("Exists(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestQueryRejectsCorruptTimestamps(t *testing.T) {
	tests := []struct {
		name   string
		column string
	}{
		{name: "published_at", column: "published_at"},
		{name: "created_at", column: "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestDB(t)
			ctx := context.Background()
			item := testItem("k1", "tech", time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC))
			if _, err := s.InsertIfAbsent(ctx, &item); err != nil {
				t.Fatalf("insert: %v", err)
			}
			if _, err := s.db.ExecContext(ctx, `UPDATE items SET `+tt.column+` = 'yesterday'`); err != nil {
				t.Fatalf("corrupt row: %v", err)
			}

			if _, err := s.Query(ctx, Query{}); err == nil {
				t.Fatal("expected scan error for a corrupt timestamp")
			}
		})
	}
}
