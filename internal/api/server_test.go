package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"newsbuzz/internal/model"
	"newsbuzz/internal/scheduler"
	"newsbuzz/internal/storage"
)

type fakeTrigger struct {
	report *model.Report
	err    error
	calls  int
}

func (f *fakeTrigger) RunOnce(context.Context) (*model.Report, error) {
	f.calls++
	return f.report, f.err
}

type brokenReader struct{}

func (brokenReader) Query(context.Context, storage.Query) ([]model.Item, error) {
	return nil, errors.New("database is closed")
}

func (brokenReader) Categories(context.Context) ([]storage.CategoryCount, error) {
	return nil, errors.New("database is closed")
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *storage.SQLite) {
	t.Helper()
	base := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	var items []model.Item
	for i, cat := range []string{"naija news", "gossip", "naija news", "tech", "naija news"} {
		items = append(items, model.Item{
			DedupKey:    fmt.Sprintf("key-%d", i),
			Title:       fmt.Sprintf("Story %d", i),
			Link:        fmt.Sprintf("https://example.com/%d", i),
			ImageURL:    "https://cdn.example.com/x.jpg",
			Category:    cat,
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	if _, err := s.InsertBatch(context.Background(), items); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (body %q)", method, target, err, rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	h := NewServer(&fakeTrigger{}, newTestStore(t), testLogger()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if diff := cmp.Diff(`{"status":"ok"}`, rec.Body.String()); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate(t *testing.T) {
	okReport := model.NewReport(time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC))
	okReport.Record(model.SourceReport{Category: "tech", URL: "https://a.example.com/rss", Added: 4})

	partial := model.NewReport(time.Now())

	tests := []struct {
		name        string
		method      string
		trigger     *fakeTrigger
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "get runs a pass",
			method:      http.MethodGet,
			trigger:     &fakeTrigger{report: okReport},
			wantStatus:  http.StatusOK,
			wantCode:    "ok",
			wantMessage: "Added 4 fresh stories from 1 sources (0 duplicates, 0 invalid, 0 filtered)",
		},
		{
			name:        "post runs a pass",
			method:      http.MethodPost,
			trigger:     &fakeTrigger{report: okReport},
			wantStatus:  http.StatusOK,
			wantCode:    "ok",
			wantMessage: "Added 4 fresh stories from 1 sources (0 duplicates, 0 invalid, 0 filtered)",
		},
		{
			name:        "overlapping run",
			method:      http.MethodGet,
			trigger:     &fakeTrigger{err: scheduler.ErrRunInProgress},
			wantStatus:  http.StatusConflict,
			wantCode:    "run_in_progress",
			wantMessage: scheduler.ErrRunInProgress.Error(),
		},
		{
			name:        "store failure",
			method:      http.MethodPost,
			trigger:     &fakeTrigger{report: partial, err: errors.New("disk full")},
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal_error",
			wantMessage: "ingestion aborted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(tt.trigger, newTestStore(t), testLogger()).Handler()
			rec, env := do(t, h, tt.method, "/generate")

			if diff := cmp.Diff(tt.wantStatus, rec.Code); diff != "" {
				t.Errorf("status mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantCode, env.Code); diff != "" {
				t.Errorf("code mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantMessage, env.Message); diff != "" {
				t.Errorf("message mismatch (-want +got):\n%s", diff)
			}
			if tt.trigger.calls != 1 {
				t.Errorf("trigger calls = %d, want 1", tt.trigger.calls)
			}
		})
	}
}

func TestListItems(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	h := NewServer(&fakeTrigger{}, store, testLogger()).Handler()

	tests := []struct {
		name       string
		target     string
		wantTitles []string
		wantLimit  int
	}{
		{
			name:       "defaults newest first",
			target:     "/api/v1/items",
			wantTitles: []string{"Story 4", "Story 3", "Story 2", "Story 1", "Story 0"},
			wantLimit:  storage.DefaultLimit,
		},
		{
			name:       "category filter ignores case",
			target:     "/api/v1/items?category=Naija%20News",
			wantTitles: []string{"Story 4", "Story 2", "Story 0"},
			wantLimit:  storage.DefaultLimit,
		},
		{
			name:       "limit and offset",
			target:     "/api/v1/items?limit=2&offset=1",
			wantTitles: []string{"Story 3", "Story 2"},
			wantLimit:  2,
		},
		{
			name:       "limit clamped",
			target:     "/api/v1/items?limit=1000",
			wantTitles: []string{"Story 4", "Story 3", "Story 2", "Story 1", "Story 0"},
			wantLimit:  storage.MaxLimit,
		},
		{
			name:       "garbage limit falls back to default",
			target:     "/api/v1/items?limit=lots",
			wantTitles: []string{"Story 4", "Story 3", "Story 2", "Story 1", "Story 0"},
			wantLimit:  storage.DefaultLimit,
		},
		{
			name:       "unknown category",
			target:     "/api/v1/items?category=music",
			wantTitles: []string{},
			wantLimit:  storage.DefaultLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var items []model.Item
			if err := json.Unmarshal(env.Data, &items); err != nil {
				t.Fatalf("decode items: %v", err)
			}
			titles := []string{}
			for _, it := range items {
				titles = append(titles, it.Title)
			}
			if diff := cmp.Diff(tt.wantTitles, titles); diff != "" {
				t.Errorf("titles mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantLimit, env.Limit); diff != "" {
				t.Errorf("limit mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListCategories(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	h := NewServer(&fakeTrigger{}, store, testLogger()).Handler()

	rec, env := do(t, h, http.MethodGet, "/api/v1/categories")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got []storage.CategoryCount
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	want := []storage.CategoryCount{
		{Category: "gossip", Count: 1},
		{Category: "naija news", Count: 3},
		{Category: "tech", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestReadErrors(t *testing.T) {
	h := NewServer(&fakeTrigger{}, brokenReader{}, testLogger()).Handler()

	for _, target := range []string{"/api/v1/items", "/api/v1/categories"} {
		rec, env := do(t, h, http.MethodGet, target)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", target, rec.Code)
		}
		if env.Code != "internal_error" {
			t.Errorf("%s: code = %q, want internal_error", target, env.Code)
		}
	}
}
