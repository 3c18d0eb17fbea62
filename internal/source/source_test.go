package source

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"newsbuzz/internal/model"
)

func TestLoad(t *testing.T) {
	got, err := Load("../../testdata/sources.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []model.FeedSource{
		{Category: "naija news", URL: "https://www.premiumtimesng.com/feed"},
		{
			Category: "football",
			URL:      "https://www.goal.com/feeds/en/news",
			Filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeTitle, Value: "super eagles"},
				{Kind: model.FilterExcludeRe, Value: "(?:betting|odds)"},
			},
		},
		{Category: "world", URL: "https://feeds.bbci.co.uk/news/world/africa/rss.xml"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("../../testdata/does-not-exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "not yaml",
			yaml:    "sources: [",
			wantErr: "parse sources",
		},
		{
			name:    "empty registry",
			yaml:    "sources: []",
			wantErr: "no sources",
		},
		{
			name:    "missing category",
			yaml:    "sources:\n  - url: https://example.com/rss\n",
			wantErr: "empty category",
		},
		{
			name:    "relative url",
			yaml:    "sources:\n  - category: tech\n    url: /rss\n",
			wantErr: "invalid url",
		},
		{
			name:    "unsupported scheme",
			yaml:    "sources:\n  - category: tech\n    url: ftp://example.com/rss\n",
			wantErr: "invalid url",
		},
		{
			name: "duplicate url",
			yaml: `sources:
  - category: tech
    url: https://example.com/rss
  - category: gossip
    url: https://example.com/rss
`,
			wantErr: "duplicate url",
		},
		{
			name: "bad filter regex",
			yaml: `sources:
  - category: tech
    url: https://example.com/rss
    filters:
      - kind: include_re
        value: "[unclosed"
`,
			wantErr: "invalid regex",
		},
		{
			name: "unknown filter kind",
			yaml: `sources:
  - category: tech
    url: https://example.com/rss
    filters:
      - kind: boost
        value: lagos
`,
			wantErr: "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	sources := Default()
	if err := Validate(sources); err != nil {
		t.Fatalf("default registry invalid: %v", err)
	}

	categories := map[string]bool{}
	for _, s := range sources {
		categories[s.Category] = true
	}
	for _, c := range []string{"naija news", "gossip", "football", "tech", "world"} {
		if !categories[c] {
			t.Errorf("default registry lacks category %q", c)
		}
	}
}
