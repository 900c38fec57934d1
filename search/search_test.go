package search

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"draftdesk/document"
	"draftdesk/keyval"
)

func setupDocs(t *testing.T) *document.Store {
	t.Helper()
	s := miniredis.RunT(t)
	kv := keyval.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	t.Cleanup(func() { kv.Close() })
	return document.New(keyval.NewCodec(kv))
}

func seedDocs(t *testing.T, docs *document.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	seed := []document.Document{
		{ID: "a", Title: "Grocery list", HTMLBody: "<ul><li>milk</li><li>eggs</li></ul>", CreatedAt: now, UpdatedAt: now},
		{ID: "b", Title: "Trip planning", HTMLBody: "<p>Pack the <b>tent</b> and check the weather.</p>", CreatedAt: now, UpdatedAt: now},
		{ID: "c", Title: "Meeting notes", HTMLBody: "<p>Discuss milk supply contract.</p>", CreatedAt: now, UpdatedAt: now},
	}
	for _, d := range seed {
		if err := docs.Save(ctx, d); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
}

func TestScanMatchesTitleAndBody(t *testing.T) {
	docs := setupDocs(t)
	seedDocs(t, docs)
	scan := NewScan(docs)
	ctx := context.Background()

	// "milk" is in a's body and c's body.
	results, total, err := scan.Search(ctx, Query{Text: "milk"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("Search returned %d/%d results, want 2", len(results), total)
	}
	if results[0].ID != "a" || results[1].ID != "c" {
		t.Errorf("result order = %s, %s; want collection order a, c", results[0].ID, results[1].ID)
	}

	// Title match, case-insensitive.
	results, total, err = scan.Search(ctx, Query{Text: "TRIP"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 1 || results[0].ID != "b" {
		t.Errorf("Search(TRIP) = %+v total=%d, want document b", results, total)
	}
}

func TestScanSnippetStripsMarkup(t *testing.T) {
	docs := setupDocs(t)
	seedDocs(t, docs)
	scan := NewScan(docs)

	results, _, err := scan.Search(context.Background(), Query{Text: "tent"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search returned %d results, want 1", len(results))
	}
	if strings.Contains(results[0].Snippet, "<") {
		t.Errorf("snippet %q still contains markup", results[0].Snippet)
	}
	if !strings.Contains(results[0].Snippet, "tent") {
		t.Errorf("snippet %q does not show the match", results[0].Snippet)
	}
}

func TestScanPagination(t *testing.T) {
	docs := setupDocs(t)
	seedDocs(t, docs)
	scan := NewScan(docs)
	ctx := context.Background()

	results, total, err := scan.Search(ctx, Query{Text: "milk", Limit: 1})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 2 || len(results) != 1 || results[0].ID != "a" {
		t.Errorf("page 1 = %+v total=%d, want [a] of 2", results, total)
	}

	results, total, err = scan.Search(ctx, Query{Text: "milk", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 2 || len(results) != 1 || results[0].ID != "c" {
		t.Errorf("page 2 = %+v total=%d, want [c] of 2", results, total)
	}

	// Offset past the end.
	results, total, err = scan.Search(ctx, Query{Text: "milk", Offset: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 2 || len(results) != 0 {
		t.Errorf("overrun page = %+v total=%d, want empty of 2", results, total)
	}
}

func TestScanEmptyQuery(t *testing.T) {
	docs := setupDocs(t)
	seedDocs(t, docs)
	scan := NewScan(docs)

	results, total, err := scan.Search(context.Background(), Query{Text: "   "})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 0 || len(results) != 0 {
		t.Errorf("blank query returned %+v total=%d, want nothing", results, total)
	}
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	docs := setupDocs(t)
	seedDocs(t, docs)
	service := NewService(nil, NewScan(docs))
	defer service.Close()

	resp := service.Search(context.Background(), Query{Text: "weather"})
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != "b" {
		t.Errorf("Search = %+v, want document b via the scan fallback", resp)
	}
	if resp.Query != "weather" {
		t.Errorf("response echoes query %q, want weather", resp.Query)
	}

	// No results is an empty slice, never nil.
	resp = service.Search(context.Background(), Query{Text: "zzz-nothing"})
	if resp.Results == nil {
		t.Error("empty response carries nil results")
	}

	// Index calls without Meilisearch are silent no-ops.
	service.IndexDocument(document.Document{ID: "x"})
	service.DeleteDocument("x")
}

func TestStripTags(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"<p>plain</p>", "plain"},
		{"<ul><li>one</li><li>two</li></ul>", "one two"},
		{"no markup at all", "no markup at all"},
		{"<p>line<br/>break</p>", "line break"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := stripTags(tc.in); got != tc.want {
			t.Errorf("stripTags(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
