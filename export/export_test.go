package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"draftdesk/document"
)

type fakeSource struct {
	docs map[string]document.Document
}

func (f *fakeSource) FindByID(_ context.Context, id string) (document.Document, bool, error) {
	doc, ok := f.docs[id]
	return doc, ok, nil
}

func testSource() *fakeSource {
	created := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	return &fakeSource{docs: map[string]document.Document{
		"d1": {
			ID:        "d1",
			Title:     "Reading list",
			HTMLBody:  "<p>Books to <b>read</b> this summer.</p>",
			CreatedAt: created,
			UpdatedAt: created.Add(time.Hour),
		},
	}}
}

func TestExportHTML(t *testing.T) {
	svc := NewService(testSource())

	result, err := svc.Export(context.Background(), "d1", FormatHTML)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Filename != "Reading-list.html" {
		t.Errorf("filename = %q", result.Filename)
	}
	if result.MimeType != "text/html; charset=utf-8" {
		t.Errorf("mime type = %q", result.MimeType)
	}

	html := string(result.Data)
	if !strings.Contains(html, "<title>Reading list</title>") {
		t.Error("page is missing the document title")
	}
	// The stored body is the editor's own markup and must pass through
	// unescaped.
	if !strings.Contains(html, "<p>Books to <b>read</b> this summer.</p>") {
		t.Errorf("page does not embed the body markup:\n%s", html)
	}
	if !strings.Contains(html, "Updated Jun 1, 2026") {
		t.Error("page is missing the updated timestamp")
	}
}

func TestExportUnknownDocument(t *testing.T) {
	svc := NewService(testSource())

	_, err := svc.Export(context.Background(), "missing", FormatHTML)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Export returned %v, want ErrNotFound", err)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(testSource())

	if _, err := svc.Export(context.Background(), "d1", Format("odt")); err == nil {
		t.Error("Export accepted an unsupported format")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "My Document", "My-Document"},
		{"special chars dropped", "Re: plan (v2)!", "Re-plan-v2"},
		{"keeps hyphen underscore", "a-b_c", "a-b_c"},
		{"empty becomes document", "¡¿!", "document"},
		{"truncates long titles", strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"unreserved passthrough", "abc-123_.~", "abc-123_.~"},
		{"space is %20", "a b", "a%20b"},
		{"markup encoded", "<p>", "%3Cp%3E"},
		{"multibyte encoded", "é", "%C3%A9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentEncodeForDataURL(tt.input); got != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
