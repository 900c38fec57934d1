package search

import (
	"context"
	"strings"

	"draftdesk/document"
)

// Lister exposes the document collection to the fallback scanner.
// *document.Store satisfies it.
type Lister interface {
	List(ctx context.Context) ([]document.Document, error)
}

// Scan implements Searcher by walking the whole collection and substring-
// matching titles and bodies, case-insensitively. It needs no external
// service, so it always reports healthy; for a personal collection the
// linear walk is plenty.
type Scan struct {
	docs Lister
}

// NewScan creates a collection-scan searcher.
func NewScan(docs Lister) *Scan {
	return &Scan{docs: docs}
}

// Healthy always returns true.
func (s *Scan) Healthy() bool {
	return true
}

// Search walks the collection in order and matches the query against title
// and body text.
func (s *Scan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, 0, err
	}

	var matches []Result
	for _, d := range docs {
		body := stripTags(d.HTMLBody)
		titleHit := strings.Contains(strings.ToLower(d.Title), needle)
		bodyHit := strings.Contains(strings.ToLower(body), needle)
		if !titleHit && !bodyHit {
			continue
		}
		matches = append(matches, Result{
			ID:      d.ID,
			Title:   d.Title,
			Snippet: snippet(body, needle),
		})
	}

	total := len(matches)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

// snippet returns a short window of text around the first match, or the
// start of the text when the match was in the title only.
func snippet(text, needle string) string {
	const window = 80
	idx := strings.Index(strings.ToLower(text), needle)
	if idx < 0 {
		idx = 0
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(text) {
		end = len(text)
	}
	out := strings.TrimSpace(text[start:end])
	if out == "" {
		return ""
	}
	if start > 0 {
		out = "…" + out
	}
	if end < len(text) {
		out += "…"
	}
	return out
}

// stripTags reduces an HTML fragment to its text content. It is a tag
// stripper, not a sanitizer: tags are dropped, text and entities are kept
// as-is, and block boundaries become single spaces.
func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	lastSpace := true
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case r == '>':
			inTag = false
		case inTag:
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
