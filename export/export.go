// Package export renders stored documents as standalone HTML, PDF, or DOCX
// files.
package export

import (
	"context"
	"errors"
	"fmt"
	"html/template"

	"draftdesk/document"
)

// Format is the export output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

var (
	// ErrPDFDependencyMissing is returned when no chromium binary is found.
	ErrPDFDependencyMissing = errors.New("pdf export dependency missing")
	// ErrDOCXDependencyMissing is returned when pandoc is not installed.
	ErrDOCXDependencyMissing = errors.New("docx export dependency missing")
	// ErrNotFound is returned when the document id is unknown.
	ErrNotFound = errors.New("document not found")
)

// Result is a finished export.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// DocumentSource looks up documents to export. *document.Store satisfies it.
type DocumentSource interface {
	FindByID(ctx context.Context, id string) (document.Document, bool, error)
}

// Service provides document export.
type Service struct {
	docs DocumentSource
}

// NewService creates an export service.
func NewService(docs DocumentSource) *Service {
	return &Service{docs: docs}
}

// Export renders the document with the given id in the requested format.
func (s *Service) Export(ctx context.Context, id string, format Format) (*Result, error) {
	doc, ok, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	page, err := renderPage(pageData{
		Title:       doc.Title,
		ContentHTML: template.HTML(doc.HTMLBody),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}

	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(page),
			Filename: sanitizeFilename(doc.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(ctx, page, doc.Title)
	case FormatDOCX:
		return exportDOCX(page, doc.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// sanitizeFilename creates a safe filename from a title.
func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "document"
	}
	return result
}
