// Package document stores the rich-text document collection in the shared
// key-value store.
package document

import (
	"context"
	"fmt"
	"time"

	"draftdesk/keyval"
)

// Document is one rich-text document. The body is the editor's HTML output.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	HTMLBody  string    `json:"htmlBody"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Indexer receives document writes so a search index can follow the
// collection. Implementations must not block; failures are theirs to log.
type Indexer interface {
	IndexDocument(doc Document)
	DeleteDocument(id string)
}

// Store provides CRUD over the document collection. Every mutation is a
// whole-collection read, in-memory change, whole-collection write; between
// the read and the write another instance can interleave, and its write is
// simply overwritten. That is the accepted consistency model.
type Store struct {
	codec   *keyval.Codec
	indexer Indexer
}

// New creates a document store over the shared codec.
func New(codec *keyval.Codec) *Store {
	return &Store{codec: codec}
}

// SetIndexer attaches a search indexer notified after each write. Pass nil
// to detach.
func (s *Store) SetIndexer(indexer Indexer) {
	s.indexer = indexer
}

// List returns the collection in insertion order. No sorting or filtering
// is applied; that is presentation logic and belongs to the caller.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	return keyval.Read(ctx, s.codec, keyval.KeyDocs, []Document{})
}

// FindByID returns the document with the given id; ok is false when absent.
func (s *Store) FindByID(ctx context.Context, id string) (Document, bool, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return Document{}, false, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d, true, nil
		}
	}
	return Document{}, false, nil
}

// Save stores doc exactly as given: an existing document with the same id
// is replaced in place at its index, otherwise doc is appended. Timestamps
// are the caller's responsibility.
func (s *Store) Save(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("save document: empty id")
	}
	docs, err := s.List(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i, d := range docs {
		if d.ID == doc.ID {
			docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, doc)
	}
	if err := keyval.Write(ctx, s.codec, keyval.KeyDocs, docs); err != nil {
		return err
	}
	if s.indexer != nil {
		s.indexer.IndexDocument(doc)
	}
	return nil
}

// DeleteByID removes the document with the given id. Deleting an absent id
// is a no-op, not an error.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	docs, err := s.List(ctx)
	if err != nil {
		return err
	}
	kept := docs[:0]
	for _, d := range docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	if err := keyval.Write(ctx, s.codec, keyval.KeyDocs, kept); err != nil {
		return err
	}
	if s.indexer != nil {
		s.indexer.DeleteDocument(id)
	}
	return nil
}

// GenerateUniqueTitle suggests a title not currently in use: base itself if
// free, otherwise "base 2", "base 3", and so on. This is a creation-time
// suggestion only; later saves may still collide and the store does not
// enforce title uniqueness.
func (s *Store) GenerateUniqueTitle(ctx context.Context, base string) (string, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	taken := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		taken[d.Title] = struct{}{}
	}
	title := base
	for i := 2; ; i++ {
		if _, ok := taken[title]; !ok {
			return title, nil
		}
		title = fmt.Sprintf("%s %d", base, i)
	}
}
