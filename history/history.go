// Package history keeps a revision log per document: every recorded save
// becomes a commit in a small git repository on local disk, so the editor
// can show and restore earlier versions of a document.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"draftdesk/document"
)

const (
	branchMain   = "main"
	snapshotFile = "document.json"
)

// Snapshot is the persisted form of one document revision.
type Snapshot struct {
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// Revision describes one commit in a document's log.
type Revision struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// Service manages one git repository per document id under baseDir.
type Service struct {
	baseDir string
	author  string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a history service rooted at baseDir. author names the commit
// author for recorded saves.
func New(baseDir, author string) *Service {
	if author == "" {
		author = "draftdesk"
	}
	return &Service{
		baseDir: baseDir,
		author:  author,
		locks:   make(map[string]*sync.Mutex),
	}
}

// RecordSave commits a snapshot of the document, creating its repository on
// first use. Failures are logged, not returned: the revision log follows
// saves best-effort and must never fail one.
func (s *Service) RecordSave(doc document.Document, message string) {
	snapshot := Snapshot{Title: doc.Title, HTML: doc.HTMLBody}
	if _, err := s.Commit(doc.ID, snapshot, s.author, message); err != nil {
		log.Printf("history: record save for %s: %v", doc.ID, err)
	}
}

// Commit appends a snapshot to the document's log, initializing the
// repository when it does not exist yet.
func (s *Service) Commit(docID string, snapshot Snapshot, author, message string) (Revision, error) {
	lock := s.documentLock(docID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(docID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = s.initRepo(docID)
	}
	if err != nil {
		return Revision{}, fmt.Errorf("open repo: %w", err)
	}

	hash, err := s.commit(repo, snapshot, author, message)
	if err != nil {
		return Revision{}, err
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj), nil
}

// Latest returns the most recent snapshot and its revision.
func (s *Service) Latest(docID string) (Snapshot, Revision, error) {
	lock := s.documentLock(docID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(docID))
	if err != nil {
		return Snapshot{}, Revision{}, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchMain), true)
	if err != nil {
		return Snapshot{}, Revision{}, fmt.Errorf("resolve %s: %w", branchMain, err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Snapshot{}, Revision{}, fmt.Errorf("load commit object: %w", err)
	}
	snapshot, err := readSnapshot(commitObj)
	if err != nil {
		return Snapshot{}, Revision{}, err
	}
	return snapshot, toRevision(commitObj), nil
}

// SnapshotAt returns the snapshot stored in a specific revision.
func (s *Service) SnapshotAt(docID, hash string) (Snapshot, error) {
	lock := s.documentLock(docID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(docID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("open repo: %w", err)
	}
	commitObj, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readSnapshot(commitObj)
}

// History lists revisions newest first. limit <= 0 means all.
func (s *Service) History(docID string, limit int) ([]Revision, error) {
	lock := s.documentLock(docID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(docID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchMain), true)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", branchMain, err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var items []Revision
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevision(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) initRepo(docID string) (*git.Repository, error) {
	path := s.repoPath(docID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchMain))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branchMain, err)
	}
	return repo, nil
}

func (s *Service) commit(repo *git.Repository, snapshot Snapshot, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal snapshot: %w", err)
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", snapshotFile, err)
	}

	if _, err := worktree.Add(snapshotFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add snapshot: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@draftdesk.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit snapshot: %w", err)
	}
	return hash, nil
}

func (s *Service) repoPath(docID string) string {
	return filepath.Join(s.baseDir, docID)
}

func (s *Service) documentLock(docID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[docID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[docID] = lock
	return lock
}

func readSnapshot(commitObj *object.Commit) (Snapshot, error) {
	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s from commit: %w", snapshotFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot blob: %w", err)
	}
	defer reader.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(reader).Decode(&snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

func toRevision(commitObj *object.Commit) Revision {
	return Revision{
		Hash:    commitObj.Hash.String(),
		Author:  commitObj.Author.Name,
		Message: commitObj.Message,
		When:    commitObj.Author.When,
	}
}

func sanitizeEmail(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "draftdesk"
	}
	return b.String()
}
