// Package autosave runs the editing session for one open document: it
// tracks unsaved edits, flushes them on a timer, and reconciles with writes
// made by other editor instances sharing the store.
package autosave

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"draftdesk/document"
	"draftdesk/keyval"
)

// ErrClosed is returned by mutating operations after the controller has
// been closed or its document deleted.
var ErrClosed = errors.New("autosave: controller closed")

const (
	// DefaultInterval is how often unsaved edits are flushed.
	DefaultInterval = 2 * time.Second
	// DefaultTitle seeds new and recovered documents.
	DefaultTitle = "Untitled document"
)

// Watcher delivers change events for keys written by other instances.
// *keyval.RedisStore satisfies it.
type Watcher interface {
	Subscribe(ctx context.Context) (<-chan keyval.Change, func(), error)
}

// Recorder receives a snapshot after each successful save so a revision
// log can follow the session. Implementations log their own failures.
type Recorder interface {
	RecordSave(doc document.Document, message string)
}

// Options configures a controller. The zero value is usable.
type Options struct {
	// Interval between autosave ticks. Defaults to DefaultInterval.
	Interval time.Duration
	// DefaultTitle for new and recovered documents. Defaults to DefaultTitle.
	DefaultTitle string
	// Watcher, when set, feeds cross-instance change events to the
	// controller. Only changes to the document collection are acted on.
	Watcher Watcher
	// Recorder, when set, is notified after every successful save.
	Recorder Recorder

	now func() time.Time
}

// SaveResult reports the outcome of a manual save.
type SaveResult struct {
	SavedAt time.Time
	// TitleTaken is set when another document holds the saved title. It is
	// a warning, not a failure: the save has already gone through.
	TitleTaken    bool
	ConflictingID string
}

// Controller is bound to exactly one document id for its whole life. All
// methods are safe for concurrent use; within one controller, store writes
// never race each other.
type Controller struct {
	docs         *document.Store
	id           string
	interval     time.Duration
	defaultTitle string
	watcher      Watcher
	recorder     Recorder
	now          func() time.Time

	mu           sync.Mutex
	dirty        bool
	pendingTitle string
	pendingBody  string
	createdAt    time.Time
	lastSavedAt  time.Time
	closed       bool
	started      bool

	stop        chan struct{}
	stopOnce    sync.Once
	tickDone    chan struct{}
	watchCancel func()
	watchDone   chan struct{}
}

// Open binds a controller to a document. An empty id creates a fresh
// document with a collision-free title; a non-empty id loads the stored
// document, or materializes an empty stub under that id when nothing is
// stored there. The stub path deliberately does not distinguish "never
// existed" from "deleted by another instance".
//
// The returned controller is idle until Start is called.
func Open(ctx context.Context, docs *document.Store, id string, opts Options) (*Controller, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.DefaultTitle == "" {
		opts.DefaultTitle = DefaultTitle
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	c := &Controller{
		docs:         docs,
		interval:     opts.Interval,
		defaultTitle: opts.DefaultTitle,
		watcher:      opts.Watcher,
		recorder:     opts.Recorder,
		now:          opts.now,
		stop:         make(chan struct{}),
	}

	if id == "" {
		title, err := docs.GenerateUniqueTitle(ctx, opts.DefaultTitle)
		if err != nil {
			return nil, err
		}
		if err := c.materialize(ctx, uuid.NewString(), title); err != nil {
			return nil, err
		}
		return c, nil
	}

	doc, ok, err := docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := c.materialize(ctx, id, opts.DefaultTitle); err != nil {
			return nil, err
		}
		return c, nil
	}

	c.id = doc.ID
	c.pendingTitle = doc.Title
	c.pendingBody = doc.HTMLBody
	c.createdAt = doc.CreatedAt
	c.lastSavedAt = doc.UpdatedAt
	return c, nil
}

// materialize stores an empty document and adopts it as the bound state.
func (c *Controller) materialize(ctx context.Context, id, title string) error {
	now := c.now()
	doc := document.Document{
		ID:        id,
		Title:     title,
		HTMLBody:  "",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.docs.Save(ctx, doc); err != nil {
		return err
	}
	c.id = id
	c.pendingTitle = title
	c.pendingBody = ""
	c.createdAt = now
	c.lastSavedAt = now
	if c.recorder != nil {
		c.recorder.RecordSave(doc, "create document")
	}
	return nil
}

// Start launches the autosave tick loop and, when a watcher is configured,
// the change-feed loop. Calling Start on a running controller is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if c.watcher != nil {
		changes, cancel, err := c.watcher.Subscribe(ctx)
		if err != nil {
			c.mu.Lock()
			c.started = false
			c.mu.Unlock()
			return err
		}
		c.watchCancel = cancel
		c.watchDone = make(chan struct{})
		go c.watchLoop(changes)
	}

	c.tickDone = make(chan struct{})
	go c.tickLoop()
	return nil
}

func (c *Controller) tickLoop() {
	defer close(c.tickDone)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.Tick(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
				log.Printf("autosave: tick save for %s: %v", c.id, err)
			}
		}
	}
}

func (c *Controller) watchLoop(changes <-chan keyval.Change) {
	defer close(c.watchDone)
	for {
		select {
		case <-c.stop:
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.Key != keyval.KeyDocs {
				continue
			}
			if err := c.Reload(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
				log.Printf("autosave: reload %s after external change: %v", c.id, err)
			}
		}
	}
}

// SetTitle records an edit to the title. The dirty flag is set immediately;
// the write happens on the next tick or manual save.
func (c *Controller) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pendingTitle = title
	c.dirty = true
}

// SetBody records an edit to the HTML body.
func (c *Controller) SetBody(body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pendingBody = body
	c.dirty = true
}

// Tick performs one autosave step: when the session is dirty, the pending
// edits are written and the flag cleared; otherwise nothing touches the
// store. The tick loop calls this on every interval; tests may call it
// directly.
func (c *Controller) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.dirty {
		return nil
	}
	_, err := c.write(ctx, "autosave")
	return err
}

// Save performs a manual save regardless of the dirty flag and reports
// whether the saved title is also held by a different document. The
// collision is a warning only; the write always proceeds.
func (c *Controller) Save(ctx context.Context) (SaveResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return SaveResult{}, ErrClosed
	}

	title := c.effectiveTitle()
	var result SaveResult
	docs, err := c.docs.List(ctx)
	if err != nil {
		return SaveResult{}, err
	}
	for _, d := range docs {
		if d.Title == title && d.ID != c.id {
			result.TitleTaken = true
			result.ConflictingID = d.ID
			break
		}
	}

	savedAt, err := c.write(ctx, "save")
	if err != nil {
		return SaveResult{}, err
	}
	result.SavedAt = savedAt
	return result, nil
}

// write flushes the pending state. Callers hold c.mu.
func (c *Controller) write(ctx context.Context, message string) (time.Time, error) {
	now := c.now()
	doc := document.Document{
		ID:        c.id,
		Title:     c.effectiveTitle(),
		HTMLBody:  c.pendingBody,
		CreatedAt: c.createdAt,
		UpdatedAt: now,
	}
	if err := c.docs.Save(ctx, doc); err != nil {
		return time.Time{}, err
	}
	c.dirty = false
	c.lastSavedAt = now
	if c.recorder != nil {
		c.recorder.RecordSave(doc, message)
	}
	return now, nil
}

// effectiveTitle falls back to the default when the pending title is blank.
// Callers hold c.mu.
func (c *Controller) effectiveTitle() string {
	title := strings.TrimSpace(c.pendingTitle)
	if title == "" {
		return c.defaultTitle
	}
	return title
}

// Reload re-reads the bound document after an external write. When the
// session is clean the external state is adopted wholesale; when it is
// dirty the local edits stand and will overwrite the external write on the
// next save. A document that has vanished is recreated as an empty stub.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.dirty {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	doc, ok, err := c.docs.FindByID(ctx, c.id)
	if err != nil {
		return err
	}
	if !ok {
		now := c.now()
		doc = document.Document{
			ID:        c.id,
			Title:     c.defaultTitle,
			HTMLBody:  "",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := c.docs.Save(ctx, doc); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// An edit may have landed while the store was being read; local edits
	// always win over the external state.
	if c.dirty || c.closed {
		return nil
	}
	c.pendingTitle = doc.Title
	c.pendingBody = doc.HTMLBody
	c.createdAt = doc.CreatedAt
	c.lastSavedAt = doc.UpdatedAt
	return nil
}

// ExitCheck gates navigation away from the session. A clean session may
// always leave; a dirty one leaves only when confirm agrees. No save is
// performed either way.
func (c *Controller) ExitCheck(confirm func() bool) bool {
	c.mu.Lock()
	dirty := c.dirty && !c.closed
	c.mu.Unlock()
	if !dirty {
		return true
	}
	if confirm == nil {
		return false
	}
	return confirm()
}

// Delete removes the bound document and closes the controller. The closed
// state is terminal: no save, tick, or reload can run afterwards, even if
// the delete itself fails.
func (c *Controller) Delete(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.mu.Unlock()
	c.stopLoops()
	return c.docs.DeleteByID(ctx, c.id)
}

// Close stops the tick and change-feed loops. It must be called when the
// session ends; a leaked tick loop would keep writing against a closed or
// reassigned document id. Close is idempotent and, once it returns, no
// further tick fires.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.stopLoops()
	return nil
}

func (c *Controller) stopLoops() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return
	}
	if c.tickDone != nil {
		<-c.tickDone
	}
	if c.watchCancel != nil {
		c.watchCancel()
		<-c.watchDone
	}
}

// DocumentID returns the id the controller is bound to.
func (c *Controller) DocumentID() string {
	return c.id
}

// Dirty reports whether unsaved edits exist.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// LastSavedAt returns the time of the most recent successful save.
func (c *Controller) LastSavedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSavedAt
}

// Pending returns the in-memory title and body.
func (c *Controller) Pending() (title, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingTitle, c.pendingBody
}
