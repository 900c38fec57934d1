// Package draftdesk wires the shared store, the account and document
// collections, and the optional search and history services into one app
// handle, and opens editing sessions against it.
package draftdesk

import (
	"context"
	"fmt"

	"draftdesk/account"
	"draftdesk/autosave"
	"draftdesk/config"
	"draftdesk/document"
	"draftdesk/export"
	"draftdesk/history"
	"draftdesk/keyval"
	"draftdesk/search"
)

// App is one editor instance ("tab") bound to the shared store.
type App struct {
	cfg   config.Config
	store *keyval.RedisStore

	Accounts  *account.Store
	Documents *document.Store
	Export    *export.Service
	History   *history.Service // nil when history is disabled

	search *search.Service
}

// Open connects to the shared store described by cfg and assembles the app.
func Open(cfg config.Config) (*App, error) {
	store, err := keyval.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("open shared store: %w", err)
	}
	return NewWithStore(cfg, store), nil
}

// NewWithStore assembles the app over an existing store. Tests use this
// with a miniredis-backed store.
func NewWithStore(cfg config.Config, store *keyval.RedisStore) *App {
	codec := keyval.NewCodec(store)
	docs := document.New(codec)

	var meili *search.Meili
	if cfg.SearchEnabled {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meili, search.NewScan(docs))
	docs.SetIndexer(searchService)

	app := &App{
		cfg:       cfg,
		store:     store,
		Accounts:  account.New(codec),
		Documents: docs,
		Export:    export.NewService(docs),
		search:    searchService,
	}
	if cfg.HistoryEnabled {
		app.History = history.New(cfg.HistoryDir, "draftdesk")
	}
	return app
}

// OpenEditor starts an editing session. An empty id creates a new document.
// The caller owns the returned controller and must Close it when the
// session ends.
func (a *App) OpenEditor(ctx context.Context, id string) (*autosave.Controller, error) {
	opts := autosave.Options{
		Interval:     a.cfg.AutosaveInterval,
		DefaultTitle: a.cfg.DefaultTitle,
		Watcher:      a.store,
	}
	if a.History != nil {
		opts.Recorder = a.History
	}
	ctrl, err := autosave.Open(ctx, a.Documents, id, opts)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Start(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}
	return ctrl, nil
}

// Search queries the document collection.
func (a *App) Search(ctx context.Context, q search.Query) search.Response {
	return a.search.Search(ctx, q)
}

// Close releases the search monitor and the store connection.
func (a *App) Close() error {
	a.search.Close()
	return a.store.Close()
}
