// Package keyval provides typed JSON access to the shared key-value store
// that holds all editor state, plus the change feed other editor instances
// use to observe external writes.
package keyval

import "context"

// Well-known keys. Each holds one complete JSON value.
const (
	KeyUsers   = "users"
	KeySession = "session"
	KeyDocs    = "docs"
)

// Change describes a write to the shared store made by some instance.
// Origin identifies the writer so a subscriber can tell its own writes apart.
type Change struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

// Store is the host-provided shared key-value store. Writes are
// last-writer-wins at key granularity; the store is atomic only for a single
// key's bytes, never for a read-modify-write spanning two calls.
type Store interface {
	// Get returns the raw value under key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set fully replaces the value under key.
	Set(ctx context.Context, key, value string) error
	// Delete removes the key. Absent keys are not an error.
	Delete(ctx context.Context, key string) error
	// Subscribe delivers changes made by other instances sharing this store.
	// The returned cancel func must be called to release the subscription.
	Subscribe(ctx context.Context) (<-chan Change, func(), error)
}
