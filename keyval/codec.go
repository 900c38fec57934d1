package keyval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Codec reads and writes typed values as JSON under string keys.
type Codec struct {
	store Store
}

// NewCodec wraps a Store with JSON encoding.
func NewCodec(store Store) *Codec {
	return &Codec{store: store}
}

// Store returns the underlying shared store.
func (c *Codec) Store() Store {
	return c.store
}

// Read parses the value under key into T. A missing key, a JSON null, or a
// value that fails to parse as T all yield fallback with a nil error: this
// is the single recovery point for corrupt persisted state, and corruption
// is never surfaced to callers. Only a store transport failure returns an
// error.
func Read[T any](ctx context.Context, c *Codec, key string, fallback T) (T, error) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return fallback, err
	}
	if !ok {
		return fallback, nil
	}
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fallback, nil
	}
	var value T
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return fallback, nil
	}
	return value, nil
}

// Write serializes value to JSON and fully replaces whatever is stored
// under key.
func Write[T any](ctx context.Context, c *Codec, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.store.Set(ctx, key, string(data))
}

// Remove deletes the key.
func (c *Codec) Remove(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}
