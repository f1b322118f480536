// Package store provides generic kind/key entity persistence with an
// optional ordered secondary index per kind. Values are stored as JSON;
// typed access goes through Collection.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// ErrAbsent reports that a patch targeted a key with no stored record.
var ErrAbsent = eris.New("store: record absent")

// Store is the persistence contract shared by the SQLite and Postgres
// backends. Absence is not an error: Get returns (nil, nil) for a missing
// key and Delete on a missing key is a no-op.
type Store interface {
	// Get returns the stored value for (kind, key), or nil when absent.
	Get(ctx context.Context, kind, key string) (json.RawMessage, error)
	// Exists reports whether a record is stored under (kind, key).
	Exists(ctx context.Context, kind, key string) (bool, error)
	// Save idempotently overwrites the full value under (kind, key).
	Save(ctx context.Context, kind, key string, value json.RawMessage) error
	// Patch merges the fields of partial into the stored value. Fields not
	// present in partial are preserved. Returns ErrAbsent when no record
	// exists under (kind, key).
	Patch(ctx context.Context, kind, key string, partial json.RawMessage) error
	// PatchIfAbsent applies partial only while the named top-level field of
	// the stored value is still null or empty. It reports whether the patch
	// was applied; (false, nil) means the guard failed or the record is
	// absent.
	PatchIfAbsent(ctx context.Context, kind, key, field string, partial json.RawMessage) (bool, error)
	// Delete removes the record and, for indexed kinds, its index entry.
	Delete(ctx context.Context, kind, key string) error
	// Create saves the value and appends key to the kind's index unless the
	// key is already a member (set-append, insertion order preserved).
	Create(ctx context.Context, kind, key string, value json.RawMessage) error
	// ListKeys pages through the kind's index in insertion order. The
	// returned cursor is empty when no further page exists.
	ListKeys(ctx context.Context, kind, cursor string, limit int) ([]string, string, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Collection is a typed view over one entity kind. A missing key reads as
// the kind's initial state rather than an error.
type Collection[T any] struct {
	store   Store
	kind    string
	initial func() T
}

// NewCollection creates a Collection whose initial state is the zero value.
func NewCollection[T any](s Store, kind string) Collection[T] {
	return Collection[T]{store: s, kind: kind, initial: func() T { var z T; return z }}
}

// NewCollectionWith creates a Collection with an explicit initial state.
func NewCollectionWith[T any](s Store, kind string, initial func() T) Collection[T] {
	return Collection[T]{store: s, kind: kind, initial: initial}
}

// Kind returns the collection's entity kind name.
func (c Collection[T]) Kind() string { return c.kind }

// Get returns the stored entity, or the kind's initial state when absent.
func (c Collection[T]) Get(ctx context.Context, key string) (T, error) {
	raw, err := c.store.Get(ctx, c.kind, key)
	if err != nil {
		return c.initial(), eris.Wrapf(err, "store: get %s/%s", c.kind, key)
	}
	if raw == nil {
		return c.initial(), nil
	}
	out := c.initial()
	if err := json.Unmarshal(raw, &out); err != nil {
		return c.initial(), eris.Wrapf(err, "store: decode %s/%s", c.kind, key)
	}
	return out, nil
}

// Exists reports whether the key has a stored record.
func (c Collection[T]) Exists(ctx context.Context, key string) (bool, error) {
	return c.store.Exists(ctx, c.kind, key)
}

// Save overwrites the full entity.
func (c Collection[T]) Save(ctx context.Context, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "store: encode %s/%s", c.kind, key)
	}
	return c.store.Save(ctx, c.kind, key, raw)
}

// Create saves the entity and appends the key to the kind's index.
func (c Collection[T]) Create(ctx context.Context, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "store: encode %s/%s", c.kind, key)
	}
	return c.store.Create(ctx, c.kind, key, raw)
}

// Patch merges partial into the stored entity. When the key is absent the
// partial is merged into the initial state and saved, matching the
// initial-state-on-absence read contract.
func (c Collection[T]) Patch(ctx context.Context, key string, partial map[string]any) error {
	raw, err := json.Marshal(partial)
	if err != nil {
		return eris.Wrapf(err, "store: encode patch %s/%s", c.kind, key)
	}
	err = c.store.Patch(ctx, c.kind, key, raw)
	if err == nil {
		return nil
	}
	if !eris.Is(err, ErrAbsent) {
		return err
	}

	// Absent: merge into the initial state client-side and save.
	base, err := json.Marshal(c.initial())
	if err != nil {
		return eris.Wrapf(err, "store: encode initial %s", c.kind)
	}
	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return eris.Wrapf(err, "store: decode initial %s", c.kind)
	}
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range partial {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return eris.Wrapf(err, "store: encode merged %s/%s", c.kind, key)
	}
	return c.store.Save(ctx, c.kind, key, out)
}

// PatchIfAbsent applies partial only while the named field is still unset.
func (c Collection[T]) PatchIfAbsent(ctx context.Context, key, field string, partial map[string]any) (bool, error) {
	raw, err := json.Marshal(partial)
	if err != nil {
		return false, eris.Wrapf(err, "store: encode patch %s/%s", c.kind, key)
	}
	return c.store.PatchIfAbsent(ctx, c.kind, key, field, raw)
}

// Delete removes the entity and its index membership.
func (c Collection[T]) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.kind, key)
}

// List returns one page of entities in index (insertion) order together
// with the cursor for the next page, empty when the listing is exhausted.
func (c Collection[T]) List(ctx context.Context, cursor string, limit int) ([]T, string, error) {
	keys, next, err := c.store.ListKeys(ctx, c.kind, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	items := make([]T, 0, len(keys))
	for _, key := range keys {
		item, err := c.Get(ctx, key)
		if err != nil {
			return nil, "", err
		}
		items = append(items, item)
	}
	return items, next, nil
}
