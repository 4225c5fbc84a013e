// Package memory implements core.Store in process memory.
//
// Documents are kept in their encoded wire form so every Fetch returns an
// independent copy with JSON-native values, exactly like a remote backend would.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/aretw0/alertidx/pkg/core"
)

// DefaultIndex is used when neither the caller nor the mapping names an index.
const DefaultIndex = "default"

const sep = "\x00"

// Store is a concurrent in-memory document store.
type Store struct {
	docs         *xsync.MapOf[string, []byte]
	defaultIndex string
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultIndex overrides the backend default index.
func WithDefaultIndex(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.defaultIndex = name
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:         xsync.NewMapOf[string, []byte](),
		defaultIndex: DefaultIndex,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) resolve(index string) string {
	if index == "" {
		return s.defaultIndex
	}
	return index
}

func key(index, guid string) string {
	return index + sep + guid
}

// Fetch implements core.Store.
func (s *Store) Fetch(ctx context.Context, index, guid string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, core.IOFailure("fetch", index, guid, err)
	}
	index = s.resolve(index)
	data, ok := s.docs.Load(key(index, guid))
	if !ok {
		return core.Document{}, fmt.Errorf("%s/%s: %w", index, guid, core.ErrNotFound)
	}
	doc, err := core.UnmarshalDocument(data)
	if err != nil {
		return core.Document{}, core.IOFailure("fetch", index, guid, err)
	}
	doc.Index = index
	return doc, nil
}

// Write implements core.Store. The version bump and the check-and-set
// precondition are evaluated atomically per key.
func (s *Store) Write(ctx context.Context, doc core.Document, index string, opts core.WriteOptions) (core.Document, error) {
	if doc.GUID == "" {
		return core.Document{}, fmt.Errorf("%w: document has no guid", core.ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	index = s.resolve(index)

	var (
		stored []byte
		werr   error
	)
	s.docs.Compute(key(index, doc.GUID), func(old []byte, loaded bool) ([]byte, bool) {
		var current int64
		if loaded {
			prev, err := core.UnmarshalDocument(old)
			if err != nil {
				werr = core.IOFailure("write", index, doc.GUID, err)
				return old, false
			}
			current = prev.Version
		}
		if err := core.CheckVersion(doc.GUID, current, opts); err != nil {
			werr = err
			return old, !loaded
		}

		next := doc
		next.Version = current + 1
		data, err := core.MarshalDocument(next)
		if err != nil {
			werr = core.IOFailure("write", index, doc.GUID, err)
			return old, !loaded
		}
		stored = data
		return data, false
	})
	if werr != nil {
		return core.Document{}, werr
	}

	out, err := core.UnmarshalDocument(stored)
	if err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	out.Index = index
	return out, nil
}

// Scan implements core.Scanner.
func (s *Store) Scan(ctx context.Context, index string, fn func(core.Document) bool) error {
	index = s.resolve(index)
	prefix := index + sep
	var scanErr error
	s.docs.Range(func(k string, data []byte) bool {
		if err := ctx.Err(); err != nil {
			scanErr = core.IOFailure("scan", index, "", err)
			return false
		}
		if !strings.HasPrefix(k, prefix) {
			return true
		}
		doc, err := core.UnmarshalDocument(data)
		if err != nil {
			scanErr = core.IOFailure("scan", index, strings.TrimPrefix(k, prefix), err)
			return false
		}
		doc.Index = index
		return fn(doc)
	})
	return scanErr
}

// Len returns the number of stored documents across all indices.
func (s *Store) Len() int {
	return s.docs.Size()
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	return map[string]any{
		"documents":     s.Len(),
		"default_index": s.defaultIndex,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory-store"
}
