// Package kv implements core.Store on an embedded pebble database.
//
// Keys are "<index>\x00<guid>" and values the JSON wire form of the document,
// so one index is a contiguous key range that Scan walks with bounds.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/aretw0/alertidx/pkg/core"
)

// DefaultIndex is used when neither the caller nor the mapping names an index.
const DefaultIndex = "default"

// Store is a pebble-backed document store.
type Store struct {
	db           *pebble.DB
	path         string
	defaultIndex string
	readOnly     bool
	logger       *slog.Logger

	// writes serializes read-modify-write cycles so versions strictly increase.
	writes sync.Mutex
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

// WithReadOnly opens the database read-only. Writes fail with core.ErrReadOnly.
func WithReadOnly(readOnly bool) Option {
	return func(s *Store) {
		s.readOnly = readOnly
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens or creates the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, defaultIndex: DefaultIndex}
	for _, opt := range opts {
		opt(s)
	}
	db, err := pebble.Open(path, &pebble.Options{ReadOnly: s.readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open kv store %s: %w", path, err)
	}
	s.db = db
	if s.logger != nil {
		s.logger.Debug("kv store opened", "path", path, "read_only", s.readOnly)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) resolve(index string) string {
	if index == "" {
		return s.defaultIndex
	}
	return index
}

func key(index, guid string) []byte {
	k := make([]byte, 0, len(index)+1+len(guid))
	k = append(k, index...)
	k = append(k, 0)
	return append(k, guid...)
}

// Fetch implements core.Store.
func (s *Store) Fetch(ctx context.Context, index, guid string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, core.IOFailure("fetch", index, guid, err)
	}
	index = s.resolve(index)
	doc, found, err := s.load(index, guid)
	if err != nil {
		return core.Document{}, core.IOFailure("fetch", index, guid, err)
	}
	if !found {
		return core.Document{}, fmt.Errorf("%s/%s: %w", index, guid, core.ErrNotFound)
	}
	return doc, nil
}

func (s *Store) load(index, guid string) (core.Document, bool, error) {
	val, closer, err := s.db.Get(key(index, guid))
	if errors.Is(err, pebble.ErrNotFound) {
		return core.Document{}, false, nil
	}
	if err != nil {
		return core.Document{}, false, err
	}
	defer closer.Close()

	doc, err := core.UnmarshalDocument(val)
	if err != nil {
		return core.Document{}, false, err
	}
	doc.Index = index
	return doc, true, nil
}

// Write implements core.Store.
func (s *Store) Write(ctx context.Context, doc core.Document, index string, opts core.WriteOptions) (core.Document, error) {
	if doc.GUID == "" {
		return core.Document{}, fmt.Errorf("%w: document has no guid", core.ErrInvalidRequest)
	}
	if s.readOnly {
		return core.Document{}, core.ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	index = s.resolve(index)

	s.writes.Lock()
	defer s.writes.Unlock()

	prev, found, err := s.load(index, doc.GUID)
	if err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	var current int64
	if found {
		current = prev.Version
	}
	if err := core.CheckVersion(doc.GUID, current, opts); err != nil {
		return core.Document{}, err
	}

	next := doc.Clone()
	next.Version = current + 1
	data, err := core.MarshalDocument(next)
	if err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	if err := s.db.Set(key(index, doc.GUID), data, pebble.Sync); err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}

	out, err := core.UnmarshalDocument(data)
	if err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	out.Index = index
	return out, nil
}

// Scan implements core.Scanner. Documents are visited in guid order.
func (s *Store) Scan(ctx context.Context, index string, fn func(core.Document) bool) error {
	index = s.resolve(index)
	lower := key(index, "")
	upper := append([]byte(index), 1)

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return core.IOFailure("scan", index, "", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return core.IOFailure("scan", index, "", err)
		}
		guid := string(iter.Key()[len(lower):])
		doc, err := core.UnmarshalDocument(iter.Value())
		if err != nil {
			return core.IOFailure("scan", index, guid, err)
		}
		doc.Index = index
		if !fn(doc) {
			return nil
		}
	}
	if err := iter.Error(); err != nil {
		return core.IOFailure("scan", index, "", err)
	}
	return nil
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	return map[string]any{
		"path":          s.path,
		"default_index": s.defaultIndex,
		"read_only":     s.readOnly,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "kv-store"
}
