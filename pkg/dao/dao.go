// Package dao is the single entry point to the document index: retrieval,
// search, whole-document updates, patches and comment edits.
//
// A Dao is created uninitialized. EnsureInitialized builds the backend client
// and the components exactly once; every data call made before that fails
// with core.ErrNotInitialized.
package dao

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/introspection"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/alertidx/internal/platform"
	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/indexmap"
	"github.com/aretw0/alertidx/pkg/retrieve"
	"github.com/aretw0/alertidx/pkg/search"
	"github.com/aretw0/alertidx/pkg/transport"
	"github.com/aretw0/alertidx/pkg/update"
)

// Dao is the index access facade. It is safe for concurrent use.
type Dao struct {
	mu          sync.RWMutex
	initialized bool
	config      AccessConfig

	logger     *slog.Logger
	registerer prometheus.Registerer

	store       core.Store
	indices     core.IndexSupplier
	searcher    core.Searcher
	retriever   *retrieve.Retriever
	coordinator *update.Coordinator
	watched     *indexmap.Watched
	ownsStore   bool
}

// Option configures a Dao.
type Option func(*Dao)

// WithStore injects the backend client. EnsureInitialized then skips building one.
func WithStore(store core.Store) Option {
	return func(d *Dao) {
		d.store = store
	}
}

// WithSearcher injects the search component.
func WithSearcher(s core.Searcher) Option {
	return func(d *Dao) {
		d.searcher = s
	}
}

// WithIndexSupplier injects the sensor to index mapping, overriding the
// mapping of the AccessConfig.
func WithIndexSupplier(s core.IndexSupplier) Option {
	return func(d *Dao) {
		d.indices = s
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dao) {
		d.logger = logger
	}
}

// WithRegisterer registers the update metrics on r during initialization.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(d *Dao) {
		d.registerer = r
	}
}

// New creates an uninitialized Dao.
func New(opts ...Option) *Dao {
	d := &Dao{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EnsureInitialized installs Kerberos when configured, then builds the backend
// client and the components. Only the first call has an effect.
func (d *Dao) EnsureInitialized(ctx context.Context, cfg AccessConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Kerberos must be registered before the first HTTP client is built.
	if cfg.KerberosEnabled() {
		if err := transport.EnableKerberos(*cfg.Kerberos); err != nil {
			return err
		}
	}

	if d.registerer != nil {
		for _, c := range update.Collectors() {
			if err := d.registerer.Register(c); err != nil {
				var already prometheus.AlreadyRegisteredError
				if !errors.As(err, &already) {
					return fmt.Errorf("failed to register metrics: %w", err)
				}
			}
		}
	}

	store := d.store
	if store == nil {
		opts := []platform.Option{
			platform.WithAdapter(cfg.Adapter),
			platform.WithDefaultIndex(cfg.DefaultIndex),
			platform.WithReadOnly(cfg.ReadOnly),
			platform.WithFormat(cfg.Format),
			platform.WithTimeout(cfg.Timeout),
			platform.WithLogger(d.logger),
		}
		var err error
		store, err = platform.Open(cfg.URI, opts...)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		d.ownsStore = true
	}

	indices := d.indices
	var watched *indexmap.Watched
	if indices == nil {
		var err error
		indices, watched, err = d.mapping(cfg)
		if err != nil {
			d.closeStore(store)
			return err
		}
	}

	d.store = store
	d.indices = indices
	d.watched = watched
	d.config = cfg
	d.retriever = retrieve.New(store, indices,
		retrieve.WithLogger(d.logger),
		retrieve.WithConcurrency(cfg.Concurrency),
	)
	d.coordinator = update.New(store, indices,
		update.WithLogger(d.logger),
		update.WithRetriever(d.retriever),
		update.WithCheckAndSet(cfg.CheckAndSet),
		update.WithConcurrency(cfg.Concurrency),
	)
	if d.searcher == nil {
		d.searcher = search.New(store, search.WithLogger(d.logger), search.WithMaxResults(cfg.MaxResults))
	}
	d.initialized = true

	if d.logger != nil {
		d.logger.Debug("index dao initialized", "store", fmt.Sprintf("%T", store), "check_and_set", cfg.CheckAndSet)
	}
	return nil
}

func (d *Dao) mapping(cfg AccessConfig) (core.IndexSupplier, *indexmap.Watched, error) {
	switch {
	case cfg.MappingFile != "":
		w, err := indexmap.NewWatched(cfg.MappingFile, indexmap.WithLogger(d.logger))
		if err != nil {
			return nil, nil, err
		}
		// The watcher lives until Close, not until the init context ends.
		if err := w.Start(context.Background()); err != nil {
			return nil, nil, err
		}
		return w, w, nil
	case len(cfg.Indices) > 0:
		s, err := indexmap.New(cfg.Indices)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return nil, nil, nil
	}
}

func (d *Dao) closeStore(store core.Store) {
	if !d.ownsStore {
		return
	}
	if c, ok := store.(core.Closer); ok {
		_ = c.Close()
	}
}

// Initialized reports whether EnsureInitialized completed.
func (d *Dao) Initialized() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.initialized
}

// Close stops the mapping watcher and releases a store the Dao opened itself.
func (d *Dao) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	if d.watched != nil {
		errs = append(errs, d.watched.Close())
		d.watched = nil
	}
	if d.initialized && d.ownsStore {
		if c, ok := d.store.(core.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// GetIndex returns explicit when set, otherwise the index mapped for
// sensorType, or "" when the sensor is unmapped.
func (d *Dao) GetIndex(sensorType, explicit string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return core.ResolveIndex(d.indices, sensorType, explicit)
}

type components struct {
	retriever   *retrieve.Retriever
	coordinator *update.Coordinator
	searcher    core.Searcher
}

func (d *Dao) components() (components, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.initialized {
		return components{}, core.ErrNotInitialized
	}
	return components{retriever: d.retriever, coordinator: d.coordinator, searcher: d.searcher}, nil
}

// Search delegates to the search component.
func (d *Dao) Search(ctx context.Context, req core.SearchRequest) (core.SearchResponse, error) {
	c, err := d.components()
	if err != nil {
		return core.SearchResponse{}, err
	}
	return c.searcher.Search(ctx, req)
}

// Group delegates to the search component.
func (d *Dao) Group(ctx context.Context, req core.GroupRequest) (core.GroupResponse, error) {
	c, err := d.components()
	if err != nil {
		return core.GroupResponse{}, err
	}
	return c.searcher.Group(ctx, req)
}

// GetLatest returns the stored document for guid and sensorType.
func (d *Dao) GetLatest(ctx context.Context, guid, sensorType string) (core.Document, error) {
	c, err := d.components()
	if err != nil {
		return core.Document{}, err
	}
	return c.retriever.GetLatest(ctx, guid, sensorType)
}

// GetAllLatest returns the documents that resolved, in request order.
func (d *Dao) GetAllLatest(ctx context.Context, requests []core.GetRequest) ([]core.GetResult, error) {
	c, err := d.components()
	if err != nil {
		return nil, err
	}
	return c.retriever.GetAllLatest(ctx, requests)
}

// Update writes a whole document.
func (d *Dao) Update(ctx context.Context, doc core.Document, index string) (core.Document, error) {
	c, err := d.components()
	if err != nil {
		return core.Document{}, err
	}
	return c.coordinator.Update(ctx, doc, index)
}

// BatchUpdate writes documents independently.
func (d *Dao) BatchUpdate(ctx context.Context, requests []core.UpdateRequest) ([]core.UpdateResult, error) {
	c, err := d.components()
	if err != nil {
		return nil, err
	}
	return c.coordinator.BatchUpdate(ctx, requests)
}

// Patch applies a patch to the latest version of a document. A nil retriever
// uses the Dao's own.
func (d *Dao) Patch(ctx context.Context, retriever core.Retriever, req core.PatchRequest, timestamp int64) (core.Document, error) {
	c, err := d.components()
	if err != nil {
		return core.Document{}, err
	}
	if retriever == nil {
		retriever = c.retriever
	}
	return c.coordinator.Patch(ctx, retriever, req, timestamp)
}

// AddCommentToAlert appends a comment to an alert.
func (d *Dao) AddCommentToAlert(ctx context.Context, req core.CommentRequest) (core.Document, error) {
	return d.AddCommentToAlertWithLatest(ctx, req, nil)
}

// AddCommentToAlertWithLatest appends a comment to an already retrieved alert.
func (d *Dao) AddCommentToAlertWithLatest(ctx context.Context, req core.CommentRequest, latest *core.Document) (core.Document, error) {
	c, err := d.components()
	if err != nil {
		return core.Document{}, err
	}
	return c.coordinator.AddCommentToAlertWithLatest(ctx, req, latest)
}

// RemoveCommentFromAlert removes a comment from an alert.
func (d *Dao) RemoveCommentFromAlert(ctx context.Context, req core.CommentRequest) (core.Document, error) {
	return d.RemoveCommentFromAlertWithLatest(ctx, req, nil)
}

// RemoveCommentFromAlertWithLatest removes a comment from an already retrieved alert.
func (d *Dao) RemoveCommentFromAlertWithLatest(ctx context.Context, req core.CommentRequest, latest *core.Document) (core.Document, error) {
	c, err := d.components()
	if err != nil {
		return core.Document{}, err
	}
	return c.coordinator.RemoveCommentFromAlertWithLatest(ctx, req, latest)
}

// DaoState exposes the facade state for observability.
type DaoState struct {
	Initialized bool   `json:"initialized"`
	Adapter     string `json:"adapter,omitempty"`
	CheckAndSet bool   `json:"check_and_set"`
	Kerberos    bool   `json:"kerberos"`
	Store       any    `json:"store,omitempty"`
	Mapping     any    `json:"mapping,omitempty"`
}

// State implements introspection.Introspectable.
func (d *Dao) State() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := DaoState{
		Initialized: d.initialized,
		Adapter:     d.config.Adapter,
		CheckAndSet: d.config.CheckAndSet,
		Kerberos:    d.config.KerberosEnabled(),
	}
	if in, ok := d.store.(introspection.Introspectable); ok {
		s.Store = in.State()
	}
	if d.watched != nil {
		s.Mapping = d.watched.State()
	}
	return s
}

// ComponentType implements introspection.Component.
func (d *Dao) ComponentType() string {
	return "index-dao"
}

var _ introspection.Introspectable = (*Dao)(nil)
var _ introspection.Component = (*Dao)(nil)
var _ core.Retriever = (*Dao)(nil)
var _ core.Searcher = (*Dao)(nil)
