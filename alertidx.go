package alertidx

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/alertidx/internal/platform"
	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/dao"
	"github.com/aretw0/alertidx/pkg/typed"
)

// Version is the library version. Release builds override it with -ldflags.
var Version = "0.4.0-dev"

// --- Types ---

// Dao is the index access facade.
type Dao = dao.Dao

// AccessConfig configures how a Dao reaches its backend.
type AccessConfig = dao.AccessConfig

// Alert is a public alias for the typed alert model.
type Alert[T any] = typed.Alert[T]

// TypedRepository is a public alias for the typed repository.
type TypedRepository[T any] = typed.Repository[T]

// --- Errors ---

var (
	ErrNotFound         = core.ErrNotFound
	ErrOriginalNotFound = core.ErrOriginalNotFound
	ErrIO               = core.ErrIO
	ErrInvalidRequest   = core.ErrInvalidRequest
	ErrConflict         = core.ErrConflict
	ErrNotInitialized   = core.ErrNotInitialized
	ErrUnsupported      = core.ErrUnsupported
	ErrReadOnly         = core.ErrReadOnly
)

// --- Configuration ---

// Option defines a functional option for configuring a Dao.
type Option = dao.Option

// WithStore injects a backend client instead of building one from the config.
func WithStore(store core.Store) Option {
	return dao.WithStore(store)
}

// WithIndexSupplier injects the sensor to index mapping.
func WithIndexSupplier(s core.IndexSupplier) Option {
	return dao.WithIndexSupplier(s)
}

// WithSearcher injects the search component.
func WithSearcher(s core.Searcher) Option {
	return dao.WithSearcher(s)
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return dao.WithLogger(logger)
}

// WithRegisterer registers the update metrics on r.
func WithRegisterer(r prometheus.Registerer) Option {
	return dao.WithRegisterer(r)
}

// --- Factory ---

// New creates an uninitialized Dao.
func New(opts ...Option) *Dao {
	return dao.New(opts...)
}

// Open creates a Dao and initializes it with cfg.
func Open(ctx context.Context, cfg AccessConfig, opts ...Option) (*Dao, error) {
	d := dao.New(opts...)
	if err := d.EnsureInitialized(ctx, cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadConfig reads an AccessConfig from a YAML file.
func LoadConfig(path string) (AccessConfig, error) {
	return dao.LoadConfig(path)
}

// FindConfig looks upwards from startDir for an alertidx.yaml file.
func FindConfig(startDir string) (string, error) {
	return platform.FindConfig(startDir)
}

// --- Typed Factories ---

// NewTypedRepository creates a type-safe view over an initialized Dao.
func NewTypedRepository[T any](d *Dao) *typed.Repository[T] {
	return typed.NewRepository[T](d)
}
