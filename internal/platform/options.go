package platform

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/alertidx/pkg/core"
)

// options holds the internal configuration for opening a store.
type options struct {
	store   core.Store
	logger  *slog.Logger
	adapter string
	config  map[string]any
}

// Option defines a functional option for opening a store.
type Option func(*options)

// defaultOptions returns the default configuration. An empty adapter is
// inferred from the URI.
func defaultOptions() *options {
	return &options{
		config: make(map[string]any),
	}
}

// WithLogger sets the logger handed to the adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a ready store (e.g. a test double). Open returns it as is.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapter selects the adapter by name: "memory", "kv", "fs" or "http".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithDefaultIndex sets the index used for unmapped sensors.
func WithDefaultIndex(name string) Option {
	return func(o *options) {
		o.config["default_index"] = name
	}
}

// WithReadOnly rejects writes with core.ErrReadOnly (kv and fs).
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithMustExist requires the fs root directory to exist already.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithFormat sets the fs document format (".json" or ".yaml").
func WithFormat(ext string) Option {
	return func(o *options) {
		o.config["format"] = ext
	}
}

// WithTimeout bounds every request of the http adapter.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config["timeout"] = d
	}
}

// WithHTTPClient hands a prepared client to the http adapter.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.config["http_client"] = c
	}
}
