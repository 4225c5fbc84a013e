package platform

import (
	"fmt"
	"strings"

	"github.com/aretw0/alertidx/pkg/core"
)

// Adapter names understood by Open.
const (
	AdapterMemory = "memory"
	AdapterKV     = "kv"
	AdapterFS     = "fs"
	AdapterHTTP   = "http"
)

// Open builds the store named by the adapter option, or inferred from the URI
// scheme when no adapter is given:
//
//	memory://            in-process store
//	kv:///var/lib/db     embedded pebble database
//	fs:///srv/alerts     one file per document
//	https://idx:8983     remote index service
//
// A bare path without a scheme opens the fs adapter.
func Open(uri string, opts ...Option) (core.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.store != nil {
		return o.store, nil
	}

	adapter, location := o.adapter, uri
	if adapter == "" {
		adapter, location = ParseURI(uri)
	} else if a, loc := ParseURI(uri); a == adapter {
		location = loc
	}

	switch adapter {
	case AdapterMemory:
		return openMemory(o), nil
	case AdapterKV:
		return openKV(location, o)
	case AdapterFS:
		return openFS(location, o)
	case AdapterHTTP:
		return openHTTP(location, o)
	default:
		return nil, fmt.Errorf("%w: unknown adapter: %s", core.ErrInvalidRequest, adapter)
	}
}

// ParseURI splits a store URI into adapter name and adapter location.
func ParseURI(uri string) (adapter, location string) {
	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		if uri == AdapterMemory || uri == "memory:" {
			return AdapterMemory, ""
		}
		return AdapterFS, uri
	}
	if scheme == "http" || scheme == "https" {
		return AdapterHTTP, uri
	}
	return scheme, rest
}
