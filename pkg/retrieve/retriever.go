// Package retrieve returns the most recent stored version of documents.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/alertidx/pkg/core"
)

// DefaultConcurrency bounds the parallel lookups of GetAllLatest.
const DefaultConcurrency = 8

// Retriever implements core.Retriever on top of a core.Store.
type Retriever struct {
	store       core.Store
	indices     core.IndexSupplier
	logger      *slog.Logger
	concurrency int
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// WithConcurrency bounds the parallel lookups of GetAllLatest.
func WithConcurrency(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// New creates a Retriever. indices may be nil, in which case every lookup
// without an explicit index goes to the backend default index.
func New(store core.Store, indices core.IndexSupplier, opts ...Option) *Retriever {
	r := &Retriever{
		store:       store,
		indices:     indices,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetLatest returns the stored document for guid and sensorType.
// It fails with core.ErrNotFound when nothing matches, including when the stored
// document belongs to another sensor type.
func (r *Retriever) GetLatest(ctx context.Context, guid, sensorType string) (core.Document, error) {
	return r.get(ctx, core.GetRequest{GUID: guid, SensorType: sensorType})
}

func (r *Retriever) get(ctx context.Context, req core.GetRequest) (core.Document, error) {
	if req.GUID == "" {
		return core.Document{}, fmt.Errorf("%w: document guid cannot be empty", core.ErrInvalidRequest)
	}

	index := core.ResolveIndex(r.indices, req.SensorType, req.Index)
	doc, err := r.store.Fetch(ctx, index, req.GUID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Document{}, err
		}
		if r.logger != nil {
			r.logger.Warn("fetch failed", "guid", req.GUID, "sensor", req.SensorType, "index", index, "error", err)
		}
		return core.Document{}, core.IOFailure("fetch", index, req.GUID, err)
	}

	if req.SensorType != "" && doc.SensorType != req.SensorType {
		return core.Document{}, fmt.Errorf("%s/%s is %q, not %q: %w", index, req.GUID, doc.SensorType, req.SensorType, core.ErrNotFound)
	}

	if r.logger != nil {
		r.logger.Debug("fetched document", "guid", req.GUID, "sensor", req.SensorType, "index", doc.Index, "version", doc.Version)
	}
	return doc, nil
}

// GetAllLatest returns a (request, document) pair for every request that
// resolved, in request order. Requests that do not resolve are omitted; use
// Missing to find them. A transport failure aborts the whole call.
func (r *Retriever) GetAllLatest(ctx context.Context, requests []core.GetRequest) ([]core.GetResult, error) {
	found := make([]*core.GetResult, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, req := range requests {
		g.Go(func() error {
			doc, err := r.get(gctx, req)
			switch {
			case err == nil:
				found[i] = &core.GetResult{Request: req, Document: doc}
				return nil
			case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrInvalidRequest):
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]core.GetResult, 0, len(requests))
	for _, res := range found {
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, nil
}

// Missing returns the requests that have no matching result.
func Missing(requests []core.GetRequest, results []core.GetResult) []core.GetRequest {
	resolved := mapset.NewSet[core.GetRequest]()
	for _, res := range results {
		resolved.Add(res.Request)
	}

	var missing []core.GetRequest
	for _, req := range requests {
		if !resolved.Contains(req) {
			missing = append(missing, req)
		}
	}
	return missing
}

var _ core.Retriever = (*Retriever)(nil)
