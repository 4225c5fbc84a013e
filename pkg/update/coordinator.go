// Package update writes documents back to the store: whole-document updates,
// isolated batches, field patches and comment thread edits.
//
// There is no lock between reading the latest version and writing the patched
// one. Two concurrent patches of the same document race and the last write
// wins, unless check-and-set is enabled, in which case the loser fails with
// core.ErrConflict and can retry.
package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/patch"
	"github.com/aretw0/alertidx/pkg/retrieve"
)

// DefaultConcurrency bounds the parallel writes of BatchUpdate.
const DefaultConcurrency = 8

// Coordinator implements the update paths on top of a core.Store.
type Coordinator struct {
	store       core.Store
	indices     core.IndexSupplier
	retriever   core.Retriever
	logger      *slog.Logger
	checkAndSet bool
	concurrency int
	now         func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithCheckAndSet makes every write present the version it was based on.
// The store then rejects writes over a version that moved with core.ErrConflict.
func WithCheckAndSet(enabled bool) Option {
	return func(c *Coordinator) {
		c.checkAndSet = enabled
	}
}

// WithConcurrency bounds the parallel writes of BatchUpdate.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithClock overrides the time source used for write timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRetriever sets the retriever used by the comment operations when the
// caller does not supply the latest document.
func WithRetriever(r core.Retriever) Option {
	return func(c *Coordinator) {
		c.retriever = r
	}
}

// New creates a Coordinator writing to store.
func New(store core.Store, indices core.IndexSupplier, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		indices:     indices,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retriever == nil {
		c.retriever = retrieve.New(store, indices, retrieve.WithLogger(c.logger))
	}
	return c
}

// Update writes the whole document to index, or to the index mapped for its
// sensor type when index is empty, and returns the stored document.
func (c *Coordinator) Update(ctx context.Context, doc core.Document, index string) (core.Document, error) {
	started := time.Now()
	stored, err := c.write(ctx, doc, index)
	observe(opUpdate, started, err)
	return stored, err
}

func (c *Coordinator) write(ctx context.Context, doc core.Document, index string) (core.Document, error) {
	if doc.GUID == "" {
		return core.Document{}, fmt.Errorf("%w: document guid cannot be empty", core.ErrInvalidRequest)
	}
	index = core.ResolveIndex(c.indices, doc.SensorType, index)

	var opts core.WriteOptions
	if c.checkAndSet {
		expected := doc.Version
		opts.ExpectedVersion = &expected
	}

	stored, err := c.store.Write(ctx, doc, index, opts)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("write failed", "guid", doc.GUID, "sensor", doc.SensorType, "index", index, "error", err)
		}
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	if c.logger != nil {
		c.logger.Debug("document written", "guid", stored.GUID, "index", stored.Index, "version", stored.Version)
	}
	return stored, nil
}

// BatchUpdate writes every document independently. It returns exactly one
// result per request, in request order; a failed write never prevents the
// others. The returned error joins every per-document failure.
func (c *Coordinator) BatchUpdate(ctx context.Context, requests []core.UpdateRequest) ([]core.UpdateResult, error) {
	BatchSize.Observe(float64(len(requests)))
	results := make([]core.UpdateResult, len(requests))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, req := range requests {
		g.Go(func() error {
			stored, err := c.Update(ctx, req.Document, req.Index)
			results[i] = core.UpdateResult{Request: req, Document: stored, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Request.Document.GUID, res.Err))
		}
	}
	if c.logger != nil {
		c.logger.Debug("batch update finished", "documents", len(requests), "failed", len(errs))
	}
	return results, errors.Join(errs...)
}

// Patch retrieves the latest version of the patched document through
// retriever, applies the operations and writes the result back.
//
// A document that cannot be retrieved yields core.ErrOriginalNotFound; a
// retrieval transport failure stays a core.ErrIO. timestamp becomes the
// document timestamp; zero means now.
func (c *Coordinator) Patch(ctx context.Context, retriever core.Retriever, req core.PatchRequest, timestamp int64) (core.Document, error) {
	started := time.Now()
	stored, err := c.patch(ctx, retriever, req, timestamp)
	observe(opPatch, started, err)
	return stored, err
}

func (c *Coordinator) patch(ctx context.Context, retriever core.Retriever, req core.PatchRequest, timestamp int64) (core.Document, error) {
	if err := patch.Validate(req); err != nil {
		return core.Document{}, err
	}
	if retriever == nil {
		retriever = c.retriever
	}

	latest, err := c.original(ctx, retriever, req.GUID, req.SensorType, req.Index)
	if err != nil {
		return core.Document{}, err
	}

	next, err := patch.Apply(latest, req)
	if err != nil {
		return core.Document{}, err
	}
	next.Timestamp = c.timestamp(timestamp)

	return c.write(ctx, next, req.Index)
}

// AddCommentToAlert appends a comment to the alert's comment list.
func (c *Coordinator) AddCommentToAlert(ctx context.Context, req core.CommentRequest) (core.Document, error) {
	return c.AddCommentToAlertWithLatest(ctx, req, nil)
}

// AddCommentToAlertWithLatest appends a comment to latest, retrieving the
// alert first when latest is nil.
func (c *Coordinator) AddCommentToAlertWithLatest(ctx context.Context, req core.CommentRequest, latest *core.Document) (core.Document, error) {
	started := time.Now()
	stored, err := c.addComment(ctx, req, latest)
	observe(opAddComment, started, err)
	return stored, err
}

func (c *Coordinator) addComment(ctx context.Context, req core.CommentRequest, latest *core.Document) (core.Document, error) {
	base, list, err := c.commentBase(ctx, req, latest)
	if err != nil {
		return core.Document{}, err
	}

	next := base.Clone()
	if next.Fields == nil {
		next.Fields = core.Fields{}
	}
	element := req.Comment.ToWire(base.GUID)
	if raw, present := base.Fields[core.CommentsField]; present && raw != nil && len(list) == 0 {
		element[core.KeepListField] = true
	}
	next.Fields[core.CommentsField] = append(cloneList(list), element)
	next.Timestamp = c.timestamp(0)

	return c.write(ctx, next, req.Index)
}

// RemoveCommentFromAlert removes every comment of the alert matching the
// request's author, text and timestamp.
func (c *Coordinator) RemoveCommentFromAlert(ctx context.Context, req core.CommentRequest) (core.Document, error) {
	return c.RemoveCommentFromAlertWithLatest(ctx, req, nil)
}

// RemoveCommentFromAlertWithLatest removes matching comments from latest,
// retrieving the alert first when latest is nil. When nothing matches no write
// happens and the latest document is returned as is.
func (c *Coordinator) RemoveCommentFromAlertWithLatest(ctx context.Context, req core.CommentRequest, latest *core.Document) (core.Document, error) {
	started := time.Now()
	stored, err := c.removeComment(ctx, req, latest)
	observe(opRemoveComment, started, err)
	return stored, err
}

func (c *Coordinator) removeComment(ctx context.Context, req core.CommentRequest, latest *core.Document) (core.Document, error) {
	base, list, err := c.commentBase(ctx, req, latest)
	if err != nil {
		return core.Document{}, err
	}

	kept := make([]any, 0, len(list))
	keepList := false
	for _, e := range list {
		if existing, ok := core.ParseComment(e); ok && existing.Matches(req.Comment) {
			keepList = keepList || keepsList(e)
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == len(list) {
		if c.logger != nil {
			c.logger.Debug("comment not present, nothing to remove", "guid", base.GUID, "author", req.Comment.Author)
		}
		return base, nil
	}

	next := base.Clone()
	switch {
	case len(kept) == 0 && keepList:
		next.Fields[core.CommentsField] = []any{}
	case len(kept) == 0:
		delete(next.Fields, core.CommentsField)
	default:
		remaining := cloneList(kept)
		if keepList && !slices.ContainsFunc(remaining, keepsList) {
			if m, ok := remaining[0].(map[string]any); ok {
				m[core.KeepListField] = true
			}
		}
		next.Fields[core.CommentsField] = remaining
	}
	next.Timestamp = c.timestamp(0)

	return c.write(ctx, next, req.Index)
}

// commentBase returns the document a comment edit applies to and its current
// comment list.
func (c *Coordinator) commentBase(ctx context.Context, req core.CommentRequest, latest *core.Document) (core.Document, []any, error) {
	if req.GUID == "" {
		return core.Document{}, nil, fmt.Errorf("%w: comment request has no guid", core.ErrInvalidRequest)
	}

	var base core.Document
	if latest != nil {
		base = *latest
	} else {
		var err error
		base, err = c.original(ctx, c.retriever, req.GUID, req.SensorType, req.Index)
		if err != nil {
			return core.Document{}, nil, err
		}
	}

	raw, present := base.Fields[core.CommentsField]
	if !present || raw == nil {
		return base, nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return core.Document{}, nil, fmt.Errorf("%w: %s of %s is %T, not a list",
			core.ErrInvalidRequest, core.CommentsField, base.GUID, raw)
	}
	return base, list, nil
}

// original retrieves the document an edit is based on. A missing document is
// reported as core.ErrOriginalNotFound.
func (c *Coordinator) original(ctx context.Context, retriever core.Retriever, guid, sensorType, index string) (core.Document, error) {
	var (
		doc core.Document
		err error
	)
	if index == "" {
		doc, err = retriever.GetLatest(ctx, guid, sensorType)
	} else {
		doc, err = latestIn(ctx, retriever, core.GetRequest{GUID: guid, SensorType: sensorType, Index: index})
	}
	switch {
	case err == nil:
		return doc, nil
	case errors.Is(err, core.ErrNotFound):
		return core.Document{}, fmt.Errorf("%w: %s (%s)", core.ErrOriginalNotFound, guid, sensorType)
	default:
		return core.Document{}, core.IOFailure("retrieve", index, guid, err)
	}
}

// latestIn retrieves one document from an explicit index.
func latestIn(ctx context.Context, retriever core.Retriever, req core.GetRequest) (core.Document, error) {
	results, err := retriever.GetAllLatest(ctx, []core.GetRequest{req})
	if err != nil {
		return core.Document{}, err
	}
	if len(results) == 0 {
		return core.Document{}, fmt.Errorf("%s/%s: %w", req.Index, req.GUID, core.ErrNotFound)
	}
	return results[0].Document, nil
}

func (c *Coordinator) timestamp(ts int64) int64 {
	if ts != 0 {
		return ts
	}
	return c.now().UnixMilli()
}

func keepsList(element any) bool {
	m, ok := element.(map[string]any)
	if !ok {
		return false
	}
	keep, _ := m[core.KeepListField].(bool)
	return keep
}

func cloneList(list []any) []any {
	if list == nil {
		return nil
	}
	return core.CloneFields(core.Fields{"l": list})["l"].([]any)
}
