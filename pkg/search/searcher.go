// Package search executes filter queries over stores that can enumerate an
// index. Queries are expr-lang boolean expressions evaluated per document.
//
// Every top-level field is a variable. Dotted names such as source.type are
// reached through the fields map: fields["source.type"] == "bro".
package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/aretw0/alertidx/pkg/core"
)

const (
	// MaxResults is the largest page a search may request.
	MaxResults = 10000
	// DefaultSize is used when a request leaves Size at zero.
	DefaultSize = 10
	// MissingKey buckets documents that lack a group field.
	MissingKey = "(missing)"
)

// Searcher implements core.Searcher over a core.Store.
type Searcher struct {
	store      core.Store
	logger     *slog.Logger
	maxResults int
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		s.logger = logger
	}
}

// WithMaxResults lowers or raises the page size limit.
func WithMaxResults(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// New creates a Searcher. Stores that do not implement core.Scanner are
// accepted, but every search on them fails with core.ErrUnsupported.
func New(store core.Store, opts ...Option) *Searcher {
	s := &Searcher{store: store, maxResults: MaxResults}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns one page of matching documents and the total match count.
func (s *Searcher) Search(ctx context.Context, req core.SearchRequest) (core.SearchResponse, error) {
	size := req.Size
	if size == 0 {
		size = DefaultSize
	}
	switch {
	case len(req.Indices) == 0:
		return core.SearchResponse{}, fmt.Errorf("%w: no indices to search", core.ErrInvalidRequest)
	case req.From < 0 || req.Size < 0:
		return core.SearchResponse{}, fmt.Errorf("%w: from and size must not be negative", core.ErrInvalidRequest)
	case size > s.maxResults:
		return core.SearchResponse{}, fmt.Errorf("%w: size %d exceeds the limit of %d", core.ErrInvalidRequest, size, s.maxResults)
	}
	for _, f := range req.Sort {
		if f.Field == "" {
			return core.SearchResponse{}, fmt.Errorf("%w: sort field cannot be empty", core.ErrInvalidRequest)
		}
	}
	program, err := compile(req.Query)
	if err != nil {
		return core.SearchResponse{}, err
	}

	matches, err := s.collect(ctx, req.Indices, program)
	if err != nil {
		return core.SearchResponse{}, err
	}
	if len(req.Sort) > 0 {
		sortDocuments(matches, req.Sort)
	}

	resp := core.SearchResponse{Total: len(matches), Results: []core.SearchResult{}}
	if req.From >= len(matches) {
		return resp, nil
	}
	end := min(req.From+size, len(matches))
	for _, doc := range matches[req.From:end] {
		resp.Results = append(resp.Results, core.SearchResult{
			ID:     doc.GUID,
			Index:  doc.Index,
			Source: project(doc, req.Fields),
		})
	}
	if s.logger != nil {
		s.logger.Debug("search executed", "indices", req.Indices, "total", resp.Total, "returned", len(resp.Results))
	}
	return resp, nil
}

// Group counts matching documents per value of each group field, nesting the
// levels in request order. Buckets are ordered by descending count, then key.
func (s *Searcher) Group(ctx context.Context, req core.GroupRequest) (core.GroupResponse, error) {
	switch {
	case len(req.Indices) == 0:
		return core.GroupResponse{}, fmt.Errorf("%w: no indices to group", core.ErrInvalidRequest)
	case len(req.Groups) == 0:
		return core.GroupResponse{}, fmt.Errorf("%w: at least one group field is required", core.ErrInvalidRequest)
	}
	for _, g := range req.Groups {
		if g == "" {
			return core.GroupResponse{}, fmt.Errorf("%w: group field cannot be empty", core.ErrInvalidRequest)
		}
	}
	program, err := compile(req.Query)
	if err != nil {
		return core.GroupResponse{}, err
	}

	matches, err := s.collect(ctx, req.Indices, program)
	if err != nil {
		return core.GroupResponse{}, err
	}
	return group(matches, req.Groups), nil
}

func compile(query string) (*vm.Program, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	program, err := expr.Compile(query, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: query %q: %v", core.ErrInvalidRequest, query, err)
	}
	return program, nil
}

func (s *Searcher) collect(ctx context.Context, indices []string, program *vm.Program) ([]core.Document, error) {
	scanner, ok := s.store.(core.Scanner)
	if !ok {
		return nil, fmt.Errorf("%w: %T cannot scan indices", core.ErrUnsupported, s.store)
	}

	var (
		matches []core.Document
		evalErr error
	)
	for _, index := range indices {
		err := scanner.Scan(ctx, index, func(doc core.Document) bool {
			ok, err := match(program, doc)
			if err != nil {
				evalErr = fmt.Errorf("%w: evaluating query on %s/%s: %v", core.ErrInvalidRequest, index, doc.GUID, err)
				return false
			}
			if ok {
				matches = append(matches, doc)
			}
			return true
		})
		if err != nil {
			return nil, core.IOFailure("scan", index, "", err)
		}
		if evalErr != nil {
			return nil, evalErr
		}
	}
	return matches, nil
}

func match(program *vm.Program, doc core.Document) (bool, error) {
	if program == nil {
		return true, nil
	}
	out, err := expr.Run(program, environment(doc))
	if err != nil {
		// Documents lacking a compared field do not match.
		return false, nil
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("query returned %T, not bool", out)
	}
	return b, nil
}

// environment exposes a document to the query: every field as a variable plus
// the flat wire form under "fields".
func environment(doc core.Document) map[string]any {
	flat := source(doc)
	env := make(map[string]any, len(flat)+1)
	for k, v := range flat {
		env[k] = v
	}
	env["fields"] = flat
	return env
}

// source is the flat wire form of a document without the store version.
func source(doc core.Document) core.Fields {
	out := make(core.Fields, len(doc.Fields)+3)
	for k, v := range doc.Fields {
		out[k] = v
	}
	out[core.GUIDField] = doc.GUID
	out[core.SensorTypeField] = doc.SensorType
	if doc.Timestamp != 0 {
		out[core.TimestampField] = float64(doc.Timestamp)
	}
	return out
}

func project(doc core.Document, fields []string) core.Fields {
	all := source(doc)
	if len(fields) == 0 {
		return core.CloneFields(all)
	}
	out := make(core.Fields, len(fields))
	for _, f := range fields {
		if v, ok := all[f]; ok {
			out[f] = v
		}
	}
	return core.CloneFields(out)
}

func sortDocuments(docs []core.Document, order []core.SortField) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := source(docs[i]), source(docs[j])
		for _, f := range order {
			c := compareValues(a[f.Field], b[f.Field])
			if c == 0 {
				continue
			}
			if f.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareValues orders missing values last, numbers before strings and
// everything else by its printed form.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		return cmp.Compare(ai, bi)
	}
	af, aNum := number(a)
	bf, bNum := number(b)
	switch {
	case aNum && bNum:
		return cmp.Compare(af, bf)
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func group(docs []core.Document, fields []string) core.GroupResponse {
	field := fields[0]
	buckets := make(map[string][]core.Document)
	for _, doc := range docs {
		key := MissingKey
		if v, ok := source(doc)[field]; ok && v != nil {
			key = fmt.Sprint(v)
		}
		buckets[key] = append(buckets[key], doc)
	}

	resp := core.GroupResponse{GroupedBy: field, Results: make([]core.GroupResult, 0, len(buckets))}
	for key, members := range buckets {
		res := core.GroupResult{Key: key, Total: len(members)}
		if len(fields) > 1 {
			nested := group(members, fields[1:])
			res.Groups = &nested
		}
		resp.Results = append(resp.Results, res)
	}
	sort.Slice(resp.Results, func(i, j int) bool {
		if resp.Results[i].Total != resp.Results[j].Total {
			return resp.Results[i].Total > resp.Results[j].Total
		}
		return resp.Results[i].Key < resp.Results[j].Key
	})
	return resp
}

var _ core.Searcher = (*Searcher)(nil)
