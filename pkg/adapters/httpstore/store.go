// Package httpstore implements core.Store against a remote document index
// speaking JSON over HTTP:
//
//	GET {base}/{index}/_doc/{guid}   200 document, 404 missing
//	PUT {base}/{index}/_doc/{guid}   200/201 stored document, 409 version conflict
//
// Check-and-set writes send the expected version in If-Match. Stored versions
// are echoed in the ETag header.
package httpstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/transport"
)

const (
	// DefaultIndex is used when neither the caller nor the mapping names an index.
	DefaultIndex = "default"
	// DefaultTimeout bounds every request of clients built by New.
	DefaultTimeout = 30 * time.Second
	// maxBody caps error bodies echoed into error messages.
	maxBody = 512
)

// Store is a remote document store client. It is safe for concurrent use.
type Store struct {
	base         *url.URL
	client       *http.Client
	timeout      time.Duration
	defaultIndex string
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient uses c instead of a client from transport.NewClient.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		s.client = c
	}
}

// WithTimeout sets the timeout of the client built by New.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDefaultIndex overrides the backend default index.
func WithDefaultIndex(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.defaultIndex = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a client for the index service at baseURL. Unless an HTTP client
// is supplied, one is built through transport.NewClient so registered
// configurers such as Kerberos apply.
func New(baseURL string, opts ...Option) (*Store, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", core.ErrInvalidRequest, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: base url %q must be http or https", core.ErrInvalidRequest, baseURL)
	}
	s := &Store{base: base, timeout: DefaultTimeout, defaultIndex: DefaultIndex}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client, err = transport.NewClient(s.timeout)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) resolve(index string) string {
	if index == "" {
		return s.defaultIndex
	}
	return index
}

func (s *Store) docURL(index, guid string) string {
	return s.base.String() + "/" + url.PathEscape(index) + "/_doc/" + url.PathEscape(guid)
}

// Fetch implements core.Store.
func (s *Store) Fetch(ctx context.Context, index, guid string) (core.Document, error) {
	index = s.resolve(index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.docURL(index, guid), nil)
	if err != nil {
		return core.Document{}, core.IOFailure("fetch", index, guid, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return core.Document{}, core.IOFailure("fetch", index, guid, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return s.decode(resp, "fetch", index, guid)
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return core.Document{}, fmt.Errorf("%s/%s: %w", index, guid, core.ErrNotFound)
	default:
		return core.Document{}, s.statusError(resp, "fetch", index, guid)
	}
}

// Write implements core.Store.
func (s *Store) Write(ctx context.Context, doc core.Document, index string, opts core.WriteOptions) (core.Document, error) {
	if doc.GUID == "" {
		return core.Document{}, fmt.Errorf("%w: document has no guid", core.ErrInvalidRequest)
	}
	index = s.resolve(index)
	body, err := core.MarshalDocument(doc)
	if err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.docURL(index, doc.GUID), bytes.NewReader(body))
	if err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if opts.ExpectedVersion != nil {
		req.Header.Set("If-Match", strconv.FormatInt(*opts.ExpectedVersion, 10))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return s.decode(resp, "write", index, doc.GUID)
	case http.StatusConflict:
		_, _ = io.Copy(io.Discard, resp.Body)
		conflict := &core.ConflictError{GUID: doc.GUID, Current: versionHeader(resp)}
		if opts.ExpectedVersion != nil {
			conflict.Expected = *opts.ExpectedVersion
		}
		return core.Document{}, conflict
	case http.StatusForbidden, http.StatusMethodNotAllowed:
		_, _ = io.Copy(io.Discard, resp.Body)
		return core.Document{}, fmt.Errorf("%s/%s: %w", index, doc.GUID, core.ErrReadOnly)
	default:
		return core.Document{}, s.statusError(resp, "write", index, doc.GUID)
	}
}

func (s *Store) decode(resp *http.Response, op, index, guid string) (core.Document, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Document{}, core.IOFailure(op, index, guid, err)
	}
	doc, err := core.UnmarshalDocument(data)
	if err != nil {
		return core.Document{}, core.IOFailure(op, index, guid, err)
	}
	doc.Index = index
	return doc, nil
}

func (s *Store) statusError(resp *http.Response, op, index, guid string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	err := fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	if s.logger != nil {
		s.logger.Warn("index service error", "op", op, "index", index, "guid", guid, "status", resp.StatusCode)
	}
	return core.IOFailure(op, index, guid, err)
}

func versionHeader(resp *http.Response) int64 {
	v, err := strconv.ParseInt(strings.Trim(resp.Header.Get("ETag"), `"W/`), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	return map[string]any{
		"base_url":      s.base.String(),
		"default_index": s.defaultIndex,
		"timeout":       s.client.Timeout.String(),
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "http-store"
}
