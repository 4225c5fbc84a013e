package core

import "context"

// Store is the backend document store client.
// Adhering to this interface keeps the access layer independent of the
// underlying engine (embedded KV, filesystem, remote search cluster).
//
// An empty index means "use the backend default index".
// Implementations must be safe for concurrent use.
type Store interface {
	// Fetch returns the full stored document or ErrNotFound.
	Fetch(ctx context.Context, index, guid string) (Document, error)

	// Write replaces the whole document and returns it with its new version.
	Write(ctx context.Context, doc Document, index string, opts WriteOptions) (Document, error)
}

// Scanner is implemented by stores that can enumerate an index.
type Scanner interface {
	// Scan calls fn for every document in index until fn returns false.
	Scan(ctx context.Context, index string, fn func(Document) bool) error
}

// Closer is implemented by stores holding resources.
type Closer interface {
	Close() error
}

// Retriever returns the most recent stored version of documents.
type Retriever interface {
	GetLatest(ctx context.Context, guid, sensorType string) (Document, error)
	GetAllLatest(ctx context.Context, requests []GetRequest) ([]GetResult, error)
}

// Searcher executes search and group requests.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	Group(ctx context.Context, req GroupRequest) (GroupResponse, error)
}

// IndexSupplier maps a sensor type to its index name. An empty result means
// the sensor is unmapped and the backend default applies.
type IndexSupplier interface {
	IndexFor(sensorType string) string
}

// IndexSupplierFunc adapts a function to IndexSupplier.
type IndexSupplierFunc func(sensorType string) string

// IndexFor implements IndexSupplier.
func (f IndexSupplierFunc) IndexFor(sensorType string) string { return f(sensorType) }

// ResolveIndex returns explicit when set, otherwise the supplier's mapping for
// sensorType (empty when unmapped or when supplier is nil).
func ResolveIndex(supplier IndexSupplier, sensorType, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if supplier == nil {
		return ""
	}
	return supplier.IndexFor(sensorType)
}
