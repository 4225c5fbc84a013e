package core

// GetRequest identifies one document to retrieve.
type GetRequest struct {
	GUID       string `json:"guid" yaml:"guid"`
	SensorType string `json:"sensorType" yaml:"sensorType"`
	// Index overrides the index resolved from the sensor type when set.
	Index string `json:"index,omitempty" yaml:"index,omitempty"`
}

// GetResult pairs a request with the document it resolved to.
type GetResult struct {
	Request  GetRequest
	Document Document
}

// PatchOp is the kind of a field-level patch operation.
type PatchOp string

const (
	OpSet    PatchOp = "set"
	OpRemove PatchOp = "remove"
	OpAppend PatchOp = "append"
)

// PatchOperation is one field-level edit. Path is a JSON Pointer into the
// document fields (e.g. "/score" or "/threat/triage").
type PatchOperation struct {
	Op    PatchOp `json:"op" yaml:"op"`
	Path  string  `json:"path" yaml:"path"`
	Value any     `json:"value,omitempty" yaml:"value,omitempty"`
}

// PatchRequest describes a set of edits against the latest stored version of a document.
type PatchRequest struct {
	GUID       string           `json:"guid" yaml:"guid"`
	SensorType string           `json:"sensorType" yaml:"sensorType"`
	Index      string           `json:"index,omitempty" yaml:"index,omitempty"`
	Operations []PatchOperation `json:"patch" yaml:"patch"`
	// ExpectedVersion guards the patch: when set, the base document must carry
	// exactly this version.
	ExpectedVersion *int64 `json:"expectedVersion,omitempty" yaml:"expectedVersion,omitempty"`
}

// CommentRequest adds or removes a single comment on an alert.
type CommentRequest struct {
	GUID       string  `json:"guid" yaml:"guid"`
	SensorType string  `json:"sensorType" yaml:"sensorType"`
	Index      string  `json:"index,omitempty" yaml:"index,omitempty"`
	Comment    Comment `json:"comment" yaml:"comment"`
}

// UpdateRequest is one element of a batch update.
type UpdateRequest struct {
	Document Document
	// Index is the optional explicit target index.
	Index string
}

// UpdateResult reports the outcome of one batch element.
// Err is nil on success, in which case Document holds the stored version.
type UpdateResult struct {
	Request  UpdateRequest
	Document Document
	Err      error
}

// WriteOptions tunes a single store write.
type WriteOptions struct {
	// ExpectedVersion enables check-and-set: the write only succeeds when the
	// stored version equals it (0 means "must not exist yet").
	ExpectedVersion *int64
}

// SortField orders search results by one field.
type SortField struct {
	Field      string `json:"field" yaml:"field"`
	Descending bool   `json:"descending,omitempty" yaml:"descending,omitempty"`
}

// SearchRequest selects documents across indices.
type SearchRequest struct {
	Indices []string    `json:"indices" yaml:"indices"`
	Query   string      `json:"query" yaml:"query"`
	From    int         `json:"from" yaml:"from"`
	Size    int         `json:"size" yaml:"size"`
	Sort    []SortField `json:"sort,omitempty" yaml:"sort,omitempty"`
	// Fields projects the returned sources; empty returns every field.
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// SearchResult is one matching document.
type SearchResult struct {
	ID     string `json:"id"`
	Index  string `json:"index"`
	Source Fields `json:"source"`
}

// SearchResponse holds the requested page and the total match count.
type SearchResponse struct {
	Total   int            `json:"total"`
	Results []SearchResult `json:"results"`
}

// GroupRequest counts matching documents grouped by field values, nested in order.
type GroupRequest struct {
	Indices []string `json:"indices" yaml:"indices"`
	Query   string   `json:"query" yaml:"query"`
	Groups  []string `json:"groups" yaml:"groups"`
}

// GroupResult is one bucket of a grouping level.
type GroupResult struct {
	Key    string         `json:"key"`
	Total  int            `json:"total"`
	Groups *GroupResponse `json:"groups,omitempty"`
}

// GroupResponse is one grouping level.
type GroupResponse struct {
	GroupedBy string        `json:"groupedBy"`
	Results   []GroupResult `json:"groupResults"`
}
