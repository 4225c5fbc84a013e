// Package core holds the document model, the error taxonomy and the collaborator
// contracts shared by every alertidx component.
package core

// Distinguished field names. They must match the backend schema exactly.
const (
	GUIDField       = "guid"
	SensorTypeField = "source.type"
	VersionField    = "_version_"
	RootField       = "_root_"
	TimestampField  = "timestamp"
	CommentsField   = "comments"
)

// KeepListField flags the comment element that was added to a present but
// empty comment list. Removing the last comment keeps an empty list when it
// is set and drops the field otherwise.
const KeepListField = "_keep_list_"

// Fields represents the flexible key-value pairs of a document.
// Values are JSON-native: string, float64, bool, nil, map[string]any or []any.
// Integers beyond the exact float64 range are kept as int64.
type Fields map[string]any

// Document is the central entity of the domain.
// It represents one alert or event record stored in a backend index.
type Document struct {
	GUID       string
	SensorType string
	// Version is assigned by the store on every successful write. Zero means the
	// document has never been stored.
	Version int64
	// Timestamp is the last update time in epoch milliseconds.
	Timestamp int64
	// Index is the index the document was read from or written to. Not serialized.
	Index  string
	Fields Fields
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	out.Fields = CloneFields(d.Fields)
	return out
}

// CloneFields deep-copies a field map, descending into nested maps and lists.
func CloneFields(f Fields) Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Fields:
		return map[string]any(CloneFields(t))
	case map[string]any:
		return map[string]any(CloneFields(t))
	case []any:
		l := make([]any, len(t))
		for i, e := range t {
			l[i] = cloneValue(e)
		}
		return l
	default:
		return v
	}
}

// Comment is a note attached to an alert. It lives as an element of the
// CommentsField list of exactly one document.
type Comment struct {
	Author    string `json:"author" yaml:"author"`
	Text      string `json:"comment" yaml:"comment"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

// Matches reports whether two comments have the same author, text and timestamp.
func (c Comment) Matches(other Comment) bool {
	return c.Author == other.Author && c.Text == other.Text && c.Timestamp == other.Timestamp
}
