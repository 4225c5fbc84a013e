package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// MarshalDocument encodes a document in its wire form: a flat JSON object with
// the distinguished fields next to the regular ones.
func MarshalDocument(doc Document) ([]byte, error) {
	return json.Marshal(ToWire(doc))
}

// ToWire returns the flat wire payload of a document.
func ToWire(doc Document) map[string]any {
	payload := make(map[string]any, len(doc.Fields)+4)
	for k, v := range doc.Fields {
		payload[k] = v
	}
	payload[GUIDField] = doc.GUID
	payload[SensorTypeField] = doc.SensorType
	payload[VersionField] = doc.Version
	if doc.Timestamp != 0 {
		payload[TimestampField] = doc.Timestamp
	}
	return payload
}

// UnmarshalDocument decodes the wire form produced by MarshalDocument.
func UnmarshalDocument(data []byte) (Document, error) {
	var payload map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return Document{}, fmt.Errorf("invalid document: %w", err)
	}
	return FromWire(payload)
}

// FromWire builds a Document from a decoded wire payload. Distinguished fields
// are lifted out and the remaining values are normalized to JSON-native types.
func FromWire(payload map[string]any) (Document, error) {
	doc := Document{Fields: make(Fields, len(payload))}
	for k, v := range payload {
		switch k {
		case GUIDField:
			s, ok := v.(string)
			if !ok {
				return Document{}, fmt.Errorf("invalid document: %s is %T", GUIDField, v)
			}
			doc.GUID = s
		case SensorTypeField:
			s, _ := v.(string)
			doc.SensorType = s
		case VersionField:
			n, err := toInt64(v)
			if err != nil {
				return Document{}, fmt.Errorf("invalid document: %s: %w", VersionField, err)
			}
			doc.Version = n
		case TimestampField:
			n, err := toInt64(v)
			if err != nil {
				// not ours: keep the caller's value as a regular field
				doc.Fields[k] = Normalize(v)
				continue
			}
			doc.Timestamp = n
		default:
			doc.Fields[k] = Normalize(v)
		}
	}
	return doc, nil
}

// maxExactFloat is the largest magnitude below which every integer has an
// exact float64 representation.
const maxExactFloat = 1 << 53

// Normalize converts a decoded value to JSON-native types: maps become
// map[string]any and lists []any. Numbers become float64, except integers too
// large for an exact float64, which stay int64.
func Normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return integer(n)
		}
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case int:
		return integer(int64(t))
	case int32:
		return float64(t)
	case int64:
		return integer(t)
	case uint64:
		if t > math.MaxInt64 {
			return float64(t)
		}
		return integer(int64(t))
	case float32:
		return float64(t)
	case Fields:
		return Normalize(map[string]any(t))
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = Normalize(e)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = Normalize(e)
		}
		return m
	case []any:
		l := make([]any, len(t))
		for i, e := range t {
			l[i] = Normalize(e)
		}
		return l
	case []string:
		l := make([]any, len(t))
		for i, e := range t {
			l[i] = e
		}
		return l
	default:
		return v
	}
}

func integer(n int64) any {
	if n > maxExactFloat || n < -maxExactFloat {
		return n
	}
	return float64(n)
}

// NormalizeFields applies Normalize to every value of f.
func NormalizeFields(f Fields) Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = Normalize(v)
	}
	return out
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Int64()
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("non-integer value %v", t)
		}
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case uint64:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
