package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/alertidx/pkg/core"
)

// Serializer defines how documents are stored in one file format.
type Serializer interface {
	// Parse reads one stored document.
	Parse(r io.Reader) (core.Document, error)
	// Serialize encodes the document with its distinguished fields.
	Serialize(doc core.Document) ([]byte, error)
}

// DefaultSerializers returns the supported formats keyed by file extension.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		".json": JSONSerializer{},
		".yaml": YAMLSerializer{},
		".yml":  YAMLSerializer{},
	}
}

// JSONSerializer stores documents as indented JSON objects.
type JSONSerializer struct{}

func (JSONSerializer) Parse(r io.Reader) (core.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Document{}, err
	}
	return core.UnmarshalDocument(data)
}

func (JSONSerializer) Serialize(doc core.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(core.ToWire(doc)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// YAMLSerializer stores documents as YAML mappings. Values read back are
// normalized to the same JSON-native types the JSON format yields.
type YAMLSerializer struct{}

func (YAMLSerializer) Parse(r io.Reader) (core.Document, error) {
	var payload map[string]any
	if err := yaml.NewDecoder(r).Decode(&payload); err != nil {
		return core.Document{}, fmt.Errorf("invalid yaml: %w", err)
	}
	return core.FromWire(payload)
}

func (YAMLSerializer) Serialize(doc core.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(core.ToWire(doc)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
