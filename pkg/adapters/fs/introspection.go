package fs

import (
	"slices"

	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path         string   `json:"path"`
	ReadOnly     bool     `json:"read_only"`
	Format       string   `json:"format"`
	DefaultIndex string   `json:"default_index"`
	Serializers  []string `json:"serializers"`
	Indices      []string `json:"indices,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	serializers := make([]string, 0, len(r.serializers))
	for ext := range r.serializers {
		serializers = append(serializers, ext)
	}
	slices.Sort(serializers)

	indices, _ := r.Indices()
	return RepositoryState{
		Path:         r.Path,
		ReadOnly:     r.config.ReadOnly,
		Format:       r.config.Format,
		DefaultIndex: r.config.DefaultIndex,
		Serializers:  serializers,
		Indices:      indices,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "fs-store"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)
