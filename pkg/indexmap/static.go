// Package indexmap resolves sensor types to index names.
//
// Keys are either exact sensor names or doublestar glob patterns such as
// "bro*" or "{snort,suricata}". Exact names win; among patterns the one with
// the most literal characters wins.
package indexmap

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/alertidx/pkg/core"
)

// File is the on-disk mapping format.
type File struct {
	// Default is returned for sensors no key matches. Empty means backend default.
	Default string            `yaml:"default,omitempty"`
	Indices map[string]string `yaml:"indices"`
}

type rule struct {
	pattern string
	index   string
}

// Static is an immutable sensor to index mapping.
type Static struct {
	exact    map[string]string
	patterns []rule
	fallback string
}

// New builds a mapping from key to index name.
func New(indices map[string]string) (*Static, error) {
	return FromFile(File{Indices: indices})
}

// FromFile builds a mapping from its decoded file form.
func FromFile(f File) (*Static, error) {
	s := &Static{exact: make(map[string]string), fallback: f.Default}
	for key, index := range f.Indices {
		if key == "" {
			return nil, fmt.Errorf("%w: empty sensor key", core.ErrInvalidRequest)
		}
		if !isPattern(key) {
			s.exact[key] = index
			continue
		}
		if !doublestar.ValidatePattern(key) {
			return nil, fmt.Errorf("%w: bad sensor pattern %q", core.ErrInvalidRequest, key)
		}
		s.patterns = append(s.patterns, rule{pattern: key, index: index})
	}
	sort.Slice(s.patterns, func(i, j int) bool {
		a, b := literalLen(s.patterns[i].pattern), literalLen(s.patterns[j].pattern)
		if a != b {
			return a > b
		}
		return s.patterns[i].pattern < s.patterns[j].pattern
	})
	return s, nil
}

// Parse decodes a YAML mapping document.
func Parse(data []byte) (*Static, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: mapping: %v", core.ErrInvalidRequest, err)
	}
	return FromFile(f)
}

// Load reads a YAML mapping file.
func Load(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping %s: %w", path, err)
	}
	return Parse(data)
}

// IndexFor implements core.IndexSupplier.
func (s *Static) IndexFor(sensorType string) string {
	if s == nil {
		return ""
	}
	if index, ok := s.exact[sensorType]; ok {
		return index
	}
	for _, r := range s.patterns {
		if ok, _ := doublestar.Match(r.pattern, sensorType); ok {
			return r.index
		}
	}
	return s.fallback
}

// Len returns the number of keys.
func (s *Static) Len() int {
	if s == nil {
		return 0
	}
	return len(s.exact) + len(s.patterns)
}

func isPattern(key string) bool {
	return strings.ContainsAny(key, "*?[{")
}

func literalLen(pattern string) int {
	n := 0
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', ']', '{', '}', ',':
		default:
			n++
		}
	}
	return n
}

var _ core.IndexSupplier = (*Static)(nil)
