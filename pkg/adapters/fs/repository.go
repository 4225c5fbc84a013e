// Package fs implements core.Store on the local filesystem.
//
// Every document is one file at <root>/<index>/<guid><ext>. Writes go through
// a temp file and a rename, so a crash never leaves a half-written document.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/alertidx/pkg/core"
)

// DefaultIndex is used when neither the caller nor the mapping names an index.
const DefaultIndex = "default"

// Config holds the configuration for the filesystem store.
type Config struct {
	Path string
	// MustExist fails Initialize when Path is missing instead of creating it.
	MustExist bool
	ReadOnly  bool
	// Format is the extension new documents are written with (".json" by default).
	Format       string
	DefaultIndex string
	Logger       *slog.Logger
}

// Repository implements core.Store and core.Scanner on a directory tree.
type Repository struct {
	Path        string
	config      Config
	serializers map[string]Serializer

	// writes serializes read-modify-write cycles so versions strictly increase.
	writes sync.Mutex
}

// NewRepository creates a filesystem-backed store. Call Initialize before use.
func NewRepository(config Config) *Repository {
	if config.Format == "" {
		config.Format = ".json"
	}
	if !strings.HasPrefix(config.Format, ".") {
		config.Format = "." + config.Format
	}
	if config.DefaultIndex == "" {
		config.DefaultIndex = DefaultIndex
	}
	return &Repository{
		Path:        config.Path,
		config:      config,
		serializers: DefaultSerializers(),
	}
}

// Initialize validates the configuration and prepares the root directory.
func (r *Repository) Initialize(ctx context.Context) error {
	if _, ok := r.serializers[r.config.Format]; !ok {
		return fmt.Errorf("%w: unsupported document format %q", core.ErrInvalidRequest, r.config.Format)
	}
	if r.config.MustExist || r.config.ReadOnly {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("store path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", r.Path)
		}
		return nil
	}
	if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

func (r *Repository) resolve(index string) string {
	if index == "" {
		return r.config.DefaultIndex
	}
	return index
}

// checkName rejects names that would escape the store directory.
func checkName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || isTempFile(name) {
		return fmt.Errorf("%w: %s %q cannot be used as a file name", core.ErrInvalidRequest, kind, name)
	}
	return nil
}

// locate returns the path of the stored document and its serializer.
func (r *Repository) locate(index, guid string) (string, Serializer, bool) {
	base := filepath.Join(r.Path, index, guid)
	exts := []string{r.config.Format}
	for ext := range r.serializers {
		if ext != r.config.Format {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts[1:])
	for _, ext := range exts {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext, r.serializers[ext], true
		}
	}
	return "", nil, false
}

func (r *Repository) read(path string, s Serializer, index string) (core.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Document{}, err
	}
	defer f.Close()
	doc, err := s.Parse(f)
	if err != nil {
		return core.Document{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	doc.Index = index
	return doc, nil
}

// Fetch implements core.Store.
func (r *Repository) Fetch(ctx context.Context, index, guid string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, core.IOFailure("fetch", index, guid, err)
	}
	index = r.resolve(index)
	if err := checkName("index", index); err != nil {
		return core.Document{}, err
	}
	if err := checkName("guid", guid); err != nil {
		return core.Document{}, err
	}

	path, s, found := r.locate(index, guid)
	if !found {
		return core.Document{}, fmt.Errorf("%s/%s: %w", index, guid, core.ErrNotFound)
	}
	doc, err := r.read(path, s, index)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Document{}, fmt.Errorf("%s/%s: %w", index, guid, core.ErrNotFound)
	}
	if err != nil {
		return core.Document{}, core.IOFailure("fetch", index, guid, err)
	}
	return doc, nil
}

// Write implements core.Store. A document stored in another format is
// rewritten in the configured one.
func (r *Repository) Write(ctx context.Context, doc core.Document, index string, opts core.WriteOptions) (core.Document, error) {
	if r.config.ReadOnly {
		return core.Document{}, core.ErrReadOnly
	}
	if err := checkName("guid", doc.GUID); err != nil {
		return core.Document{}, err
	}
	index = r.resolve(index)
	if err := checkName("index", index); err != nil {
		return core.Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}

	r.writes.Lock()
	defer r.writes.Unlock()

	var current int64
	oldPath, s, found := r.locate(index, doc.GUID)
	if found {
		prev, err := r.read(oldPath, s, index)
		if err != nil {
			return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
		}
		current = prev.Version
	}
	if err := core.CheckVersion(doc.GUID, current, opts); err != nil {
		return core.Document{}, err
	}

	next := doc.Clone()
	next.Version = current + 1
	next.Index = index
	data, err := r.serializers[r.config.Format].Serialize(next)
	if err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}

	dir := filepath.Join(r.Path, index)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	path := filepath.Join(dir, doc.GUID+r.config.Format)
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return core.Document{}, core.IOFailure("write", index, doc.GUID, err)
	}
	if found && oldPath != path {
		if err := os.Remove(oldPath); err != nil && r.config.Logger != nil {
			r.config.Logger.Warn("failed to remove stale document file", "path", oldPath, "error", err)
		}
	}
	if r.config.Logger != nil {
		r.config.Logger.Debug("document saved", "path", path, "version", next.Version)
	}

	// Read back through the serializer so callers see stored values.
	return r.read(path, r.serializers[r.config.Format], index)
}

// Scan implements core.Scanner. Documents are visited in file name order;
// files with unknown extensions are skipped.
func (r *Repository) Scan(ctx context.Context, index string, fn func(core.Document) bool) error {
	index = r.resolve(index)
	if err := checkName("index", index); err != nil {
		return err
	}
	entries, err := os.ReadDir(filepath.Join(r.Path, index))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return core.IOFailure("scan", index, "", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return core.IOFailure("scan", index, "", err)
		}
		name := entry.Name()
		if entry.IsDir() || isTempFile(name) {
			continue
		}
		s, ok := r.serializers[filepath.Ext(name)]
		if !ok {
			continue
		}
		doc, err := r.read(filepath.Join(r.Path, index, name), s, index)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return core.IOFailure("scan", index, strings.TrimSuffix(name, filepath.Ext(name)), err)
		}
		if !fn(doc) {
			return nil
		}
	}
	return nil
}

// Indices lists the index directories under the root.
func (r *Repository) Indices() ([]string, error) {
	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	slices.Sort(out)
	return out, nil
}
