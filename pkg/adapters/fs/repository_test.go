package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/alertidx/pkg/adapters/fs"
	"github.com/aretw0/alertidx/pkg/core"
)

func newRepo(t *testing.T, cfg fs.Config) *fs.Repository {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = t.TempDir()
	}
	repo := fs.NewRepository(cfg)
	require.NoError(t, repo.Initialize(context.Background()))
	return repo
}

func sample() core.Document {
	return core.Document{
		GUID:       "g1",
		SensorType: "bro",
		Timestamp:  1700000000000,
		Fields: core.Fields{
			"ip_src_addr": "10.0.0.1",
			"score":       float64(12),
			"threat":      map[string]any{"level": float64(3)},
			"tags":        []any{"dns", "c2"},
		},
	}
}

func TestRepository_RoundTripFormats(t *testing.T) {
	for _, format := range []string{".json", ".yaml", "yml"} {
		t.Run(format, func(t *testing.T) {
			repo := newRepo(t, fs.Config{Format: format})
			ctx := context.Background()

			stored, err := repo.Write(ctx, sample(), "bro_index", core.WriteOptions{})
			require.NoError(t, err)
			assert.Equal(t, int64(1), stored.Version)

			got, err := repo.Fetch(ctx, "bro_index", "g1")
			require.NoError(t, err)

			want := sample()
			want.Version = 1
			want.Index = "bro_index"
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRepository_Layout(t *testing.T) {
	root := t.TempDir()
	repo := newRepo(t, fs.Config{Path: root})
	ctx := context.Background()

	_, err := repo.Write(ctx, sample(), "", core.WriteOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, fs.DefaultIndex, "g1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source.type": "bro"`)
	assert.Contains(t, string(data), `"_version_": 1`)

	indices, err := repo.Indices()
	require.NoError(t, err)
	assert.Equal(t, []string{fs.DefaultIndex}, indices)
}

func TestRepository_FormatMigration(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	yamlRepo := newRepo(t, fs.Config{Path: root, Format: ".yaml"})
	_, err := yamlRepo.Write(ctx, sample(), "idx", core.WriteOptions{})
	require.NoError(t, err)

	jsonRepo := newRepo(t, fs.Config{Path: root})
	got, err := jsonRepo.Fetch(ctx, "idx", "g1")
	require.NoError(t, err, "documents in other formats are still readable")

	stored, err := jsonRepo.Write(ctx, got, "idx", core.WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	_, err = os.Stat(filepath.Join(root, "idx", "g1.yaml"))
	assert.True(t, os.IsNotExist(err), "stale yaml file is removed")
}

func TestRepository_NotFoundAndNames(t *testing.T) {
	repo := newRepo(t, fs.Config{})
	ctx := context.Background()

	_, err := repo.Fetch(ctx, "bro_index", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	for _, guid := range []string{"../escape", "a/b", "", ".."} {
		_, err := repo.Write(ctx, core.Document{GUID: guid}, "idx", core.WriteOptions{})
		assert.ErrorIs(t, err, core.ErrInvalidRequest, guid)
	}
	_, err = repo.Write(ctx, core.Document{GUID: "ok"}, "../up", core.WriteOptions{})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestRepository_CheckAndSet(t *testing.T) {
	repo := newRepo(t, fs.Config{})
	ctx := context.Background()

	first, err := repo.Write(ctx, sample(), "idx", core.WriteOptions{})
	require.NoError(t, err)

	v := first.Version
	_, err = repo.Write(ctx, first, "idx", core.WriteOptions{ExpectedVersion: &v})
	require.NoError(t, err)

	_, err = repo.Write(ctx, first, "idx", core.WriteOptions{ExpectedVersion: &v})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestRepository_ReadOnly(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	_, err := newRepo(t, fs.Config{Path: root}).Write(ctx, sample(), "idx", core.WriteOptions{})
	require.NoError(t, err)

	ro := newRepo(t, fs.Config{Path: root, ReadOnly: true})
	_, err = ro.Fetch(ctx, "idx", "g1")
	assert.NoError(t, err)
	_, err = ro.Write(ctx, sample(), "idx", core.WriteOptions{})
	assert.ErrorIs(t, err, core.ErrReadOnly)

	missing := fs.NewRepository(fs.Config{Path: filepath.Join(root, "nope"), MustExist: true})
	assert.Error(t, missing.Initialize(ctx))

	bad := fs.NewRepository(fs.Config{Path: root, Format: ".csv"})
	assert.ErrorIs(t, bad.Initialize(ctx), core.ErrInvalidRequest)
}

func TestRepository_Scan(t *testing.T) {
	root := t.TempDir()
	repo := newRepo(t, fs.Config{Path: root})
	ctx := context.Background()

	for _, guid := range []string{"c", "a", "b"} {
		doc := sample()
		doc.GUID = guid
		_, err := repo.Write(ctx, doc, "idx", core.WriteOptions{})
		require.NoError(t, err)
	}
	// Noise the scan must ignore.
	require.NoError(t, os.WriteFile(filepath.Join(root, "idx", "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "idx", fs.TempFilePrefix+"123"), []byte("{"), 0644))

	var guids []string
	require.NoError(t, repo.Scan(ctx, "idx", func(d core.Document) bool {
		guids = append(guids, d.GUID)
		return true
	}))
	assert.Equal(t, []string{"a", "b", "c"}, guids)

	require.NoError(t, repo.Scan(ctx, "empty", func(core.Document) bool {
		t.Fatal("no documents expected")
		return false
	}))
}

func TestRepository_State(t *testing.T) {
	repo := newRepo(t, fs.Config{Format: "yaml"})
	state := repo.State().(fs.RepositoryState)
	assert.Equal(t, ".yaml", state.Format)
	assert.Equal(t, []string{".json", ".yaml", ".yml"}, state.Serializers)
	assert.True(t, strings.HasSuffix(repo.ComponentType(), "store"))
}
