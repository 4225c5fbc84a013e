package dao_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/alertidx/pkg/adapters/memory"
	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/dao"
	"github.com/aretw0/alertidx/pkg/transport"
)

var mapped = dao.AccessConfig{
	Adapter: "memory",
	Indices: map[string]string{"bro": "bro_index", "snort*": "snort_index"},
}

func initialized(t *testing.T, cfg dao.AccessConfig, opts ...dao.Option) *dao.Dao {
	t.Helper()
	d := dao.New(opts...)
	require.NoError(t, d.EnsureInitialized(context.Background(), cfg))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestGetIndex(t *testing.T) {
	d := initialized(t, mapped)

	assert.Equal(t, "explicit", d.GetIndex("bro", "explicit"))
	assert.Equal(t, "bro_index", d.GetIndex("bro", ""))
	assert.Equal(t, "snort_index", d.GetIndex("snort_ids", ""))
	assert.Equal(t, "", d.GetIndex("yaf", ""))
}

func TestGetIndex_InjectedSupplier(t *testing.T) {
	d := initialized(t, mapped, dao.WithIndexSupplier(core.IndexSupplierFunc(func(string) string {
		return "everything"
	})))
	assert.Equal(t, "everything", d.GetIndex("bro", ""))
}

func TestNotInitialized(t *testing.T) {
	d := dao.New()
	ctx := context.Background()
	assert.False(t, d.Initialized())

	_, err := d.GetLatest(ctx, "g", "bro")
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	_, err = d.GetAllLatest(ctx, nil)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	_, err = d.Update(ctx, core.Document{GUID: "g"}, "")
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	_, err = d.BatchUpdate(ctx, nil)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	_, err = d.Patch(ctx, nil, core.PatchRequest{GUID: "g"}, 0)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	_, err = d.AddCommentToAlert(ctx, core.CommentRequest{GUID: "g"})
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	_, err = d.RemoveCommentFromAlert(ctx, core.CommentRequest{GUID: "g"})
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	_, err = d.Search(ctx, core.SearchRequest{Indices: []string{"x"}})
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	_, err = d.Group(ctx, core.GroupRequest{Indices: []string{"x"}, Groups: []string{"a"}})
	assert.ErrorIs(t, err, core.ErrNotInitialized)
}

func TestEnsureInitialized_Idempotent(t *testing.T) {
	store := memory.New()
	d := initialized(t, mapped, dao.WithStore(store))
	ctx := context.Background()

	_, err := d.Update(ctx, core.Document{GUID: "g1", SensorType: "bro"}, "")
	require.NoError(t, err)

	// A second call with another configuration changes nothing.
	require.NoError(t, d.EnsureInitialized(ctx, dao.AccessConfig{Adapter: "s3"}))
	assert.Equal(t, "bro_index", d.GetIndex("bro", ""))
	doc, err := d.GetLatest(ctx, "g1", "bro")
	require.NoError(t, err)
	assert.Equal(t, "bro_index", doc.Index)

	_, err = store.Fetch(ctx, "bro_index", "g1")
	assert.NoError(t, err, "the injected store is used")
}

func TestEnsureInitialized_FailureLeavesUninitialized(t *testing.T) {
	d := dao.New()
	err := d.EnsureInitialized(context.Background(), dao.AccessConfig{URI: "s3://bucket"})
	require.Error(t, err)
	assert.False(t, d.Initialized())

	require.NoError(t, d.EnsureInitialized(context.Background(), dao.AccessConfig{Adapter: "memory"}))
	assert.True(t, d.Initialized())
}

func TestEnsureInitialized_Kerberos(t *testing.T) {
	d := dao.New()
	err := d.EnsureInitialized(context.Background(), dao.AccessConfig{
		Adapter:  "memory",
		Kerberos: &transport.KerberosConfig{Principal: "alertidx"},
	})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
	assert.False(t, d.Initialized())

	dir := t.TempDir()
	d = initialized(t, dao.AccessConfig{
		Adapter: "memory",
		Kerberos: &transport.KerberosConfig{
			Krb5Conf:  filepath.Join(dir, "krb5.conf"),
			Keytab:    filepath.Join(dir, "svc.keytab"),
			Principal: "alertidx",
			Realm:     "EXAMPLE.COM",
		},
	})
	assert.True(t, slices.Contains(transport.Registered(), transport.KerberosName))
	assert.True(t, d.State().(dao.DaoState).Kerberos)
}

func TestDelegation(t *testing.T) {
	d := initialized(t, mapped)
	ctx := context.Background()

	results, err := d.BatchUpdate(ctx, []core.UpdateRequest{
		{Document: core.Document{GUID: "g1", SensorType: "bro", Fields: core.Fields{"score": 1}}},
		{Document: core.Document{GUID: "g2", SensorType: "snort", Fields: core.Fields{"score": 2}}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	patched, err := d.Patch(ctx, nil, core.PatchRequest{
		GUID: "g1", SensorType: "bro",
		Operations: []core.PatchOperation{{Op: core.OpSet, Path: "/status", Value: "OPEN"}},
	}, 10)
	require.NoError(t, err)
	assert.Equal(t, "OPEN", patched.Fields["status"])
	assert.Equal(t, int64(2), patched.Version)

	comment := core.Comment{Author: "ana", Text: "triaged", Timestamp: 5}
	withComment, err := d.AddCommentToAlert(ctx, core.CommentRequest{GUID: "g1", SensorType: "bro", Comment: comment})
	require.NoError(t, err)
	assert.Equal(t, []core.Comment{comment}, withComment.Comments())

	without, err := d.RemoveCommentFromAlertWithLatest(ctx, core.CommentRequest{GUID: "g1", SensorType: "bro", Comment: comment}, &withComment)
	require.NoError(t, err)
	assert.Empty(t, without.Comments())

	all, err := d.GetAllLatest(ctx, []core.GetRequest{
		{GUID: "g1", SensorType: "bro"},
		{GUID: "g2", SensorType: "snort"},
		{GUID: "g3", SensorType: "bro"},
	})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	resp, err := d.Search(ctx, core.SearchRequest{Indices: []string{"bro_index", "snort_index"}, Query: "score > 1"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "g2", resp.Results[0].ID)

	groups, err := d.Group(ctx, core.GroupRequest{Indices: []string{"bro_index", "snort_index"}, Groups: []string{"source.type"}})
	require.NoError(t, err)
	assert.Len(t, groups.Results, 2)
}

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := initialized(t, dao.AccessConfig{Adapter: "memory"}, dao.WithRegisterer(reg))

	_, err := d.Update(context.Background(), core.Document{GUID: "g1"}, "")
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
		assert.NotEmpty(t, f.GetHelp(), "%s has no help text", f.GetName())
	}
	assert.Contains(t, names, "alertidx_update_operations_total")
	assert.Contains(t, names, "alertidx_update_duration_seconds")
	assert.Contains(t, names, "alertidx_update_batch_size")

	// Registering twice on the same registry is tolerated.
	initialized(t, dao.AccessConfig{Adapter: "memory"}, dao.WithRegisterer(reg))
}

func TestMappingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indices:\n  bro: from_file\n"), 0644))

	d := initialized(t, dao.AccessConfig{Adapter: "memory", MappingFile: path, Indices: map[string]string{"bro": "ignored"}})
	assert.Equal(t, "from_file", d.GetIndex("bro", ""))

	state := d.State().(dao.DaoState)
	assert.True(t, state.Initialized)
	assert.NotNil(t, state.Mapping)
	assert.Equal(t, "index-dao", d.ComponentType())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alertidx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
adapter: http
uri: https://index.example:8983
timeout: 5s
check_and_set: true
concurrency: 4
indices:
  bro: bro_index
kerberos:
  krb5_conf: /etc/krb5.conf
  keytab: /etc/alertidx.keytab
  principal: alertidx
  realm: EXAMPLE.COM
`), 0644))

	cfg, err := dao.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http", cfg.Adapter)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.CheckAndSet)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "bro_index", cfg.Indices["bro"])
	require.True(t, cfg.KerberosEnabled())
	assert.Equal(t, "EXAMPLE.COM", cfg.Kerberos.Realm)

	require.NoError(t, os.WriteFile(path, []byte("adapter: [oops"), 0644))
	_, err = dao.LoadConfig(path)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}
