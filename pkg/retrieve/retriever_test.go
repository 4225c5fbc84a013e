package retrieve_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/alertidx/pkg/adapters/memory"
	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/retrieve"
)

var sensorIndices = core.IndexSupplierFunc(func(sensor string) string {
	switch sensor {
	case "bro":
		return "bro_index"
	case "snort":
		return "snort_index"
	}
	return ""
})

// brokenStore fails every fetch for the configured guid with a transport error.
type brokenStore struct {
	core.Store
	guid string
}

func (b brokenStore) Fetch(ctx context.Context, index, guid string) (core.Document, error) {
	if guid == b.guid {
		return core.Document{}, errors.New("connection refused")
	}
	return b.Store.Fetch(ctx, index, guid)
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	docs := []struct {
		doc   core.Document
		index string
	}{
		{core.Document{GUID: "b1", SensorType: "bro", Fields: core.Fields{"n": 1}}, "bro_index"},
		{core.Document{GUID: "b2", SensorType: "bro", Fields: core.Fields{"n": 2}}, "bro_index"},
		{core.Document{GUID: "s1", SensorType: "snort"}, "snort_index"},
		{core.Document{GUID: "y1", SensorType: "yaf"}, memory.DefaultIndex},
	}
	for _, d := range docs {
		_, err := store.Write(ctx, d.doc, d.index, core.WriteOptions{})
		require.NoError(t, err)
	}
	return store
}

func TestGetLatest(t *testing.T) {
	r := retrieve.New(seed(t), sensorIndices)
	ctx := context.Background()

	doc, err := r.GetLatest(ctx, "b1", "bro")
	require.NoError(t, err)
	assert.Equal(t, "bro_index", doc.Index)
	assert.Equal(t, int64(1), doc.Version)
	assert.Equal(t, float64(1), doc.Fields["n"])

	// Unmapped sensors use the backend default index.
	doc, err = r.GetLatest(ctx, "y1", "yaf")
	require.NoError(t, err)
	assert.Equal(t, memory.DefaultIndex, doc.Index)
}

func TestGetLatest_NotFound(t *testing.T) {
	r := retrieve.New(seed(t), sensorIndices)
	ctx := context.Background()

	_, err := r.GetLatest(ctx, "missing", "bro")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	// Same guid under the wrong sensor type does not resolve.
	_, err = r.GetLatest(ctx, "s1", "bro")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestGetLatest_TransportFailure(t *testing.T) {
	r := retrieve.New(brokenStore{Store: seed(t), guid: "b1"}, sensorIndices)

	_, err := r.GetLatest(context.Background(), "b1", "bro")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrIO))
	assert.False(t, errors.Is(err, core.ErrNotFound))
}

func TestGetAllLatest_OmitsMisses(t *testing.T) {
	r := retrieve.New(seed(t), sensorIndices, retrieve.WithConcurrency(2))

	requests := []core.GetRequest{
		{GUID: "b1", SensorType: "bro"},
		{GUID: "nope", SensorType: "bro"},
		{GUID: "s1", SensorType: "snort"},
		{GUID: "b2", SensorType: "bro"},
		{GUID: "s1", SensorType: "bro"},
	}
	results, err := r.GetAllLatest(context.Background(), requests)
	require.NoError(t, err)

	var guids []string
	for _, res := range results {
		guids = append(guids, res.Document.GUID)
		assert.Equal(t, res.Request.GUID, res.Document.GUID)
	}
	assert.Equal(t, []string{"b1", "s1", "b2"}, guids, "results keep request order")

	missing := retrieve.Missing(requests, results)
	assert.Equal(t, []core.GetRequest{
		{GUID: "nope", SensorType: "bro"},
		{GUID: "s1", SensorType: "bro"},
	}, missing)
}

func TestGetAllLatest_ExplicitIndex(t *testing.T) {
	r := retrieve.New(seed(t), nil)

	results, err := r.GetAllLatest(context.Background(), []core.GetRequest{
		{GUID: "b1", SensorType: "bro", Index: "bro_index"},
		{GUID: "b1", SensorType: "bro"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bro_index", results[0].Document.Index)
}

func TestGetAllLatest_TransportFailureAborts(t *testing.T) {
	r := retrieve.New(brokenStore{Store: seed(t), guid: "b2"}, sensorIndices)

	_, err := r.GetAllLatest(context.Background(), []core.GetRequest{
		{GUID: "b1", SensorType: "bro"},
		{GUID: "b2", SensorType: "bro"},
	})
	assert.True(t, errors.Is(err, core.ErrIO), "got %v", err)
}
