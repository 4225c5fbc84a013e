package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/patch"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(3), parseValue("3"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "ESCALATE", parseValue("ESCALATE"))
	assert.Equal(t, "quoted", parseValue(`"quoted"`))
	assert.Equal(t, []any{"a", "b"}, parseValue(`["a","b"]`))
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, []core.SortField{
		{Field: "score", Descending: true},
		{Field: "guid"},
		{Field: "timestamp"},
	}, parseSort([]string{"score:desc", "guid", "timestamp:asc"}))
}

func TestBuildPatch(t *testing.T) {
	patchSensor, patchIndex = "bro", ""
	t.Cleanup(func() { patchEdits = nil })

	require.NoError(t, patchCmd.ParseFlags([]string{
		"--append", `/tags="c2"`,
		"--set", "/status=ESCALATE",
		"--remove", "/owner",
		"--set", "/score=90",
	}))
	req, err := buildPatch("g1")
	require.NoError(t, err)
	assert.Equal(t, []core.PatchOperation{
		{Op: core.OpAppend, Path: "/tags", Value: "c2"},
		{Op: core.OpSet, Path: "/status", Value: "ESCALATE"},
		{Op: core.OpRemove, Path: "/owner"},
		{Op: core.OpSet, Path: "/score", Value: float64(90)},
	}, req.Operations)

	patchEdits = []patchEdit{{op: core.OpSet, raw: "no-equals"}}
	_, err = buildPatch("g1")
	assert.Error(t, err)
}

func TestBuildPatch_RemoveThenSetKeepsOrder(t *testing.T) {
	patchSensor, patchIndex = "bro", ""
	t.Cleanup(func() { patchEdits = nil })

	require.NoError(t, patchCmd.ParseFlags([]string{"--remove", "/owner", "--set", "/owner=soc"}))
	req, err := buildPatch("g1")
	require.NoError(t, err)

	patched, err := patch.Apply(core.Document{GUID: "g1", SensorType: "bro", Fields: core.Fields{"owner": "ana"}}, req)
	require.NoError(t, err)
	assert.Equal(t, "soc", patched.Fields["owner"])
}

func TestParseBatch(t *testing.T) {
	requests, err := parseBatch([]byte(`[
		{"guid": "g1", "source.type": "bro", "score": 1},
		{"guid": "g2", "source.type": "snort", "index": "custom"}
	]`))
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "", requests[0].Index)
	assert.Equal(t, "custom", requests[1].Index)
	assert.NotContains(t, requests[1].Document.Fields, "index")

	_, err = parseBatch([]byte(`{"guid": "g1"}`))
	assert.Error(t, err)
}

func TestWriteDiff(t *testing.T) {
	color.NoColor = true
	before := core.Document{GUID: "g1", SensorType: "bro", Version: 1, Fields: core.Fields{"status": "NEW"}}
	after := before.Clone()
	after.Fields["status"] = "ESCALATE"

	var out bytes.Buffer
	writeDiff(&out, before, after)
	assert.Contains(t, out.String(), `-   "status": "NEW"`)
	assert.Contains(t, out.String(), `+   "status": "ESCALATE"`)
	assert.Contains(t, out.String(), `    "guid": "g1"`)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alertidx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("uri: kv:///var/lib/alertidx\nindices:\n  bro: bro_index\n"), 0644))

	configPath, storeURI = path, ""
	t.Cleanup(func() { configPath, storeURI = "", "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "kv:///var/lib/alertidx", cfg.URI)

	storeURI = "memory"
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.URI)
	assert.Equal(t, "bro_index", cfg.Indices["bro"])
}
