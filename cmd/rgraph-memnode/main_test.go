package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rgraph/model"
)

func TestReadGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"vertices": [
			{"id": 1, "label": 3, "properties": [{"key": 1, "value": {"type": "string", "value": "alice"}}]},
			{"id": 2, "label": 3}
		],
		"edges": [{"src": 1, "dst": 2, "label": 9}]
	}`), 0o600))

	g, err := readGraph(path)
	require.NoError(t, err)
	require.Len(t, g.Vertices, 2)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, model.String("alice"), g.Vertices[0].Properties[0].Value)
	assert.Equal(t, model.NewEdgeID(1, 2), g.Edges[0].ID())
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(flags{listen: "127.0.0.1:0"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", cfg.Listen)

	_, err = loadConfig(flags{config: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestRun_RequiresOneSource(t *testing.T) {
	err := run(t.Context(), flags{store: t.TempDir()}, nil)
	require.Error(t, err)
}
