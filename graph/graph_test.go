package graph

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{"type": "Feature", "properties": {"id": "a"}, "geometry": {"type": "Point", "coordinates": [0, 0]}},
		{"type": "Feature", "properties": {"id": "b"}, "geometry": {"type": "Point", "coordinates": [10, 0]}},
		{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [10, 10]}},
		{"type": "Feature", "properties": {}, "geometry": {"type": "LineString", "coordinates": [[0, 0], [10, 0]]}}
	]
}`

func TestBuildGraphParsesPointsAndLineStrings(t *testing.T) {
	g, err := BuildGraph(sampleGeoJSON)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 1)

	require.Equal(t, "a", g.Nodes[0].ID)
	require.Equal(t, "b", g.Nodes[1].ID)
	require.Equal(t, "n2", g.Nodes[2].ID) // no properties.id, falls back to positional

	edge := g.Edges[0]
	require.Equal(t, "a", edge.From)
	require.Equal(t, "b", edge.To)
	require.InDelta(t, 10.0, edge.Weight, 1e-9)
}

func TestBuildGraphIgnoresUnsupportedGeometry(t *testing.T) {
	text := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[0,0],[1,1],[1,0]]}}
	]}`
	g, err := BuildGraph(text)
	require.NoError(t, err)
	require.Empty(t, g.Nodes)
	require.Empty(t, g.Edges)
}

func TestBuildGraphRejectsMalformedJSON(t *testing.T) {
	_, err := BuildGraph("not json")
	require.Error(t, err)
}

func TestSaveLoadGraphRoundTrip(t *testing.T) {
	g, err := BuildGraph(sampleGeoJSON)
	require.NoError(t, err)

	path := t.TempDir() + "/graph.pgph"
	require.NoError(t, SaveGraph(path, g))

	loaded, err := LoadGraph(path)
	require.NoError(t, err)
	require.Equal(t, g.Nodes, loaded.Nodes)
	require.Equal(t, g.Edges, loaded.Edges)
}

func TestLoadGraphRejectsBadMagic(t *testing.T) {
	path := t.TempDir() + "/bad.pgph"
	require.NoError(t, os.WriteFile(path, []byte("not a pgph file at all"), 0o644))
	_, err := LoadGraph(path)
	require.Error(t, err)
}

func TestLoadGraphRejectsUnsupportedVersion(t *testing.T) {
	g := &Graph{Nodes: []Node{{ID: "a"}}}
	path := t.TempDir() + "/versioned.pgph"
	require.NoError(t, SaveGraph(path, g))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[4] = 99 // corrupt the version byte
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = LoadGraph(path)
	require.Error(t, err)
}
