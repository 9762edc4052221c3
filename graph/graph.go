// Package graph implements the external data-source port workers use to
// load the road/corridor network a planning algorithm searches over. The
// planner/worker aggregates never interpret a Graph's contents — only a
// worker's capability function does, at execution time.
//
// The format is a fixed subset of GeoJSON: Point features become graph
// nodes, LineString features (exactly two coordinates) become edges joining
// the nearest existing nodes to the line's endpoints. Nothing else in the
// pack carries a GeoJSON library, and this subset is narrow enough that a
// hand-rolled decoder over encoding/json is the justified exception (see
// DESIGN.md).
package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/pathplanhq/pathplanner/domain/geom"
)

type (
	// Node is one vertex of the network, addressable by ID.
	Node struct {
		ID       string
		Position geom.Position
	}

	// Edge joins two nodes with a traversal weight.
	Edge struct {
		From, To string
		Weight   float64
	}

	// Graph is the in-memory network a capability function searches.
	Graph struct {
		Nodes []Node
		Edges []Edge
	}
)

// LoadGeoJSON reads the named GeoJSON resource's raw text. name is resolved
// as a filesystem path; callers needing a different resolution scheme (an
// object store, an embedded FS) should wrap this with their own
// implementation of the same signature.
func LoadGeoJSON(name string) (string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("load geojson %s: %w", name, err)
	}
	return string(data), nil
}

type (
	geojsonFeatureCollection struct {
		Type     string            `json:"type"`
		Features []geojsonFeature  `json:"features"`
	}
	geojsonFeature struct {
		Type       string              `json:"type"`
		Properties map[string]any      `json:"properties"`
		Geometry   geojsonGeometry     `json:"geometry"`
	}
	geojsonGeometry struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"-"`
		Raw         json.RawMessage `json:"coordinates"`
	}
)

// UnmarshalJSON handles the two geometry shapes this subset supports: a
// single [x, y] pair (Point) or a list of [x, y] pairs (LineString).
func (g *geojsonGeometry) UnmarshalJSON(data []byte) error {
	type alias geojsonGeometry
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*g = geojsonGeometry(a)

	var point []float64
	if err := json.Unmarshal(g.Raw, &point); err == nil && len(point) >= 2 {
		g.Coordinates = [][]float64{point}
		return nil
	}
	var line [][]float64
	if err := json.Unmarshal(g.Raw, &line); err != nil {
		return fmt.Errorf("unsupported geometry coordinates: %w", err)
	}
	g.Coordinates = line
	return nil
}

// BuildGraph parses GeoJSON text into a Graph. Point features become nodes
// (ID taken from properties.id if present, else a positional "n<index>");
// LineString features with exactly two coordinates become an edge between
// the nearest existing node to each endpoint, weighted by Euclidean
// distance.
func BuildGraph(text string) (*Graph, error) {
	var fc geojsonFeatureCollection
	if err := json.Unmarshal([]byte(text), &fc); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	g := &Graph{}
	for i, f := range fc.Features {
		if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) == 0 {
			continue
		}
		coord := f.Geometry.Coordinates[0]
		id := fmt.Sprintf("n%d", i)
		if v, ok := f.Properties["id"].(string); ok && v != "" {
			id = v
		}
		g.Nodes = append(g.Nodes, Node{ID: id, Position: geom.Position{X: coord[0], Y: coord[1]}})
	}

	for _, f := range fc.Features {
		if f.Geometry.Type != "LineString" || len(f.Geometry.Coordinates) != 2 {
			continue
		}
		start := geom.Position{X: f.Geometry.Coordinates[0][0], Y: f.Geometry.Coordinates[0][1]}
		end := geom.Position{X: f.Geometry.Coordinates[1][0], Y: f.Geometry.Coordinates[1][1]}
		from := nearestNode(g.Nodes, start)
		to := nearestNode(g.Nodes, end)
		if from == "" || to == "" {
			continue
		}
		g.Edges = append(g.Edges, Edge{From: from, To: to, Weight: distance(start, end)})
	}
	return g, nil
}

func nearestNode(nodes []Node, p geom.Position) string {
	best := ""
	bestDist := math.Inf(1)
	for _, n := range nodes {
		d := distance(n.Position, p)
		if d < bestDist {
			bestDist = d
			best = n.ID
		}
	}
	return best
}

func distance(a, b geom.Position) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
