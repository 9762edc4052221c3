// Package geom defines the planner's geometric and capability primitives:
// positions, orientations, workspace bounds, and the closed set of planning
// algorithms workers may declare as capabilities.
package geom

import "fmt"

// Position is a point in the workspace. No normalization is required;
// consumers treat values as plain Cartesian coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Orientation is a heading in radians. Consumers treat angles modulo 2π
// where meaningful; no normalization is performed here.
type Orientation struct {
	Radians float64 `json:"radians"`
}

// Algorithm is the closed set of planning algorithms a worker may declare as
// a capability and a planner may be configured with. Equality is by tag.
type Algorithm string

const (
	AStar         Algorithm = "AStar"
	Dijkstra      Algorithm = "Dijkstra"
	RRT           Algorithm = "RRT"
	PRM           Algorithm = "PRM"
	DynamicWindow Algorithm = "DynamicWindow"
)

// Valid reports whether a is one of the five known algorithm tags.
func (a Algorithm) Valid() bool {
	switch a {
	case AStar, Dijkstra, RRT, PRM, DynamicWindow:
		return true
	default:
		return false
	}
}

// Bounds is an axis-aligned workspace rectangle. A position is valid iff it
// lies within the rectangle, edges inclusive.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Contains reports whether p lies within b, inclusive of the boundary.
func (b Bounds) Contains(p Position) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Which identifies which of a request's two positions failed a bounds check.
type Which string

const (
	WhichStart Which = "start"
	WhichGoal  Which = "goal"
)

// OutOfBoundsError reports that a position fell outside workspace bounds.
type OutOfBoundsError struct {
	Which Which
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("position out of bounds: %s", e.Which)
}
