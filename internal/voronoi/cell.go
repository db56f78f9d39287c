package voronoi

import (
	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
)

// State tracks how far a cell's attribute record has been filled in.
// Transitions only move forward, one step at a time.
type State uint8

const (
	Unassigned   State = iota // Fresh from the dual graph builder
	ElevationSet              // Elevation written by the interpolator
	MoistureSet               // Moisture written by interpolator or diffusion
	FlowResolved              // Downslope and accumulated flow written
	Classified                // Biome written
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unassigned:
		return "unassigned"
	case ElevationSet:
		return "elevation-set"
	case MoistureSet:
		return "moisture-set"
	case FlowResolved:
		return "flow-resolved"
	case Classified:
		return "classified"
	default:
		return "unknown"
	}
}

// Downslope markers.
const (
	Sink     = -1 // No strictly lower neighbor
	Unrouted = -2 // Downslope not computed yet
)

// Attributes is the mutable record of a cell. Elevation and Moisture belong
// to the interpolation stage; Downslope, Flow, and Biome to propagation.
type Attributes struct {
	State     State   `json:"state"`
	Elevation float64 `json:"elevation"`
	Moisture  float64 `json:"moisture"`
	Downslope int     `json:"downslope"` // neighbor id, Sink, or Unrouted
	Flow      int     `json:"flow"`      // 1 + flow of every upstream cell
	Biome     Biome   `json:"biome"`
}

// Cell is one node of the dual graph.
type Cell struct {
	ID        int          `json:"id"`
	Site      geom.Point   `json:"site"`
	Polygon   []geom.Point `json:"polygon"`   // convex, counter-clockwise
	Neighbors []int        `json:"neighbors"` // ascending ids, symmetric
	Corners   []int        `json:"corners"`   // indices into Graph.Corners, polygon order
	Boundary  bool         `json:"boundary"`  // site on the triangulation hull
	Attr      Attributes   `json:"attr"`
}

// Area returns the polygon area.
func (c *Cell) Area() float64 { return geom.Area(c.Polygon) }

// Advance moves the cell from one state to the next.
func (c *Cell) Advance(op string, from, to State) error {
	if c.Attr.State != from {
		return failure.New(failure.ErrAttributeMissing, op, c.ID,
			"cell is %s, want %s", c.Attr.State, from)
	}
	if to != from+1 {
		return failure.New(failure.ErrAttributeMissing, op, c.ID,
			"illegal transition %s -> %s", from, to)
	}
	c.Attr.State = to
	return nil
}
