// Package voronoi builds the dual graph of a Delaunay triangulation: one cell
// per site holding its clipped Voronoi polygon, symmetric neighbor lists, and
// the attribute record that later stages fill in.
package voronoi

import (
	"fmt"
	"math"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
)

// Corner is a Voronoi vertex shared by the cells that meet there.
type Corner struct {
	Pos   geom.Point `json:"pos"`
	Cells []int      `json:"cells"` // ascending ids
}

// Graph is an arena of cells indexed by site id. Edges live in each cell's
// neighbor list and in an edge set for O(1) adjacency tests.
type Graph struct {
	Bounds  geom.Rect `json:"bounds"`
	Cells   []Cell    `json:"cells"`
	Corners []Corner  `json:"corners"`

	edges map[uint64]struct{}
}

func edgeKey(a, b int) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(uint32(b))
}

// Len returns the number of cells.
func (g *Graph) Len() int { return len(g.Cells) }

// Cell returns the cell with the given id.
func (g *Graph) Cell(id int) *Cell { return &g.Cells[id] }

// IsNeighbor reports whether cells a and b are adjacent.
func (g *Graph) IsNeighbor(a, b int) bool {
	if a == b {
		return false
	}
	_, ok := g.edges[edgeKey(a, b)]
	return ok
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nearest returns the id of the cell whose site is closest to p; ties go to
// the lower id.
func (g *Graph) Nearest(p geom.Point) int {
	best, bestD := -1, math.Inf(1)
	for i := range g.Cells {
		if d := g.Cells[i].Site.Dist2(p); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// BFSDepth returns the graph distance from cell `from` to every cell
// (-1 for unreachable cells).
func (g *Graph) BFSDepth(from int) []int {
	depth := make([]int, len(g.Cells))
	for i := range depth {
		depth[i] = -1
	}
	depth[from] = 0
	queue := []int{from}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, n := range g.Cells[c].Neighbors {
			if depth[n] < 0 {
				depth[n] = depth[c] + 1
				queue = append(queue, n)
			}
		}
	}
	return depth
}

// Connected reports whether every cell is reachable from cell 0.
func (g *Graph) Connected() bool {
	if len(g.Cells) == 0 {
		return true
	}
	for _, d := range g.BFSDepth(0) {
		if d < 0 {
			return false
		}
	}
	return true
}

// TotalArea sums every cell polygon's area.
func (g *Graph) TotalArea() float64 {
	sum := 0.0
	for i := range g.Cells {
		sum += g.Cells[i].Area()
	}
	return sum
}

// Require fails with ErrAttributeMissing unless every cell is in state want.
func (g *Graph) Require(op string, want State) error {
	for i := range g.Cells {
		if st := g.Cells[i].Attr.State; st != want {
			return failure.New(failure.ErrAttributeMissing, op, i, "cell is %s, want %s", st, want)
		}
	}
	return nil
}

// Validate re-checks the structural invariants: mutual edges, convex CCW
// polygons, and sites inside their own polygons.
func (g *Graph) Validate() error {
	const op = "voronoi.Validate"
	tol := 1e-9 * g.Bounds.Diagonal() * g.Bounds.Diagonal()
	for i := range g.Cells {
		c := &g.Cells[i]
		if c.ID != i {
			return failure.New(failure.ErrGeometry, op, i, "cell stored at index %d has id %d", i, c.ID)
		}
		for _, n := range c.Neighbors {
			if !g.IsNeighbor(i, n) || !contains(g.Cells[n].Neighbors, i) {
				return failure.New(failure.ErrGeometry, op, i, "edge to %d is not mutual", n)
			}
		}
		if !geom.IsConvexCCW(c.Polygon, tol) {
			return failure.New(failure.ErrGeometry, op, i, "polygon is not convex and counter-clockwise")
		}
		if !geom.ContainsPoint(c.Polygon, c.Site, tol) {
			return failure.New(failure.ErrGeometry, op, i, "site %v outside its polygon", c.Site)
		}
	}
	return nil
}

// String returns a summary of the graph.
func (g *Graph) String() string {
	return fmt.Sprintf("Graph(cells=%d, edges=%d, corners=%d)", len(g.Cells), len(g.edges), len(g.Corners))
}

func contains(sorted []int, v int) bool {
	lo, hi := 0, len(sorted)
	for lo < hi {
		m := (lo + hi) / 2
		switch {
		case sorted[m] == v:
			return true
		case sorted[m] < v:
			lo = m + 1
		default:
			hi = m
		}
	}
	return false
}
