// Package propagate derives the attributes that depend on graph topology:
// moisture diffusion, drainage direction, accumulated flow, and biomes.
package propagate

import (
	"log/slog"
	"slices"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/parallel"
	"github.com/talgya/worldgen/internal/voronoi"
)

// AssignDownslope points every cell at its lowest strictly lower neighbor.
// Ties go to the lowest neighbor id; cells with no lower neighbor become
// sinks. Cells must be in MoistureSet.
func AssignDownslope(g *voronoi.Graph, workers int) error {
	const op = "propagate.AssignDownslope"
	if err := g.Require(op, voronoi.MoistureSet); err != nil {
		return err
	}
	err := parallel.ForEach(g.Len(), workers, func(i int) error {
		c := g.Cell(i)
		best, bestElev := voronoi.Sink, c.Attr.Elevation
		// Neighbors are ascending, so a strict comparison keeps the lowest id on ties.
		for _, n := range c.Neighbors {
			if e := g.Cells[n].Attr.Elevation; e < bestElev {
				best, bestElev = n, e
			}
		}
		c.Attr.Downslope = best
		return nil
	})
	if err != nil {
		return err
	}
	slog.Debug("downslope assigned", "cells", g.Len(), "sinks", len(Sinks(g)))
	return nil
}

// AccumulateFlow computes each cell's flow as 1 plus the flow of every cell
// draining into it. Cells are scheduled in levels: a cell is ready once all
// of its upstream cells are done, and each level runs in parallel. Cells left
// unscheduled lie on a cycle and fail the stage with ErrCycleDetected.
// On success every cell moves to FlowResolved.
func AccumulateFlow(g *voronoi.Graph, workers int) error {
	const op = "propagate.AccumulateFlow"
	if err := g.Require(op, voronoi.MoistureSet); err != nil {
		return err
	}

	n := g.Len()
	upstream := make([][]int, n)
	pending := make([]int, n)
	for i := range g.Cells {
		d := g.Cells[i].Attr.Downslope
		switch {
		case d == voronoi.Sink:
		case d == voronoi.Unrouted:
			return failure.New(failure.ErrAttributeMissing, op, i, "downslope not assigned")
		case d < 0 || d >= n || !g.IsNeighbor(i, d):
			return failure.New(failure.ErrGeometry, op, i, "downslope %d is not a neighbor", d)
		default:
			upstream[d] = append(upstream[d], i)
			pending[d]++
		}
	}

	var level []int
	for i := 0; i < n; i++ {
		if pending[i] == 0 {
			level = append(level, i)
		}
	}

	done, levels := 0, 0
	for len(level) > 0 {
		err := parallel.Each(level, workers, func(id int) error {
			c := g.Cell(id)
			flow := 1
			for _, u := range upstream[id] {
				flow += g.Cells[u].Attr.Flow
			}
			c.Attr.Flow = flow
			return nil
		})
		if err != nil {
			return err
		}
		done += len(level)
		levels++

		var next []int
		for _, id := range level {
			d := g.Cells[id].Attr.Downslope
			if d < 0 {
				continue
			}
			pending[d]--
			if pending[d] == 0 {
				next = append(next, d)
			}
		}
		slices.Sort(next)
		level = next
	}

	if done != n {
		id, length := findCycle(g, pending)
		return failure.New(failure.ErrCycleDetected, op, id,
			"downslope cycle of length %d; %d of %d cells unresolved", length, n-done, n)
	}

	for i := range g.Cells {
		if err := g.Cells[i].Advance(op, voronoi.MoistureSet, voronoi.FlowResolved); err != nil {
			return err
		}
	}
	slog.Debug("flow accumulated", "cells", n, "levels", levels)
	return nil
}

// findCycle returns the lowest id lying on a downslope cycle among the
// unscheduled cells, and the cycle length.
func findCycle(g *voronoi.Graph, pending []int) (int, int) {
	for i := range pending {
		if pending[i] == 0 {
			continue
		}
		seen := map[int]int{}
		for cur, step := i, 0; cur >= 0; cur, step = g.Cells[cur].Attr.Downslope, step+1 {
			if at, ok := seen[cur]; ok {
				lo := cur
				for c := g.Cells[cur].Attr.Downslope; c != cur; c = g.Cells[c].Attr.Downslope {
					lo = min(lo, c)
				}
				return lo, step - at
			}
			seen[cur] = step
		}
	}
	return failure.NoID, 0
}

// ResolveFlow runs AssignDownslope then AccumulateFlow.
func ResolveFlow(g *voronoi.Graph, workers int) error {
	if err := AssignDownslope(g, workers); err != nil {
		return err
	}
	return AccumulateFlow(g, workers)
}

// Sinks returns the ids of cells with no lower neighbor, ascending.
func Sinks(g *voronoi.Graph) []int {
	var out []int
	for i := range g.Cells {
		if g.Cells[i].Attr.Downslope == voronoi.Sink {
			out = append(out, i)
		}
	}
	return out
}

// Rivers returns the ids of cells whose accumulated flow reaches threshold.
func Rivers(g *voronoi.Graph, threshold int) []int {
	var out []int
	for i := range g.Cells {
		if g.Cells[i].Attr.Flow >= threshold {
			out = append(out, i)
		}
	}
	return out
}

// Path follows downslope pointers from a cell to its sink. The returned
// slice starts at from and ends at the sink.
func Path(g *voronoi.Graph, from int) []int {
	path := []int{from}
	for cur := from; len(path) <= g.Len(); {
		next := g.Cells[cur].Attr.Downslope
		if next < 0 {
			break
		}
		path = append(path, next)
		cur = next
	}
	return path
}
