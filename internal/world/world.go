package world

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/talgya/worldgen/internal/propagate"
	"github.com/talgya/worldgen/internal/raster"
	"github.com/talgya/worldgen/internal/rbf"
	"github.com/talgya/worldgen/internal/voronoi"
)

// World is the output of one generation run.
type World struct {
	ID        string             `json:"id"` // Run id, unique per invocation
	Config    GenConfig          `json:"config"`
	Graph     *voronoi.Graph     `json:"graph"`
	Controls  []rbf.ControlPoint `json:"controls"` // Controls actually fitted
	Raster    *raster.Buffer     `json:"-"`
	Triangles int                `json:"triangles"`
	Elapsed   time.Duration      `json:"-"`
}

// CellCount returns the total number of cells in the world.
func (w *World) CellCount() int {
	return w.Graph.Len()
}

// String returns a summary of the world.
func (w *World) String() string {
	return fmt.Sprintf("World(seed=%d, cells=%d, triangles=%d)", w.Config.Seed, w.CellCount(), w.Triangles)
}

// Summary is the condensed view of a world served by the API and logged by
// the CLI.
type Summary struct {
	ID        string         `json:"id"`
	Seed      uint64         `json:"seed"`
	Cells     int            `json:"cells"`
	Edges     int            `json:"edges"`
	Corners   int            `json:"corners"`
	Sinks     int            `json:"sinks"`
	Rivers    int            `json:"rivers"`
	MaxFlow   int            `json:"max_flow"`
	Land      float64        `json:"land_fraction"`
	Highest   int            `json:"highest_cell"`
	Biomes    map[string]int `json:"biomes"`
	ElapsedMS int64          `json:"elapsed_ms"`
}

// Summarize computes the world's summary.
func (w *World) Summarize() Summary {
	g := w.Graph
	s := Summary{
		ID:        w.ID,
		Seed:      w.Config.Seed,
		Cells:     g.Len(),
		Edges:     g.EdgeCount(),
		Corners:   len(g.Corners),
		Sinks:     len(propagate.Sinks(g)),
		Rivers:    len(propagate.Rivers(g, w.Config.Rules().RiverThreshold)),
		Highest:   Highest(g),
		Biomes:    make(map[string]int),
		ElapsedMS: w.Elapsed.Milliseconds(),
	}
	land := 0
	for i := range g.Cells {
		a := g.Cells[i].Attr
		s.MaxFlow = max(s.MaxFlow, a.Flow)
		if a.Biome != voronoi.BiomeOcean {
			land++
		}
	}
	if g.Len() > 0 {
		s.Land = float64(land) / float64(g.Len())
	}
	for b, n := range propagate.BiomeCounts(g) {
		s.Biomes[b.String()] = n
	}
	return s
}

// BiomeCount pairs a biome with its cell count.
type BiomeCount struct {
	Biome voronoi.Biome
	Count int
}

// BiomeTable returns the biome distribution, most common first.
func BiomeTable(g *voronoi.Graph) []BiomeCount {
	var out []BiomeCount
	for b, n := range propagate.BiomeCounts(g) {
		out = append(out, BiomeCount{Biome: b, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Biome < out[j].Biome
	})
	return out
}

// Highest returns the id of the cell with the greatest elevation; ties go
// to the lower id.
func Highest(g *voronoi.Graph) int {
	best := -1
	for i := range g.Cells {
		if best < 0 || g.Cells[i].Attr.Elevation > g.Cells[best].Attr.Elevation {
			best = i
		}
	}
	return best
}

// LoadControls reads a JSON array of control points from path.
func LoadControls(path string) ([]rbf.ControlPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read controls: %w", err)
	}
	var cps []rbf.ControlPoint
	if err := json.Unmarshal(data, &cps); err != nil {
		return nil, fmt.Errorf("parse controls %s: %w", path, err)
	}
	return cps, nil
}
