// Package raster projects classified cells onto a pixel grid.
package raster

import (
	"log/slog"
	"math"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/parallel"
	"github.com/talgya/worldgen/internal/voronoi"
)

// Outside marks pixels whose center lies outside the sampling bounds.
const Outside int32 = -1

// MaxSide caps each raster dimension.
const MaxSide = 1 << 14

// Options tunes Rasterize.
type Options struct {
	// View is the world rectangle mapped onto the image. Zero means the
	// graph bounds. Row 0 is the top edge (View.Max.Y).
	View    geom.Rect
	Workers int
}

// Buffer is a fixed-size grid of cell ids and their biomes, row-major.
type Buffer struct {
	Width  int             `json:"width"`
	Height int             `json:"height"`
	View   geom.Rect       `json:"view"`
	Cells  []int32         `json:"cells"`
	Biomes []voronoi.Biome `json:"biomes"`
}

// At returns the cell id and biome at pixel (x, y).
func (b *Buffer) At(x, y int) (int32, voronoi.Biome) {
	i := y*b.Width + x
	return b.Cells[i], b.Biomes[i]
}

// Coverage returns the number of pixels owned by a cell.
func (b *Buffer) Coverage() int {
	n := 0
	for _, c := range b.Cells {
		if c != Outside {
			n++
		}
	}
	return n
}

// PixelCenter returns the world position of pixel (x, y)'s center.
func (b *Buffer) PixelCenter(x, y int) geom.Point {
	return pixelCenter(b.View, b.Width, b.Height, x, y)
}

func pixelCenter(view geom.Rect, w, h, x, y int) geom.Point {
	return geom.Point{
		X: view.Min.X + (float64(x)+0.5)*view.Width()/float64(w),
		Y: view.Max.Y - (float64(y)+0.5)*view.Height()/float64(h),
	}
}

// Rasterize assigns every pixel the cell whose site is nearest its center.
// Ties go to the lower id. Pixels outside the graph bounds get Outside and
// BiomeOutside. Cells must be Classified.
func Rasterize(g *voronoi.Graph, width, height int, opts Options) (*Buffer, error) {
	const op = "raster.Rasterize"
	if width <= 0 || height <= 0 || width > MaxSide || height > MaxSide {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID,
			"resolution must be in [1,%d]², got %dx%d", MaxSide, width, height)
	}
	if g.Len() == 0 {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID, "graph has no cells")
	}
	if err := g.Require(op, voronoi.Classified); err != nil {
		return nil, err
	}
	view := opts.View
	if view == (geom.Rect{}) {
		view = g.Bounds
	}
	if view.Area() <= 0 {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID, "view %v has no area", view)
	}

	buf := &Buffer{
		Width:  width,
		Height: height,
		View:   view,
		Cells:  make([]int32, width*height),
		Biomes: make([]voronoi.Biome, width*height),
	}
	ix := newIndex(g)
	err := parallel.ForEach(height, opts.Workers, func(y int) error {
		row := y * width
		for x := 0; x < width; x++ {
			p := pixelCenter(view, width, height, x, y)
			if !g.Bounds.ContainsClosed(p) {
				buf.Cells[row+x] = Outside
				buf.Biomes[row+x] = voronoi.BiomeOutside
				continue
			}
			id := ix.nearest(p)
			buf.Cells[row+x] = int32(id)
			buf.Biomes[row+x] = g.Cells[id].Attr.Biome
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("rasterized", "width", width, "height", height, "covered", buf.Coverage())
	return buf, nil
}

// index buckets sites on a uniform grid for nearest-site queries.
type index struct {
	origin     geom.Point
	size       float64
	cols, rows int
	buckets    [][]int
	sites      []geom.Point
}

func newIndex(g *voronoi.Graph) *index {
	b := g.Bounds
	size := math.Sqrt(b.Area() / float64(g.Len()))
	ix := &index{
		origin: b.Min,
		size:   size,
		cols:   max(1, int(math.Ceil(b.Width()/size))),
		rows:   max(1, int(math.Ceil(b.Height()/size))),
		sites:  make([]geom.Point, g.Len()),
	}
	ix.buckets = make([][]int, ix.cols*ix.rows)
	for i := range g.Cells {
		p := g.Cells[i].Site
		ix.sites[i] = p
		cx, cy := ix.cell(p)
		ix.buckets[cy*ix.cols+cx] = append(ix.buckets[cy*ix.cols+cx], i)
	}
	return ix
}

func (ix *index) cell(p geom.Point) (int, int) {
	cx := geom.Clamp(int((p.X-ix.origin.X)/ix.size), 0, ix.cols-1)
	cy := geom.Clamp(int((p.Y-ix.origin.Y)/ix.size), 0, ix.rows-1)
	return cx, cy
}

// nearest scans rings of buckets around p until no unscanned bucket can
// hold a closer site.
func (ix *index) nearest(p geom.Point) int {
	cx, cy := ix.cell(p)
	best, bestD := -1, math.Inf(1)
	maxRing := max(ix.cols, ix.rows)
	for r := 0; r <= maxRing; r++ {
		for y := cy - r; y <= cy+r; y++ {
			if y < 0 || y >= ix.rows {
				continue
			}
			for x := cx - r; x <= cx+r; x++ {
				if x < 0 || x >= ix.cols {
					continue
				}
				if r > 0 && y != cy-r && y != cy+r && x != cx-r && x != cx+r {
					continue
				}
				for _, id := range ix.buckets[y*ix.cols+x] {
					d := ix.sites[id].Dist2(p)
					if d < bestD || (d == bestD && id < best) {
						best, bestD = id, d
					}
				}
			}
		}
		if best >= 0 {
			reach := float64(r) * ix.size
			if bestD < reach*reach {
				break
			}
		}
	}
	return best
}
