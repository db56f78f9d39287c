package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/voronoi"
)

// Colors used by GraphImage on top of the biome fill.
var (
	BorderColor = color.RGBA{R: 0x18, G: 0x18, B: 0x18, A: 0xff}
	LinkColor   = color.RGBA{R: 0xd0, G: 0x50, B: 0x30, A: 0x90}
	SiteColor   = color.RGBA{R: 0xe0, G: 0x10, B: 0x10, A: 0xff}
)

// GraphImage renders the dual graph over the biome fill: cell borders along
// the shared corners, region links between neighboring sites, and a marker
// at every site. It is the debugging view of the generated structure.
func (b *Buffer) GraphImage(g *voronoi.Graph, p Palette) *image.RGBA {
	img := b.Image(p)
	w, h := b.Width, b.Height

	borders := vector.NewRasterizer(w, h)
	seen := make(map[[2]int]bool, len(g.Corners)*2)
	for i := range g.Cells {
		ids := g.Cells[i].Corners
		for k, a := range ids {
			c := ids[(k+1)%len(ids)]
			key := [2]int{min(a, c), max(a, c)}
			if a == c || seen[key] {
				continue
			}
			seen[key] = true
			b.segment(borders, g.Corners[a].Pos, g.Corners[c].Pos, 0.5)
		}
	}

	links := vector.NewRasterizer(w, h)
	for i := range g.Cells {
		for _, j := range g.Cells[i].Neighbors {
			if j > i {
				b.segment(links, g.Cells[i].Site, g.Cells[j].Site, 0.35)
			}
		}
	}

	sites := vector.NewRasterizer(w, h)
	for i := range g.Cells {
		x, y := b.project(g.Cells[i].Site)
		square(sites, x, y, 1.5)
	}

	borders.Draw(img, img.Bounds(), image.NewUniform(BorderColor), image.Point{})
	links.Draw(img, img.Bounds(), image.NewUniform(LinkColor), image.Point{})
	sites.Draw(img, img.Bounds(), image.NewUniform(SiteColor), image.Point{})
	b.clearOutside(img)
	return img
}

// project maps a world position to fractional image coordinates.
func (b *Buffer) project(p geom.Point) (float32, float32) {
	x := (p.X - b.View.Min.X) / b.View.Width() * float64(b.Width)
	y := (b.View.Max.Y - p.Y) / b.View.Height() * float64(b.Height)
	return float32(x), float32(y)
}

// segment adds a line of the given half-width (in pixels) as a quad. Every
// quad winds the same way, so overlaps saturate instead of cancelling.
func (b *Buffer) segment(z *vector.Rasterizer, from, to geom.Point, half float64) {
	x0, y0 := b.project(from)
	x1, y1 := b.project(to)
	dx, dy := float64(x1-x0), float64(y1-y0)
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := float32(-dy/l*half), float32(dx/l*half)
	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
}

func square(z *vector.Rasterizer, x, y, half float32) {
	z.MoveTo(x-half, y-half)
	z.LineTo(x+half, y-half)
	z.LineTo(x+half, y+half)
	z.LineTo(x-half, y+half)
	z.ClosePath()
}

// clearOutside keeps pixels beyond the graph bounds transparent, even where
// a stroke spilled over the edge.
func (b *Buffer) clearOutside(img *image.RGBA) {
	for i, id := range b.Cells {
		if id == Outside {
			x, y := i%b.Width, i/b.Width
			draw.Draw(img, image.Rect(x, y, x+1, y+1), image.Transparent, image.Point{}, draw.Src)
		}
	}
}
