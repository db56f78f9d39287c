package raster

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/talgya/worldgen/internal/voronoi"
)

// Palette maps biomes to colors. Biomes missing from the palette render
// as Fallback.
type Palette struct {
	Colors   map[voronoi.Biome]color.RGBA
	Fallback color.RGBA
}

// DefaultPalette returns the preview colors.
func DefaultPalette() Palette {
	return Palette{
		Colors: map[voronoi.Biome]color.RGBA{
			voronoi.BiomeOcean:      {R: 0x2b, G: 0x4a, B: 0x8c, A: 0xff},
			voronoi.BiomeLake:       {R: 0x3f, G: 0x6f, B: 0xb5, A: 0xff},
			voronoi.BiomeRiver:      {R: 0x4f, G: 0x8f, B: 0xd8, A: 0xff},
			voronoi.BiomeBeach:      {R: 0xe3, G: 0xd3, B: 0x9c, A: 0xff},
			voronoi.BiomeMarsh:      {R: 0x5d, G: 0x7a, B: 0x5a, A: 0xff},
			voronoi.BiomeDesert:     {R: 0xd9, G: 0xb8, B: 0x73, A: 0xff},
			voronoi.BiomeGrassland:  {R: 0x8b, G: 0xb3, B: 0x56, A: 0xff},
			voronoi.BiomeForest:     {R: 0x3e, G: 0x7d, B: 0x3a, A: 0xff},
			voronoi.BiomeRainforest: {R: 0x1f, G: 0x5c, B: 0x2e, A: 0xff},
			voronoi.BiomeTundra:     {R: 0xa8, G: 0xa8, B: 0x90, A: 0xff},
			voronoi.BiomeMountain:   {R: 0x7a, G: 0x6e, B: 0x64, A: 0xff},
			voronoi.BiomeSnow:       {R: 0xf4, G: 0xf6, B: 0xf8, A: 0xff},
		},
		Fallback: color.RGBA{A: 0xff},
	}
}

// Color returns the color for a biome. Outside pixels are transparent.
func (p Palette) Color(b voronoi.Biome) color.RGBA {
	if b == voronoi.BiomeOutside {
		return color.RGBA{}
	}
	if c, ok := p.Colors[b]; ok {
		return c
	}
	return p.Fallback
}

// Image renders the buffer's biomes.
func (b *Buffer) Image(p Palette) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			img.SetRGBA(x, y, p.Color(b.Biomes[y*b.Width+x]))
		}
	}
	return img
}

// ElevationImage renders the owning cell's elevation as grayscale, scaled
// between the lowest and highest cell. Outside pixels are black.
func (b *Buffer) ElevationImage(g *voronoi.Graph) *image.Gray {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range g.Cells {
		lo = math.Min(lo, g.Cells[i].Attr.Elevation)
		hi = math.Max(hi, g.Cells[i].Attr.Elevation)
	}
	span := hi - lo
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for i, id := range b.Cells {
		if id == Outside {
			continue
		}
		v := 0.0
		if span > 0 {
			v = (g.Cells[id].Attr.Elevation - lo) / span
		}
		img.Pix[(i/b.Width)*img.Stride+i%b.Width] = uint8(math.Round(v * 255))
	}
	return img
}

// Upscale enlarges img by an integer factor with nearest-neighbor sampling,
// keeping cell borders crisp.
func Upscale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	r := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx()*factor, r.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, r, xdraw.Src, nil)
	return dst
}
