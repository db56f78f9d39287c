// Package geom provides the planar primitives shared by every generation stage:
// points, rectangles, sites, and the convex-polygon operations used to build
// and query Voronoi cells.
package geom

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Point is a position in world space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (a Point) Add(b Point) Point      { return Point{a.X + b.X, a.Y + b.Y} }
func (a Point) Sub(b Point) Point      { return Point{a.X - b.X, a.Y - b.Y} }
func (a Point) Mul(s float64) Point    { return Point{a.X * s, a.Y * s} }
func (a Point) Dot(b Point) float64    { return a.X*b.X + a.Y*b.Y }
func (a Point) Cross(b Point) float64  { return a.X*b.Y - a.Y*b.X }
func (a Point) Len2() float64          { return a.Dot(a) }
func (a Point) Dist2(b Point) float64  { return a.Sub(b).Len2() }
func (a Point) Dist(b Point) float64   { return math.Sqrt(a.Dist2(b)) }
func (a Point) Mid(b Point) Point      { return Point{(a.X + b.X) / 2, (a.Y + b.Y) / 2} }
func (a Point) String() string         { return fmt.Sprintf("(%.4f, %.4f)", a.X, a.Y) }
func (a Point) Less(b Point) bool      { return a.X < b.X || (a.X == b.X && a.Y < b.Y) }
func (a Point) Equal(b Point) bool     { return a.X == b.X && a.Y == b.Y }
func (a Point) IsFinite() bool         { return !math.IsNaN(a.X+a.Y) && !math.IsInf(a.X+a.Y, 0) }

// Rect is an axis-aligned rectangle. Min is the lower-left corner.
type Rect struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// NewRect returns the rectangle [x0,x1]×[y0,y1].
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{Min: Point{x0, y0}, Max: Point{x1, y1}}
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Area returns the rectangle's area, or 0 for an empty or inverted rect.
func (r Rect) Area() float64 {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Diagonal returns the length of the rectangle's diagonal.
func (r Rect) Diagonal() float64 { return r.Min.Dist(r.Max) }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point { return r.Min.Mid(r.Max) }

// Contains reports whether p lies strictly inside r.
func (r Rect) Contains(p Point) bool {
	return p.X > r.Min.X && p.X < r.Max.X && p.Y > r.Min.Y && p.Y < r.Max.Y
}

// ContainsClosed reports whether p lies inside r or on its border.
func (r Rect) ContainsClosed(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Polygon returns the rectangle's corners in counter-clockwise order.
func (r Rect) Polygon() []Point {
	return []Point{
		{r.Min.X, r.Min.Y},
		{r.Max.X, r.Min.Y},
		{r.Max.X, r.Max.Y},
		{r.Min.X, r.Max.Y},
	}
}

// Inset pulls p strictly inside r by at least margin on every side.
func (r Rect) Inset(p Point, margin float64) Point {
	return Point{
		X: Clamp(p.X, r.Min.X+margin, r.Max.X-margin),
		Y: Clamp(p.Y, r.Min.Y+margin, r.Max.Y-margin),
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g]x[%g,%g]", r.Min.X, r.Max.X, r.Min.Y, r.Max.Y)
}

// Site is a sampled generation point. ID is stable for the life of a run and
// doubles as the index of the Voronoi cell the site seeds.
type Site struct {
	ID  int   `json:"id"`
	Pos Point `json:"pos"`
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp linearly interpolates between a and b.
func Lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*t
}
