package geom

import "math"

// Orient returns twice the signed area of triangle (a, b, c): positive when
// the points turn counter-clockwise, negative when clockwise, zero when collinear.
func Orient(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// InCircle returns a value whose sign tells where d lies relative to the
// circumcircle of the counter-clockwise triangle (a, b, c): positive inside,
// negative outside, zero on the circle.
func InCircle(a, b, c, d Point) float64 {
	ax, ay := a.X-d.X, a.Y-d.Y
	bx, by := b.X-d.X, b.Y-d.Y
	cx, cy := c.X-d.X, c.Y-d.Y
	return (ax*ax+ay*ay)*(bx*cy-cx*by) -
		(bx*bx+by*by)*(ax*cy-cx*ay) +
		(cx*cx+cy*cy)*(ax*by-bx*ay)
}

// Circumcenter returns the circumcenter of triangle (a, b, c).
// ok is false when the triangle is degenerate.
// The solve runs in coordinates relative to a, so small triangles far from
// the origin keep their precision.
func Circumcenter(a, b, c Point) (cc Point, ok bool) {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if d == 0 {
		return Point{}, false
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	cc = Point{
		X: a.X + (cy*b2-by*c2)/d,
		Y: a.Y + (bx*c2-cx*b2)/d,
	}
	return cc, cc.IsFinite()
}

// TriangleArea returns the unsigned area of triangle (a, b, c).
func TriangleArea(a, b, c Point) float64 {
	return math.Abs(Orient(a, b, c)) / 2
}

// Area returns the signed area of a simple polygon (positive when CCW).
// Vertices are taken relative to the first one.
func Area(poly []Point) float64 {
	n := len(poly)
	if n < 3 {
		return 0
	}
	o := poly[0]
	sum := 0.0
	for i := 1; i < n-1; i++ {
		sum += poly[i].Sub(o).Cross(poly[i+1].Sub(o))
	}
	return sum / 2
}

// Centroid returns the area centroid of a polygon, falling back to the
// vertex average when the area vanishes.
func Centroid(poly []Point) Point {
	n := len(poly)
	if n == 0 {
		return Point{}
	}
	a := Area(poly)
	if a == 0 {
		var s Point
		for _, p := range poly {
			s = s.Add(p)
		}
		return s.Mul(1 / float64(n))
	}
	o := poly[0]
	var cx, cy float64
	for i := 1; i < n-1; i++ {
		p, q := poly[i].Sub(o), poly[i+1].Sub(o)
		f := p.Cross(q)
		cx += (p.X + q.X) * f
		cy += (p.Y + q.Y) * f
	}
	return Point{o.X + cx/(6*a), o.Y + cy/(6*a)}
}

// IsConvexCCW reports whether poly is convex with counter-clockwise winding.
// Collinear runs within tol are accepted.
func IsConvexCCW(poly []Point, tol float64) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if Orient(poly[i], poly[(i+1)%n], poly[(i+2)%n]) < -tol {
			return false
		}
	}
	return Area(poly) > 0
}

// ContainsPoint reports whether p lies inside or on a convex CCW polygon.
func ContainsPoint(poly []Point, p Point, tol float64) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if Orient(poly[i], poly[(i+1)%n], p) < -tol {
			return false
		}
	}
	return true
}

// HalfPlane is the set {p : Normal·(p-Origin) <= Offset}.
type HalfPlane struct {
	Origin Point
	Normal Point
	Offset float64
}

// Bisector returns the half-plane of points at least as close to a as to b.
// It is anchored at a so that nearby sites far from the origin do not cancel.
func Bisector(a, b Point) HalfPlane {
	n := b.Sub(a)
	return HalfPlane{Origin: a, Normal: n, Offset: n.Len2() / 2}
}

// Eval is positive outside the half-plane and scales with |Normal|².
func (h HalfPlane) Eval(p Point) float64 { return h.Normal.Dot(p.Sub(h.Origin)) - h.Offset }

// Clip cuts a convex polygon by a half-plane (one Sutherland–Hodgman pass).
// Vertex order is preserved, so a CCW input yields a CCW output.
// clipped reports whether any part of the polygon was removed.
func Clip(poly []Point, h HalfPlane) (out []Point, clipped bool) {
	n := len(poly)
	if n == 0 {
		return nil, false
	}
	eps := 1e-12 * h.Normal.Len2()
	out = make([]Point, 0, n+1)
	for i := 0; i < n; i++ {
		cur, nxt := poly[i], poly[(i+1)%n]
		dc, dn := h.Eval(cur), h.Eval(nxt)
		curIn := dc <= eps
		nxtIn := dn <= eps
		if curIn {
			out = append(out, cur)
		} else {
			clipped = true
		}
		if curIn != nxtIn {
			t := dc / (dc - dn)
			out = append(out, Point{
				X: cur.X + (nxt.X-cur.X)*t,
				Y: cur.Y + (nxt.Y-cur.Y)*t,
			})
		}
	}
	return dedupe(out), clipped
}

// dedupe drops consecutive vertices that coincide.
func dedupe(poly []Point) []Point {
	if len(poly) < 2 {
		return poly
	}
	const eps2 = 1e-20
	out := poly[:1]
	for _, p := range poly[1:] {
		if p.Dist2(out[len(out)-1]) > eps2 {
			out = append(out, p)
		}
	}
	for len(out) > 1 && out[0].Dist2(out[len(out)-1]) <= eps2 {
		out = out[:len(out)-1]
	}
	return out
}
