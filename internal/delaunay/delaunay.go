// Package delaunay builds the Delaunay triangulation of the sampled sites.
// Uses the Bowyer-Watson algorithm with a super-triangle and exact
// orientation and in-circle predicates. Sites are inserted in ascending id
// order, so co-circular ties resolve in favor of the lower ids.
package delaunay

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
)

// Triangle references three site ids in counter-clockwise order.
type Triangle struct {
	A, B, C int
}

// Edge is an undirected triangulation edge with A < B.
type Edge struct {
	A, B int
}

func makeEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// Triangulation is the output of Triangulate. It is only needed until the
// dual graph has been built.
type Triangulation struct {
	Sites     []geom.Site // indexed by site id
	Triangles []Triangle

	edges map[Edge]int // edge -> number of incident triangles
}

// superScale sizes the super-triangle relative to the input's extent.
const superScale = 100.0

// work is a triangle under construction, stored counter-clockwise.
type work struct {
	a, b, c int
	alive   bool
}

func (t work) edges() [3]dirEdge {
	return [3]dirEdge{{t.a, t.b}, {t.b, t.c}, {t.c, t.a}}
}

// dirEdge is a directed edge. In a CCW mesh each one belongs to at most one
// triangle; its reverse names the neighbor across it.
type dirEdge struct{ u, v int }

// mesh is the working triangulation, super-triangle included.
type mesh struct {
	pts   []geom.Point
	tris  []work
	owner map[dirEdge]int
	last  int
}

func (m *mesh) add(a, b, c int) {
	if geom.OrientSign(m.pts[a], m.pts[b], m.pts[c]) < 0 {
		b, c = c, b
	}
	t := work{a: a, b: b, c: c, alive: true}
	m.tris = append(m.tris, t)
	m.last = len(m.tris) - 1
	for _, e := range t.edges() {
		m.owner[e] = m.last
	}
}

func (m *mesh) kill(ti int) {
	m.tris[ti].alive = false
	for _, e := range m.tris[ti].edges() {
		if m.owner[e] == ti {
			delete(m.owner, e)
		}
	}
}

// across returns the triangle on the other side of e.
func (m *mesh) across(e dirEdge) (int, bool) {
	ti, ok := m.owner[dirEdge{e.v, e.u}]
	return ti, ok
}

func (m *mesh) contains(ti int, p geom.Point) bool {
	for _, e := range m.tris[ti].edges() {
		if geom.OrientSign(m.pts[e.u], m.pts[e.v], p) < 0 {
			return false
		}
	}
	return true
}

// locate finds a triangle whose closed interior holds p, walking from the
// newest triangle toward p. The walk terminates on a Delaunay mesh; the
// linear scan only runs if it does not.
func (m *mesh) locate(p geom.Point) (int, bool) {
	ti := m.last
	for steps := 0; steps <= len(m.owner); steps++ {
		next := -1
		for _, e := range m.tris[ti].edges() {
			if geom.OrientSign(m.pts[e.u], m.pts[e.v], p) < 0 {
				nb, ok := m.across(e)
				if !ok {
					return -1, false
				}
				next = nb
				break
			}
		}
		if next < 0 {
			return ti, true
		}
		ti = next
	}
	for ti := range m.tris {
		if m.tris[ti].alive && m.contains(ti, p) {
			return ti, true
		}
	}
	return -1, false
}

// inCircle reports whether p lies strictly inside triangle ti's circumcircle.
// Co-circular points count as outside, so a tie keeps the triangle built
// from the earlier (lower id) sites.
func (m *mesh) inCircle(ti int, p geom.Point) bool {
	t := m.tris[ti]
	return geom.InCircleSign(m.pts[t.a], m.pts[t.b], m.pts[t.c], p) > 0
}

// insert adds point i. The cavity grows by adjacency from the triangle that
// holds the point, so it is always connected and star-shaped around it.
func (m *mesh) insert(i int) bool {
	p := m.pts[i]
	start, ok := m.locate(p)
	if !ok || !m.inCircle(start, p) {
		return false
	}

	cavity := []int{start}
	in := map[int]bool{start: true}
	for k := 0; k < len(cavity); k++ {
		for _, e := range m.tris[cavity[k]].edges() {
			nb, ok := m.across(e)
			if !ok || in[nb] {
				continue
			}
			if m.inCircle(nb, p) {
				in[nb] = true
				cavity = append(cavity, nb)
			}
		}
	}

	var boundary []dirEdge
	for _, ti := range cavity {
		for _, e := range m.tris[ti].edges() {
			if nb, ok := m.across(e); !ok || !in[nb] {
				boundary = append(boundary, e)
			}
		}
	}
	for _, ti := range cavity {
		m.kill(ti)
	}
	for _, e := range boundary {
		m.add(e.u, e.v, i)
	}
	return true
}

// Triangulate computes the Delaunay triangulation of sites. Site ids must be
// 0..len(sites)-1 (in any order).
func Triangulate(sites []geom.Site) (*Triangulation, error) {
	const op = "delaunay.Triangulate"
	if len(sites) < 3 {
		return nil, failure.New(failure.ErrDegenerateInput, op, failure.NoID,
			"need at least 3 sites, got %d", len(sites))
	}

	ordered := make([]geom.Site, len(sites))
	for _, s := range sites {
		if s.ID < 0 || s.ID >= len(sites) {
			return nil, failure.New(failure.ErrDegenerateInput, op, s.ID,
				"site id out of range [0,%d)", len(sites))
		}
		if !s.Pos.IsFinite() {
			return nil, failure.New(failure.ErrDegenerateInput, op, s.ID, "non-finite position %v", s.Pos)
		}
		ordered[s.ID] = s
	}
	if err := checkDistinct(ordered); err != nil {
		return nil, err
	}
	if collinear(ordered) {
		return nil, failure.New(failure.ErrDegenerateInput, op, failure.NoID,
			"all %d sites are collinear", len(sites))
	}

	pts := make([]geom.Point, len(ordered)+3)
	for i, s := range ordered {
		pts[i] = s.Pos
	}
	n := len(ordered)
	minP, maxP := bbox(pts[:n])
	span := math.Max(maxP.X-minP.X, maxP.Y-minP.Y)
	mid := minP.Mid(maxP)
	pts[n] = geom.Point{X: mid.X - superScale*span, Y: mid.Y - superScale*span}
	pts[n+1] = geom.Point{X: mid.X + superScale*span, Y: mid.Y - superScale*span}
	pts[n+2] = geom.Point{X: mid.X, Y: mid.Y + superScale*span}

	m := &mesh{
		pts:   pts,
		tris:  make([]work, 0, 6*n+1),
		owner: make(map[dirEdge]int, 6*n+3),
	}
	m.add(n, n+1, n+2)
	for i := 0; i < n; i++ {
		if !m.insert(i) {
			return nil, failure.New(failure.ErrDegenerateInput, op, i,
				"site %v could not be inserted", pts[i])
		}
	}

	out := &Triangulation{Sites: ordered}
	for _, t := range m.tris {
		if !t.alive || t.a >= n || t.b >= n || t.c >= n {
			continue
		}
		out.Triangles = append(out.Triangles, canonical(pts, t.a, t.b, t.c))
	}
	sort.Slice(out.Triangles, func(i, j int) bool {
		a, b := out.Triangles[i], out.Triangles[j]
		if a.A != b.A {
			return a.A < b.A
		}
		if a.B != b.B {
			return a.B < b.B
		}
		return a.C < b.C
	})
	if len(out.Triangles) == 0 {
		return nil, failure.New(failure.ErrDegenerateInput, op, failure.NoID,
			"no triangle could be formed from %d sites", n)
	}
	out.edges = make(map[Edge]int, len(out.Triangles)*3)
	for _, t := range out.Triangles {
		out.edges[makeEdge(t.A, t.B)]++
		out.edges[makeEdge(t.B, t.C)]++
		out.edges[makeEdge(t.C, t.A)]++
	}

	slog.Debug("triangulation built", "sites", n, "triangles", len(out.Triangles))
	return out, nil
}

// canonical rotates a CCW triangle so that its smallest id comes first.
func canonical(pts []geom.Point, a, b, c int) Triangle {
	if geom.OrientSign(pts[a], pts[b], pts[c]) < 0 {
		b, c = c, b
	}
	switch {
	case b < a && b < c:
		a, b, c = b, c, a
	case c < a && c < b:
		a, b, c = c, a, b
	}
	return Triangle{A: a, B: b, C: c}
}

func bbox(pts []geom.Point) (lo, hi geom.Point) {
	lo, hi = pts[0], pts[0]
	for _, p := range pts[1:] {
		lo.X = math.Min(lo.X, p.X)
		lo.Y = math.Min(lo.Y, p.Y)
		hi.X = math.Max(hi.X, p.X)
		hi.Y = math.Max(hi.Y, p.Y)
	}
	return lo, hi
}

func checkDistinct(sites []geom.Site) error {
	idx := make([]int, len(sites))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		a, b := sites[idx[i]], sites[idx[j]]
		if a.Pos.Equal(b.Pos) {
			return a.ID < b.ID
		}
		return a.Pos.Less(b.Pos)
	})
	for k := 1; k < len(idx); k++ {
		a, b := sites[idx[k-1]], sites[idx[k]]
		if a.Pos.Equal(b.Pos) {
			return failure.New(failure.ErrDegenerateInput, "delaunay.Triangulate", b.ID,
				"duplicates site %d at %v", a.ID, a.Pos)
		}
	}
	return nil
}

// collinear reports whether every site lies on one line, within a tolerance
// scaled to the input's extent.
func collinear(sites []geom.Site) bool {
	pts := make([]geom.Point, len(sites))
	for i, s := range sites {
		pts[i] = s.Pos
	}
	lo, hi := bbox(pts)
	span := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	tol := 1e-12 * span * span

	a := pts[0]
	// Farthest point from a anchors the reference line.
	far := 0
	for i, p := range pts {
		if p.Dist2(a) > pts[far].Dist2(a) {
			far = i
		}
	}
	b := pts[far]
	for _, p := range pts {
		if math.Abs(geom.Orient(a, b, p)) > tol {
			return false
		}
	}
	return true
}

// Edges returns every triangulation edge in ascending (A, B) order.
func (t *Triangulation) Edges() []Edge {
	edges := make([]Edge, 0, len(t.edges))
	for e := range t.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// HasEdge reports whether sites a and b share a triangulation edge.
func (t *Triangulation) HasEdge(a, b int) bool {
	return t.edges[makeEdge(a, b)] > 0
}

// BoundarySites returns, indexed by site id, whether the site touches the
// outer boundary of the triangulation (an edge with a single incident triangle)
// or belongs to no triangle at all.
func (t *Triangulation) BoundarySites() []bool {
	out := make([]bool, len(t.Sites))
	used := make([]bool, len(t.Sites))
	for e, c := range t.edges {
		used[e.A], used[e.B] = true, true
		if c == 1 {
			out[e.A], out[e.B] = true, true
		}
	}
	for i := range out {
		if !used[i] {
			out[i] = true
		}
	}
	return out
}

// Incident returns, indexed by site id, the triangles touching each site.
func (t *Triangulation) Incident() [][]int {
	inc := make([][]int, len(t.Sites))
	for ti, tr := range t.Triangles {
		inc[tr.A] = append(inc[tr.A], ti)
		inc[tr.B] = append(inc[tr.B], ti)
		inc[tr.C] = append(inc[tr.C], ti)
	}
	return inc
}

// Circumcenter returns the circumcenter of triangle ti.
func (t *Triangulation) Circumcenter(ti int) (geom.Point, error) {
	tr := t.Triangles[ti]
	cc, ok := geom.Circumcenter(t.Sites[tr.A].Pos, t.Sites[tr.B].Pos, t.Sites[tr.C].Pos)
	if !ok {
		return geom.Point{}, fmt.Errorf("triangle %d (%d,%d,%d) is degenerate", ti, tr.A, tr.B, tr.C)
	}
	return cc, nil
}
