package voronoi

import (
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/worldgen/internal/delaunay"
	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/parallel"
)

// areaTolerance is the relative slack allowed between a cell's clipped
// polygon area and the fan of its circumcenter triangles.
const areaTolerance = 1e-6

// Build derives the dual graph of tri, clipping every cell to bounds.
// Every site must lie strictly inside bounds.
func Build(tri *delaunay.Triangulation, bounds geom.Rect, workers int) (*Graph, error) {
	const op = "voronoi.Build"
	if bounds.Area() <= 0 {
		return nil, failure.New(failure.ErrInvalidParameter, op, failure.NoID, "bounds %v has no area", bounds)
	}
	n := len(tri.Sites)
	for _, s := range tri.Sites {
		if !bounds.Contains(s.Pos) {
			return nil, failure.New(failure.ErrInvalidParameter, op, s.ID, "site %v outside bounds %v", s.Pos, bounds)
		}
	}

	g := &Graph{Bounds: bounds, Cells: make([]Cell, n)}
	boundary := tri.BoundarySites()
	for i, s := range tri.Sites {
		g.Cells[i] = Cell{
			ID:       i,
			Site:     s.Pos,
			Boundary: boundary[i],
			Attr:     Attributes{Downslope: Unrouted},
		}
	}
	for _, e := range tri.Edges() {
		g.Cells[e.A].Neighbors = append(g.Cells[e.A].Neighbors, e.B)
		g.Cells[e.B].Neighbors = append(g.Cells[e.B].Neighbors, e.A)
	}

	// Hull sites are clipped against every site; this also recovers hull
	// adjacencies a finite super-triangle can miss.
	byDistance := sitesByX(tri.Sites)
	extra := make([][]int, n)
	err := parallel.ForEach(n, workers, func(i int) error {
		c := &g.Cells[i]
		if c.Boundary {
			poly, adj := clipAgainstAll(c.ID, c.Site, bounds, tri.Sites, byDistance)
			c.Polygon = poly
			extra[i] = adj
		} else {
			c.Polygon = clipAgainst(c.Site, bounds, tri.Sites, c.Neighbors)
		}
		if area := geom.Area(c.Polygon); len(c.Polygon) < 3 || area <= 0 {
			return failure.New(failure.ErrGeometry, op, i,
				"degenerate cell polygon (%d vertices, area %g, boundary=%t)", len(c.Polygon), area, c.Boundary)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	added := 0
	for i, adj := range extra {
		for _, j := range adj {
			if !containsUnsorted(g.Cells[i].Neighbors, j) {
				g.Cells[i].Neighbors = append(g.Cells[i].Neighbors, j)
				g.Cells[j].Neighbors = append(g.Cells[j].Neighbors, i)
				added++
			}
		}
	}

	g.edges = make(map[uint64]struct{}, n*3)
	for i := range g.Cells {
		nb := g.Cells[i].Neighbors
		sort.Ints(nb)
		g.Cells[i].Neighbors = dedupeSorted(nb)
		for _, j := range g.Cells[i].Neighbors {
			g.edges[edgeKey(i, j)] = struct{}{}
		}
	}

	if err := checkFans(g, tri); err != nil {
		return nil, err
	}
	for i := range g.Cells {
		for _, j := range g.Cells[i].Neighbors {
			if !contains(g.Cells[j].Neighbors, i) {
				return nil, failure.New(failure.ErrGeometry, op, i, "edge to %d is not mutual", j)
			}
		}
	}

	buildCorners(g)

	slog.Debug("dual graph built",
		"cells", n,
		"edges", len(g.edges),
		"corners", len(g.Corners),
		"hull_edges_recovered", added,
	)
	return g, nil
}

// NewGraph assembles a graph from pre-built cells, e.g. a reloaded export.
// Neighbor lists must already be symmetric.
func NewGraph(bounds geom.Rect, cells []Cell) (*Graph, error) {
	g := &Graph{Bounds: bounds, Cells: cells, edges: make(map[uint64]struct{}, len(cells)*3)}
	for i := range cells {
		if cells[i].ID != i {
			return nil, failure.New(failure.ErrInvalidParameter, "voronoi.NewGraph", i, "cell id %d at index %d", cells[i].ID, i)
		}
		sort.Ints(cells[i].Neighbors)
		for _, j := range cells[i].Neighbors {
			if j < 0 || j >= len(cells) || j == i {
				return nil, failure.New(failure.ErrInvalidParameter, "voronoi.NewGraph", i, "bad neighbor %d", j)
			}
			g.edges[edgeKey(i, j)] = struct{}{}
		}
	}
	for i := range cells {
		for _, j := range cells[i].Neighbors {
			if !containsUnsorted(cells[j].Neighbors, i) {
				return nil, failure.New(failure.ErrGeometry, "voronoi.NewGraph", i, "edge to %d is not mutual", j)
			}
		}
	}
	return g, nil
}

// clipAgainst intersects bounds with the bisector half-planes toward each candidate.
func clipAgainst(site geom.Point, bounds geom.Rect, sites []geom.Site, candidates []int) []geom.Point {
	poly := bounds.Polygon()
	for _, j := range candidates {
		poly, _ = geom.Clip(poly, geom.Bisector(site, sites[j].Pos))
		if len(poly) == 0 {
			break
		}
	}
	return poly
}

// clipAgainstAll builds the exact bounded Voronoi cell of site id by clipping
// against sites in order of x-distance, stopping once no remaining site can
// reach the polygon. It also reports which sites own an edge of the result.
func clipAgainstAll(id int, site geom.Point, bounds geom.Rect, sites []geom.Site, byX []int) ([]geom.Point, []int) {
	poly := bounds.Polygon()
	reach := maxReach(site, poly)

	// Walk outwards from the site's position in the x-sorted order.
	pos := sort.Search(len(byX), func(k int) bool {
		p := sites[byX[k]].Pos
		return p.X > site.X || (p.X == site.X && sites[byX[k]].ID >= id)
	})
	var cut []int
	lo, hi := pos-1, pos
	for lo >= 0 || hi < len(byX) {
		var j int
		switch {
		case lo < 0:
			j, hi = byX[hi], hi+1
		case hi >= len(byX):
			j, lo = byX[lo], lo-1
		case site.X-sites[byX[lo]].Pos.X < sites[byX[hi]].Pos.X-site.X:
			j, lo = byX[lo], lo-1
		default:
			j, hi = byX[hi], hi+1
		}
		if j == id {
			continue
		}
		other := sites[j].Pos
		if math.Abs(other.X-site.X) > 2*reach {
			// Sorted by x-distance: nothing further out can clip.
			break
		}
		if other.Dist(site) > 2*reach {
			continue
		}
		var clipped bool
		poly, clipped = geom.Clip(poly, geom.Bisector(site, other))
		if clipped {
			cut = append(cut, j)
			reach = maxReach(site, poly)
		}
		if len(poly) == 0 {
			return nil, nil
		}
	}

	return poly, owners(site, poly, sites, cut)
}

// owners returns the candidates whose bisector carries an edge of poly.
func owners(site geom.Point, poly []geom.Point, sites []geom.Site, candidates []int) []int {
	var out []int
	n := len(poly)
	for _, j := range candidates {
		h := geom.Bisector(site, sites[j].Pos)
		scale := h.Normal.Len2()
		tol := 1e-9 * scale
		for k := 0; k < n; k++ {
			a, b := poly[k], poly[(k+1)%n]
			if a.Dist2(b) < 1e-18*scale {
				continue
			}
			if math.Abs(h.Eval(a)) <= tol && math.Abs(h.Eval(b)) <= tol {
				out = append(out, j)
				break
			}
		}
	}
	return out
}

func maxReach(site geom.Point, poly []geom.Point) float64 {
	r := 0.0
	for _, p := range poly {
		r = math.Max(r, p.Dist(site))
	}
	return r
}

func sitesByX(sites []geom.Site) []int {
	idx := make([]int, len(sites))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		pa, pb := sites[idx[a]].Pos, sites[idx[b]].Pos
		if pa.X != pb.X {
			return pa.X < pb.X
		}
		return sites[idx[a]].ID < sites[idx[b]].ID
	})
	return idx
}

// checkFans verifies that every interior cell whose circumcenters all lie in
// bounds has the same area as the fan of triangles (site, cc_i, cc_i+1).
func checkFans(g *Graph, tri *delaunay.Triangulation) error {
	incident := tri.Incident()
	for i := range g.Cells {
		c := &g.Cells[i]
		if c.Boundary {
			continue
		}
		ccs := make([]geom.Point, 0, len(incident[i]))
		inside := true
		for _, ti := range incident[i] {
			cc, err := tri.Circumcenter(ti)
			if err != nil {
				return failure.New(failure.ErrGeometry, "voronoi.Build", i, "%v", err)
			}
			if !g.Bounds.ContainsClosed(cc) {
				inside = false
				break
			}
			ccs = append(ccs, cc)
		}
		if !inside {
			continue
		}
		sort.Slice(ccs, func(a, b int) bool {
			return angle(c.Site, ccs[a]) < angle(c.Site, ccs[b])
		})
		fan := 0.0
		for k := range ccs {
			fan += geom.TriangleArea(c.Site, ccs[k], ccs[(k+1)%len(ccs)])
		}
		area := c.Area()
		if math.Abs(fan-area) > areaTolerance*math.Max(area, 1e-12) {
			return failure.New(failure.ErrGeometry, "voronoi.Build", i,
				"polygon area %g differs from circumcenter fan area %g", area, fan)
		}
	}
	return nil
}

func angle(origin, p geom.Point) float64 {
	return math.Atan2(p.Y-origin.Y, p.X-origin.X)
}

// buildCorners deduplicates polygon vertices into shared corners.
func buildCorners(g *Graph) {
	quantum := 1e-9 * g.Bounds.Diagonal()
	type key struct{ x, y int64 }
	index := make(map[key]int)
	for i := range g.Cells {
		c := &g.Cells[i]
		c.Corners = make([]int, len(c.Polygon))
		for k, p := range c.Polygon {
			kk := key{int64(math.Round(p.X / quantum)), int64(math.Round(p.Y / quantum))}
			ci, ok := index[kk]
			if !ok {
				ci = len(g.Corners)
				index[kk] = ci
				g.Corners = append(g.Corners, Corner{Pos: p})
			}
			c.Corners[k] = ci
			if cells := g.Corners[ci].Cells; len(cells) == 0 || cells[len(cells)-1] != i {
				g.Corners[ci].Cells = append(g.Corners[ci].Cells, i)
			}
		}
	}
}

func containsUnsorted(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func dedupeSorted(s []int) []int {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
