// Package persistence exports generated worlds to SQLite.
// Cells are written in site-id order so a fixed seed always produces the
// same rows.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/rbf"
	"github.com/talgya/worldgen/internal/voronoi"
	"github.com/talgya/worldgen/internal/world"
)

// DB wraps a SQLite connection for world exports.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cells (
		id INTEGER PRIMARY KEY,
		x REAL NOT NULL,
		y REAL NOT NULL,
		boundary INTEGER NOT NULL,
		state INTEGER NOT NULL,
		elevation REAL NOT NULL,
		moisture REAL NOT NULL,
		downslope INTEGER NOT NULL,
		flow INTEGER NOT NULL,
		biome INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cell_neighbors (
		cell_id INTEGER NOT NULL,
		neighbor_id INTEGER NOT NULL,
		PRIMARY KEY (cell_id, neighbor_id)
	);

	CREATE TABLE IF NOT EXISTS cell_polygons (
		cell_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		corner_id INTEGER NOT NULL,
		PRIMARY KEY (cell_id, seq)
	);

	CREATE TABLE IF NOT EXISTS corners (
		id INTEGER PRIMARY KEY,
		x REAL NOT NULL,
		y REAL NOT NULL,
		cells_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS controls (
		id INTEGER PRIMARY KEY,
		field TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		value REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cells_biome ON cells(biome);
	CREATE INDEX IF NOT EXISTS idx_cells_downslope ON cells(downslope);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// cellRow mirrors the cells table.
type cellRow struct {
	ID        int     `db:"id"`
	X         float64 `db:"x"`
	Y         float64 `db:"y"`
	Boundary  bool    `db:"boundary"`
	State     uint8   `db:"state"`
	Elevation float64 `db:"elevation"`
	Moisture  float64 `db:"moisture"`
	Downslope int     `db:"downslope"`
	Flow      int     `db:"flow"`
	Biome     uint8   `db:"biome"`
}

type vertexRow struct {
	CellID   int     `db:"cell_id"`
	Seq      int     `db:"seq"`
	X        float64 `db:"x"`
	Y        float64 `db:"y"`
	CornerID int     `db:"corner_id"`
}

type edgeRow struct {
	CellID     int `db:"cell_id"`
	NeighborID int `db:"neighbor_id"`
}

type cornerRow struct {
	ID        int     `db:"id"`
	X         float64 `db:"x"`
	Y         float64 `db:"y"`
	CellsJSON string  `db:"cells_json"`
}

// SaveGraph writes every cell, edge, polygon vertex, and corner of g
// (full replace, one transaction).
func (db *DB) SaveGraph(g *voronoi.Graph) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"cells", "cell_neighbors", "cell_polygons", "corners"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	cellStmt, err := tx.Preparex(`INSERT INTO cells
		(id, x, y, boundary, state, elevation, moisture, downslope, flow, biome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer cellStmt.Close()

	edgeStmt, err := tx.Preparex("INSERT INTO cell_neighbors (cell_id, neighbor_id) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	vertStmt, err := tx.Preparex("INSERT INTO cell_polygons (cell_id, seq, x, y, corner_id) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer vertStmt.Close()

	for i := range g.Cells {
		c := &g.Cells[i]
		boundary := 0
		if c.Boundary {
			boundary = 1
		}
		a := c.Attr
		_, err := cellStmt.Exec(
			c.ID, c.Site.X, c.Site.Y, boundary, a.State,
			a.Elevation, a.Moisture, a.Downslope, a.Flow, a.Biome,
		)
		if err != nil {
			return fmt.Errorf("insert cell %d: %w", c.ID, err)
		}
		for _, n := range c.Neighbors {
			if _, err := edgeStmt.Exec(c.ID, n); err != nil {
				return fmt.Errorf("insert edge %d-%d: %w", c.ID, n, err)
			}
		}
		for k, p := range c.Polygon {
			corner := -1
			if k < len(c.Corners) {
				corner = c.Corners[k]
			}
			if _, err := vertStmt.Exec(c.ID, k, p.X, p.Y, corner); err != nil {
				return fmt.Errorf("insert vertex %d/%d: %w", c.ID, k, err)
			}
		}
	}

	for i, cr := range g.Corners {
		cellsJSON, _ := json.Marshal(cr.Cells)
		_, err := tx.Exec("INSERT INTO corners (id, x, y, cells_json) VALUES (?, ?, ?, ?)",
			i, cr.Pos.X, cr.Pos.Y, string(cellsJSON))
		if err != nil {
			return fmt.Errorf("insert corner %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// SaveControls writes the fitted control points (full replace).
func (db *DB) SaveControls(cps []rbf.ControlPoint) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM controls"); err != nil {
		return err
	}
	for i, c := range cps {
		_, err := tx.Exec("INSERT INTO controls (id, field, x, y, value) VALUES (?, ?, ?, ?, ?)",
			i, c.Field, c.Pos.X, c.Pos.Y, c.Value)
		if err != nil {
			return fmt.Errorf("insert control %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadControls reads back the stored control points in id order.
func (db *DB) LoadControls() ([]rbf.ControlPoint, error) {
	var rows []struct {
		ID    int     `db:"id"`
		Field string  `db:"field"`
		X     float64 `db:"x"`
		Y     float64 `db:"y"`
		Value float64 `db:"value"`
	}
	if err := db.conn.Select(&rows, "SELECT id, field, x, y, value FROM controls ORDER BY id"); err != nil {
		return nil, err
	}
	out := make([]rbf.ControlPoint, len(rows))
	for i, r := range rows {
		out[i] = rbf.ControlPoint{Pos: geom.Point{X: r.X, Y: r.Y}, Value: r.Value, Field: r.Field}
	}
	return out, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveWorld performs a full export of a generated world.
func (db *DB) SaveWorld(w *world.World) error {
	slog.Info("saving world", "id", w.ID, "cells", w.CellCount(), "corners", len(w.Graph.Corners))

	if err := db.SaveGraph(w.Graph); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}
	if err := db.SaveControls(w.Controls); err != nil {
		return fmt.Errorf("save controls: %w", err)
	}
	cfgJSON, err := json.Marshal(w.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	b := w.Graph.Bounds
	meta := map[string]string{
		"run_id": w.ID,
		"seed":   strconv.FormatUint(w.Config.Seed, 10),
		"cells":  strconv.Itoa(w.CellCount()),
		"bounds": fmt.Sprintf("%g,%g,%g,%g", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y),
		"config": string(cfgJSON),
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	slog.Info("world saved")
	return nil
}

// LoadGraph rebuilds the exported graph. Neighbor symmetry is re-checked.
func (db *DB) LoadGraph() (*voronoi.Graph, error) {
	boundsStr, err := db.GetMeta("bounds")
	if err != nil {
		return nil, fmt.Errorf("read bounds: %w", err)
	}
	var b geom.Rect
	if _, err := fmt.Sscanf(boundsStr, "%g,%g,%g,%g", &b.Min.X, &b.Min.Y, &b.Max.X, &b.Max.Y); err != nil {
		return nil, fmt.Errorf("parse bounds %q: %w", boundsStr, err)
	}

	var rows []cellRow
	if err := db.conn.Select(&rows, `SELECT id, x, y, boundary, state, elevation, moisture,
		downslope, flow, biome FROM cells ORDER BY id`); err != nil {
		return nil, fmt.Errorf("load cells: %w", err)
	}
	cells := make([]voronoi.Cell, len(rows))
	for i, r := range rows {
		if r.ID != i {
			return nil, fmt.Errorf("load cells: missing cell %d", i)
		}
		cells[i] = voronoi.Cell{
			ID:       r.ID,
			Site:     geom.Point{X: r.X, Y: r.Y},
			Boundary: r.Boundary,
			Attr: voronoi.Attributes{
				State:     voronoi.State(r.State),
				Elevation: r.Elevation,
				Moisture:  r.Moisture,
				Downslope: r.Downslope,
				Flow:      r.Flow,
				Biome:     voronoi.Biome(r.Biome),
			},
		}
	}

	var edges []edgeRow
	if err := db.conn.Select(&edges, "SELECT cell_id, neighbor_id FROM cell_neighbors ORDER BY cell_id, neighbor_id"); err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	for _, e := range edges {
		if e.CellID < 0 || e.CellID >= len(cells) {
			return nil, fmt.Errorf("load edges: unknown cell %d", e.CellID)
		}
		cells[e.CellID].Neighbors = append(cells[e.CellID].Neighbors, e.NeighborID)
	}

	var verts []vertexRow
	if err := db.conn.Select(&verts, "SELECT cell_id, seq, x, y, corner_id FROM cell_polygons ORDER BY cell_id, seq"); err != nil {
		return nil, fmt.Errorf("load polygons: %w", err)
	}
	for _, v := range verts {
		if v.CellID < 0 || v.CellID >= len(cells) {
			return nil, fmt.Errorf("load polygons: unknown cell %d", v.CellID)
		}
		c := &cells[v.CellID]
		c.Polygon = append(c.Polygon, geom.Point{X: v.X, Y: v.Y})
		c.Corners = append(c.Corners, v.CornerID)
	}

	g, err := voronoi.NewGraph(b, cells)
	if err != nil {
		return nil, err
	}

	var corners []cornerRow
	if err := db.conn.Select(&corners, "SELECT id, x, y, cells_json FROM corners ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load corners: %w", err)
	}
	g.Corners = make([]voronoi.Corner, len(corners))
	for i, cr := range corners {
		var ids []int
		if err := json.Unmarshal([]byte(cr.CellsJSON), &ids); err != nil {
			return nil, fmt.Errorf("decode corner %d: %w", cr.ID, err)
		}
		g.Corners[i] = voronoi.Corner{Pos: geom.Point{X: cr.X, Y: cr.Y}, Cells: ids}
	}
	return g, nil
}
