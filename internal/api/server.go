// Package api serves the generator over HTTP for interactive previews.
// Every generate request is a full, independent pipeline run.
// GET endpoints are public. POST /api/v1/snapshot requires a bearer token.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/persistence"
	"github.com/talgya/worldgen/internal/raster"
	"github.com/talgya/worldgen/internal/world"
)

// Limits applied to request-supplied configs.
const (
	MaxCells  = 20000
	MaxPixels = 1024 * 1024
)

// Server serves generated worlds over HTTP.
type Server struct {
	Base     world.GenConfig // Defaults that requests override
	DB       *persistence.DB // Optional snapshot target
	Port     int
	AdminKey string // Bearer token for POST /snapshot. Empty = snapshots disabled.

	// RateLimit caps generation requests per client per hour. Zero means 60.
	RateLimit int
	// TrustedProxies may set X-Forwarded-For. Other peers are keyed by
	// their own address.
	TrustedProxies Proxies
	// Origins are allowed cross-origin callers on top of the local dev
	// servers.
	Origins []string

	started     time.Time
	generations atomic.Int64

	mu   sync.Mutex
	last *world.World
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	rate := s.RateLimit
	if rate == 0 {
		rate = 60
	}
	genLimiter := NewRateLimiter(rate, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/cell/{id}", s.handleCell)

	// Generation endpoints (each call runs the whole pipeline).
	mux.HandleFunc("POST /api/v1/generate", RateLimitMiddleware(genLimiter, s.TrustedProxies, s.handleGenerate))
	mux.HandleFunc("GET /api/v1/raster.png", RateLimitMiddleware(genLimiter, s.TrustedProxies, s.handleRaster))

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return withCORS(s.Origins, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "snapshots", s.DB != nil)

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// devOrigins are the local frontend dev servers, always allowed.
var devOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// withCORS echoes allowed origins and answers preflight requests.
func withCORS(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(devOrigins)+len(origins))
	for _, o := range slices.Concat(devOrigins, origins) {
		if o != "" {
			allowed[o] = true
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no WORLDGEN_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":        "worldgen",
		"uptime_s":    int64(time.Since(s.started).Seconds()),
		"generations": s.generations.Load(),
		"defaults":    s.Base,
	}
	if last := s.lastWorld(); last != nil {
		status["last"] = last.Summarize()
	}
	writeJSON(w, status)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	cfg := s.Base
	cfg.Controls = nil
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		http.Error(w, "invalid config: "+err.Error(), http.StatusBadRequest)
		return
	}
	wd, err := s.generate(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, wd.Summarize())
}

func (s *Server) handleRaster(w http.ResponseWriter, r *http.Request) {
	cfg := s.Base
	q := r.URL.Query()
	for name, dst := range map[string]*int{"count": &cfg.Count, "width": &cfg.Width, "height": &cfg.Height, "relax": &cfg.Relax} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid %s %q", name, v), http.StatusBadRequest)
				return
			}
			*dst = n
		}
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid seed %q", v), http.StatusBadRequest)
			return
		}
		cfg.Seed = seed
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = 256, 256
	}

	wd, err := s.generate(cfg)
	if err != nil {
		writeError(w, err)
		return
	}

	var img image.Image
	switch q.Get("view") {
	case "", "biome":
		img = wd.Raster.Image(raster.DefaultPalette())
	case "elevation":
		img = wd.Raster.ElevationImage(wd.Graph)
	case "graph":
		img = wd.Raster.GraphImage(wd.Graph, raster.DefaultPalette())
	default:
		http.Error(w, "view must be biome, elevation or graph", http.StatusBadRequest)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		http.Error(w, "encode: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-World-Id", wd.ID)
	w.Write(buf.Bytes())
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	wd := s.lastWorld()
	if wd == nil {
		http.Error(w, "no world generated yet", http.StatusNotFound)
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 || id >= wd.Graph.Len() {
		http.Error(w, "cell not found", http.StatusNotFound)
		return
	}
	c := wd.Graph.Cell(id)
	writeJSON(w, map[string]any{
		"world":     wd.ID,
		"id":        c.ID,
		"site":      c.Site,
		"polygon":   c.Polygon,
		"neighbors": c.Neighbors,
		"boundary":  c.Boundary,
		"state":     c.Attr.State.String(),
		"elevation": c.Attr.Elevation,
		"moisture":  c.Attr.Moisture,
		"downslope": c.Attr.Downslope,
		"flow":      c.Attr.Flow,
		"biome":     c.Attr.Biome.String(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	wd := s.lastWorld()
	if wd == nil {
		http.Error(w, "no world generated yet", http.StatusNotFound)
		return
	}
	if err := s.DB.SaveWorld(wd); err != nil {
		slog.Error("snapshot failed", "id", wd.ID, "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"saved": wd.ID, "cells": wd.CellCount()})
}

// generate runs the pipeline for a request and records the result.
func (s *Server) generate(cfg world.GenConfig) (*world.World, error) {
	if cfg.Count > MaxCells {
		return nil, failure.New(failure.ErrInvalidParameter, "api.generate", failure.NoID,
			"count %d exceeds %d", cfg.Count, MaxCells)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, failure.New(failure.ErrInvalidParameter, "api.generate", failure.NoID,
			"resolution %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels)
	}
	wd, err := world.Generate(cfg)
	if err != nil {
		return nil, err
	}
	s.generations.Add(1)
	s.mu.Lock()
	s.last = wd
	s.mu.Unlock()
	return wd, nil
}

func (s *Server) lastWorld() *world.World {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// writeError maps pipeline failures to HTTP statuses. Contract violations
// are server bugs; everything else is correctable input.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case failure.IsContract(err):
		status = http.StatusInternalServerError
		slog.Error("pipeline contract violation", "error", err)
	case errors.Is(err, failure.ErrInvalidParameter):
		status = http.StatusBadRequest
	}
	body := map[string]any{"error": err.Error()}
	if id, ok := failure.CellID(err); ok {
		body["id"] = id
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
