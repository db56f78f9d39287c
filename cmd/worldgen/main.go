// Command worldgen generates one world from a seed and writes it out as an
// image and, optionally, a SQLite export of the dual graph.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/image/bmp"

	"github.com/talgya/worldgen/internal/controls"
	"github.com/talgya/worldgen/internal/failure"
	"github.com/talgya/worldgen/internal/geom"
	"github.com/talgya/worldgen/internal/persistence"
	"github.com/talgya/worldgen/internal/raster"
	"github.com/talgya/worldgen/internal/rbf"
	"github.com/talgya/worldgen/internal/sampler"
	"github.com/talgya/worldgen/internal/world"
)

func main() {
	def := world.DefaultGenConfig()

	seed := flag.Uint64("seed", envUintOrDefault("WORLDGEN_SEED", def.Seed), "random seed (0 = random)")
	count := flag.Int("count", envIntOrDefault("WORLDGEN_COUNT", def.Count), "number of cells")
	size := flag.Float64("size", def.Bounds.Width(), "side of the square sampling bounds")
	sampling := flag.String("sampling", envOrDefault("WORLDGEN_SAMPLING", string(def.Sampling)), "site sampling: uniform or bluenoise")
	relax := flag.Int("relax", def.Relax, "Lloyd relaxation iterations")
	peaks := flag.Int("peaks", def.Peaks, "peaks to synthesize when no elevation controls are given")
	distribution := flag.String("distribution", string(def.Distribution), "peak placement: centered or uniform")
	moistureSources := flag.Int("moisture-sources", 0, "moisture controls to synthesize (0 = diffuse from the ocean)")
	controlsPath := flag.String("controls", "", "JSON file of control points")
	kernel := flag.String("kernel", string(def.Kernel), "interpolation kernel: gaussian or thin-plate")
	kernelWidth := flag.Float64("kernel-width", 0, "gaussian width (0 = derived from the controls)")
	seaLevel := flag.Float64("sea-level", def.SeaLevel, "elevation threshold for ocean")
	width := flag.Int("width", def.Width, "raster width in pixels")
	height := flag.Int("height", def.Height, "raster height in pixels")
	scale := flag.Int("scale", 1, "nearest-neighbor upscale factor for written images")
	workers := flag.Int("workers", envIntOrDefault("WORLDGEN_WORKERS", 0), "worker goroutines (0 = one per CPU)")
	out := flag.String("out", "world.png", "biome image path (.png or .bmp, empty to skip)")
	elevOut := flag.String("elevation-out", "", "height-map image path (.png or .bmp)")
	graphOut := flag.String("graph-out", "", "dual-graph preview path: borders, links and sites (.png or .bmp)")
	dbPath := flag.String("db", envOrDefault("WORLDGEN_DB", ""), "SQLite export path (empty to skip)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	// ── Logging ───────────────────────────────────────────────────────
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, opts)
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	// ── Config ────────────────────────────────────────────────────────
	cfg := def
	cfg.Seed = *seed
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64()
	}
	cfg.Count = *count
	cfg.Bounds = geom.NewRect(0, 0, *size, *size)
	cfg.Sampling = sampler.Method(*sampling)
	cfg.Relax = *relax
	cfg.Peaks = *peaks
	cfg.Distribution = controls.Distribution(*distribution)
	cfg.MoistureSources = *moistureSources
	cfg.Kernel = rbf.Kernel(*kernel)
	cfg.KernelWidth = *kernelWidth
	cfg.SeaLevel = *seaLevel
	cfg.Width, cfg.Height = *width, *height
	cfg.Workers = *workers

	if *controlsPath != "" {
		cps, err := world.LoadControls(*controlsPath)
		if err != nil {
			slog.Error("failed to load controls", "path", *controlsPath, "error", err)
			os.Exit(1)
		}
		cfg.Controls = cps
		slog.Info("controls loaded", "path", *controlsPath, "count", len(cps))
	}

	slog.Info("generating world",
		"seed", cfg.Seed,
		"cells", humanize.Comma(int64(cfg.Count)),
		"bounds", cfg.Bounds.String(),
		"sampling", cfg.Sampling,
		"kernel", cfg.Kernel,
	)

	// ── Generate ──────────────────────────────────────────────────────
	w, err := world.Generate(cfg)
	if err != nil {
		exitOnGenerate(err)
	}

	sum := w.Summarize()
	slog.Info("world ready",
		"id", w.ID,
		"cells", humanize.Comma(int64(sum.Cells)),
		"edges", humanize.Comma(int64(sum.Edges)),
		"corners", humanize.Comma(int64(sum.Corners)),
		"land", fmt.Sprintf("%.1f%%", sum.Land*100),
		"sinks", sum.Sinks,
		"rivers", sum.Rivers,
		"max_flow", sum.MaxFlow,
		"elapsed", w.Elapsed,
	)
	for _, bc := range world.BiomeTable(w.Graph) {
		slog.Info("biome", "type", bc.Biome.String(), "count", bc.Count)
	}

	// ── Images ────────────────────────────────────────────────────────
	if w.Raster != nil {
		if *out != "" {
			if err := writeImage(*out, raster.Upscale(w.Raster.Image(raster.DefaultPalette()), *scale)); err != nil {
				slog.Error("failed to write image", "path", *out, "error", err)
				os.Exit(1)
			}
			slog.Info("image written", "path", *out)
		}
		if *elevOut != "" {
			if err := writeImage(*elevOut, raster.Upscale(w.Raster.ElevationImage(w.Graph), *scale)); err != nil {
				slog.Error("failed to write height map", "path", *elevOut, "error", err)
				os.Exit(1)
			}
			slog.Info("height map written", "path", *elevOut)
		}
		if *graphOut != "" {
			if err := writeImage(*graphOut, raster.Upscale(w.Raster.GraphImage(w.Graph, raster.DefaultPalette()), *scale)); err != nil {
				slog.Error("failed to write graph preview", "path", *graphOut, "error", err)
				os.Exit(1)
			}
			slog.Info("graph preview written", "path", *graphOut)
		}
	}

	// ── Export ────────────────────────────────────────────────────────
	if *dbPath != "" {
		if dir := filepath.Dir(*dbPath); dir != "." {
			os.MkdirAll(dir, 0755)
		}
		db, err := persistence.Open(*dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.SaveWorld(w); err != nil {
			slog.Error("failed to export world", "error", err)
			db.Close()
			os.Exit(1)
		}
		if fi, err := os.Stat(*dbPath); err == nil {
			slog.Info("world exported", "path", *dbPath, "size", humanize.Bytes(uint64(fi.Size())))
		}
	}
}

// exitOnGenerate reports a pipeline failure. Contract violations are bugs
// and exit 2; correctable input errors exit 1.
func exitOnGenerate(err error) {
	attrs := []any{"error", err}
	if id, ok := failure.CellID(err); ok {
		attrs = append(attrs, "id", id)
	}
	if failure.IsContract(err) {
		slog.Error("generation failed: pipeline contract violated", attrs...)
		os.Exit(2)
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		attrs = append(attrs, "kind", fe.Kind.Error(), "op", fe.Op)
	}
	slog.Error("generation failed", attrs...)
	os.Exit(1)
}

// writeImage encodes img by file extension.
func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeImage(f, path, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeImage(w io.Writer, path string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bmp":
		return bmp.Encode(w, img)
	case ".png", "":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported image format %q", filepath.Ext(path))
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envUintOrDefault(key string, defaultVal uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}
