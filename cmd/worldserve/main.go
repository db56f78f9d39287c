// Command worldserve serves world previews over HTTP. Each request
// regenerates a world from scratch with the requested parameters.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/talgya/worldgen/internal/api"
	"github.com/talgya/worldgen/internal/persistence"
	"github.com/talgya/worldgen/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	port := envIntOrDefault("WORLDGEN_PORT", 8080)
	adminKey := os.Getenv("WORLDGEN_ADMIN_KEY")
	dbPath := envOrDefault("WORLDGEN_DB", "data/worldgen.db")
	rate := envIntOrDefault("WORLDGEN_RATE_LIMIT", 60)
	proxies, err := api.ParseProxies(os.Getenv("WORLDGEN_TRUSTED_PROXIES"))
	if err != nil {
		slog.Error("invalid WORLDGEN_TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}
	var origins []string
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	base := world.DefaultGenConfig()
	base.Count = envIntOrDefault("WORLDGEN_COUNT", 1000)
	base.Workers = envIntOrDefault("WORLDGEN_WORKERS", 0)
	base.Width, base.Height = 0, 0

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if dbPath != "" {
		os.MkdirAll(filepath.Dir(dbPath), 0755)
		db, err = persistence.Open(dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", dbPath)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	srv := &api.Server{
		Base:      base,
		DB:        db,
		Port:      port,
		AdminKey:  adminKey,
		RateLimit: rate,

		TrustedProxies: proxies,
		Origins:        origins,
	}
	srv.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	fmt.Println("worldserve stopped.")
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
