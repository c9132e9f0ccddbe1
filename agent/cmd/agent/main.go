package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/relaxlab/qexp/agent/internal/compute"
	"github.com/relaxlab/qexp/agent/internal/config"
	"github.com/relaxlab/qexp/agent/internal/scraper"
	"github.com/relaxlab/qexp/agent/internal/security"
	"github.com/relaxlab/qexp/agent/internal/shipper"
)

// source pairs a config entry with its scraper.
type source struct {
	cfg config.Source
	s   scraper.Scraper
}

// registry holds the active sources and is swapped on config reload.
type registry struct {
	mu      sync.Mutex
	sources []source
}

// certAuditInterval is how often https exporter certificates are re-checked.
const certAuditInterval = 24 * time.Hour

func (r *registry) configs() []config.Source {
	srcs := r.snapshot()
	out := make([]config.Source, len(srcs))
	for i, s := range srcs {
		out[i] = s.cfg
	}
	return out
}

func (r *registry) snapshot() []source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sources
}

// replace builds scrapers for srcs and returns the IDs that were dropped.
func (r *registry) replace(srcs []config.Source) []string {
	var next []source
	keep := make(map[string]bool, len(srcs))
	for _, src := range srcs {
		s, err := scraper.New(src)
		if err != nil {
			slog.Error("skipping source, could not build scraper", "source", src.ID, "err", err)
			continue
		}
		next = append(next, source{cfg: src, s: s})
		keep[src.ID] = true
		slog.Info("registered source", "id", src.ID, "type", src.Type, "endpoint", src.Endpoint, "path", src.Path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var dropped []string
	for _, old := range r.sources {
		if !keep[old.cfg.ID] {
			dropped = append(dropped, old.cfg.ID)
		}
	}
	r.sources = next
	return dropped
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("qexp-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sources", len(cfg.Agent.Sources),
		"scrape_interval", cfg.Agent.ScrapeInterval,
		"min_points", cfg.Agent.Fit.MinPoints,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := &registry{}
	reg.replace(cfg.Agent.Sources)
	if len(reg.snapshot()) == 0 {
		slog.Warn("no sources configured, agent will idle")
	}

	engine := compute.NewEngine(cfg.Agent.Fit, cfg.Agent.Quality)

	// Start the gRPC shipper: runs until ctx is cancelled.
	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	// Hot reload: sources are rebuilt and fit/quality settings re-applied.
	// Endpoint, intervals and buffer size need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			for _, id := range reg.replace(updated.Agent.Sources) {
				engine.Forget(id)
			}
			engine.SetConfig(updated.Agent.Fit, updated.Agent.Quality)
			ship.SetAuth(updated.Agent.ServerAuth)
			slog.Info("config hot-reloaded", "sources", len(updated.Agent.Sources))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	scrapeAll := func(now time.Time) {
		for _, src := range reg.snapshot() {
			res, err := src.s.Scrape(ctx)
			if err != nil {
				slog.Warn("scrape error", "source", src.cfg.ID, "err", err)
				continue
			}
			for _, result := range engine.Process(res, now) {
				ship.Ship(result)
				slog.Debug("shipped fit",
					"source", result.SourceID,
					"qubit", result.Qubit,
					"state", result.State,
					"score", result.QualityScore,
				)
			}
		}
	}

	// Certificate audit of https exporters: at startup, then daily.
	go func() {
		security.Audit(ctx, reg.configs(), time.Now())
		ticker := time.NewTicker(certAuditInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				security.Audit(ctx, reg.configs(), t)
			}
		}
	}()

	// Scrape loop: poll every ScrapeInterval, fit, grade, ship.
	go func() {
		scrapeAll(time.Now())
		ticker := time.NewTicker(cfg.Agent.ScrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				scrapeAll(t)
			}
		}
	}()

	<-ctx.Done()
	slog.Info("qexp-agent shutting down", "pending", ship.Pending())
}
