package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/arturoyo/Quoorum-sub007/internal/admission"
	"github.com/arturoyo/Quoorum-sub007/internal/analyzer"
	"github.com/arturoyo/Quoorum-sub007/internal/cache"
	"github.com/arturoyo/Quoorum-sub007/internal/config"
	"github.com/arturoyo/Quoorum-sub007/internal/expert"
	"github.com/arturoyo/Quoorum-sub007/internal/ratelimit"
	"github.com/arturoyo/Quoorum-sub007/internal/session"
	"github.com/arturoyo/Quoorum-sub007/internal/storage"
	"github.com/arturoyo/Quoorum-sub007/internal/telemetry"
	"github.com/arturoyo/Quoorum-sub007/web/handlers"
)

func main() {
	port := flag.Int("port", 0, "Server port (default: from config)")
	dbPath := flag.String("db", "", "Database path (default: from config)")
	cfgPath := flag.String("config", "", "Config file path (default: ~/.quoorum/config.yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if *debug {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if *cfgPath != "" {
		cfg, err = config.LoadFrom(*cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}

	slog.Info("Initializing storage", "path", cfg.Storage.Path)
	store, err := storage.NewSQLiteStorage(cfg.Storage.Path)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Initialize(); err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	registry := cfg.CreateRegistry()

	expertRegistry, err := cfg.CreateExpertRegistry()
	if err != nil {
		slog.Error("Failed to load expert catalog", "error", err)
		os.Exit(1)
	}

	ctrl := admission.NewController(func(alert admission.QuotaAlert) {
		slog.Warn("Provider quota alert",
			"provider", alert.Provider, "metric", alert.Metric,
			"type", alert.Type, "percent", alert.Percent)
	})
	cfg.ApplyAdmissionLimits(ctrl)

	promRegistry := prometheus.NewRegistry()
	var sink telemetry.Sink = telemetry.NewPrometheusSink(promRegistry)
	if *debug {
		sink = telemetry.MultiSink{telemetry.LogSink{}, sink}
	}

	analyzerProvider, err := registry.Get(cfg.Defaults.AnalyzerProvider)
	if err != nil {
		slog.Error("Analyzer provider unavailable", "provider", cfg.Defaults.AnalyzerProvider, "error", err)
		os.Exit(1)
	}
	an := analyzer.New(analyzerProvider, cfg.Defaults.AnalyzerModel)

	var rateStore ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.RateLimits.RedisAddr != "" {
		slog.Info("Using redis rate-limit store", "addr", cfg.RateLimits.RedisAddr)
		rateStore = ratelimit.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RateLimits.RedisAddr}))
	}
	limiter := ratelimit.NewLimiter(rateStore)
	limiter.SetCaps(cfg.RateLimits.Standard, cfg.RateLimits.Premium)

	resultCache := cache.New()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if removed := resultCache.ClearExpiredCache(); removed > 0 {
				slog.Debug("Purged expired cache entries", "removed", removed)
			}
		}
	}()

	executor := session.NewExecutor(registry, ctrl, sink)
	manager := session.NewManager(an, expert.NewMatcher(expertRegistry), executor, limiter, resultCache, store)

	h := handlers.New(manager, registry, store, promRegistry)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: h.Routes(),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		slog.Info("Shutting down...")
		server.Close()
	}()

	slog.Info("Starting quoorum server", "url", fmt.Sprintf("http://localhost%s", addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
