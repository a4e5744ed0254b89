package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/fertilitypoint/leadrelay/internal/api"
	"github.com/fertilitypoint/leadrelay/internal/bridge"
	"github.com/fertilitypoint/leadrelay/internal/chat"
	"github.com/fertilitypoint/leadrelay/internal/config"
	"github.com/fertilitypoint/leadrelay/internal/ingest"
	"github.com/fertilitypoint/leadrelay/internal/leads"
	"github.com/fertilitypoint/leadrelay/internal/openai"
	"github.com/fertilitypoint/leadrelay/internal/realtime"
	"github.com/fertilitypoint/leadrelay/internal/scheduler"
	"github.com/fertilitypoint/leadrelay/internal/session"
	"github.com/fertilitypoint/leadrelay/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("leadrelay starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// OpenAI client
	if cfg.OpenAIAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}
	llm := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	slog.Info("openai client ready", "model", cfg.OpenAIModel)

	extractor := leads.NewExtractor(llm, slog.Default())

	// Lead sink (optional — without it extraction runs but nothing is forwarded)
	var sink scheduler.LeadSink
	if cfg.LeadSinkURL != "" {
		sink = leads.NewSink(cfg.LeadSinkURL)
		slog.Info("lead sink ready")
	} else {
		slog.Warn("LEAD_SINK_URL not set — extracted leads will be dropped")
	}

	// Forward guard (optional — without Redis, duplicate forwards across
	// overlapping cycles are tolerated)
	var guard leads.ForwardGuard
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		guard = leads.NewRedisGuard(rdb, cfg.LeadWindow, slog.Default())
		slog.Info("forward guard ready", "addr", cfg.RedisAddr)
	} else {
		slog.Warn("redis not configured — running without lead forward guard")
	}

	// WhatsApp sidecar bridge
	wa, err := bridge.Connect(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer wa.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Viewer broadcast hub
	hub := realtime.NewHub(slog.Default())

	// Ingestion pipeline: raw event -> normalizer -> coordinator
	normalizer := chat.NewNormalizer(wa, slog.Default())
	coordinator := ingest.New(db, hub, slog.Default())

	// Session coordinator
	manager := session.NewManager(func() (session.Transport, error) {
		return wa, nil
	}, hub, slog.Default())

	if err := wa.Subscribe(
		func(evt chat.Event) {
			patch, msg := normalizer.Normalize(ctx, evt)
			coordinator.Ingest(ctx, patch, msg)
		},
		manager.HandleSessionEvent,
	); err != nil {
		slog.Error("failed to subscribe to sidecar events", "error", err)
		os.Exit(1)
	}

	if err := manager.Start(ctx); err != nil {
		// The session can still be rebuilt through /api/logout.
		slog.Error("initial session start failed", "error", err)
	}

	// Extraction scheduler
	sched, err := scheduler.New(db, extractor, sink, guard, cfg.LeadInterval, cfg.LeadWindow, slog.Default())
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()

	// HTTP API
	srv := api.NewServer(cfg.Port, db, manager, sched, hub, cfg.FrontendDir, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("leadrelay ready", "port", cfg.Port, "interval", cfg.LeadInterval.String())

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	sched.Stop()
	cancel()
	slog.Info("leadrelay stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
