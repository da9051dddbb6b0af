package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/iconpress/iconpress/internal/config"
	"github.com/iconpress/iconpress/internal/genai"
	"github.com/iconpress/iconpress/internal/matte"
	"github.com/iconpress/iconpress/internal/pipeline"
	"github.com/iconpress/iconpress/internal/storage"
	"github.com/iconpress/iconpress/internal/store"
	"github.com/iconpress/iconpress/internal/telemetry"
	"github.com/iconpress/iconpress/internal/webhook"
	"github.com/iconpress/iconpress/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "iconpress-worker",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	if err := matte.Startup(); err != nil {
		logger.Fatalf("image runtime startup failed: %v", err)
	}
	defer matte.Shutdown()

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatalf("storage setup failed: %v", err)
	}
	if err := storageClient.EnsureBucket(ctx); err != nil {
		logger.Fatalf("bucket setup failed: %v", err)
	}

	var jobStore store.GenerationStore
	var usageStore store.UsageStore
	pgStore, err := store.NewPostgresStore(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Printf("postgres unavailable, falling back to in-memory store: %v", err)
		memStore := store.NewMemoryStore()
		jobStore, usageStore = memStore, memStore
	} else {
		defer func() {
			if err := pgStore.Close(); err != nil {
				logger.Printf("postgres close error: %v", err)
			}
		}()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Fatalf("schema setup failed: %v", err)
		}
		jobStore, usageStore = pgStore, pgStore
	}

	generator := genai.NewClient(genai.Config{
		BaseURL: cfg.Upstream.GenBaseURL,
		APIKey:  cfg.Upstream.GenAPIKey,
		Model:   cfg.Upstream.GenModel,
	})
	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret: cfg.Webhook.SigningSecret,
	})

	// The worker only transforms bytes already in hand, so the processor
	// never fetches.
	processor := pipeline.NewProcessor(nil)

	logger.Printf(
		"starting worker concurrency=%d max_active_jobs=%d queue=%s redis=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveJobs,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, worker.Deps{
		Generator:  generator,
		Processor:  processor,
		Storage:    storageClient,
		Webhook:    webhookClient,
		JobStore:   jobStore,
		UsageStore: usageStore,
	})
	if err != nil {
		logger.Fatalf("worker setup failed: %v", err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", srv.MetricsHandler())
		addr := env("WORKER_METRICS_ADDR", ":9090")
		logger.Printf("metrics listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	if err := srv.Run(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}
