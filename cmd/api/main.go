package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iconpress/iconpress/internal/api"
	"github.com/iconpress/iconpress/internal/config"
	"github.com/iconpress/iconpress/internal/fetch"
	"github.com/iconpress/iconpress/internal/matte"
	"github.com/iconpress/iconpress/internal/pipeline"
	"github.com/iconpress/iconpress/internal/queue"
	"github.com/iconpress/iconpress/internal/ratelimit"
	"github.com/iconpress/iconpress/internal/search"
	"github.com/iconpress/iconpress/internal/storage"
	"github.com/iconpress/iconpress/internal/store"
	"github.com/iconpress/iconpress/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "iconpress-api",
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

	fetcher := fetch.NewFetcher(fetch.Config{
		MaxBytes:     cfg.Fetch.MaxBytes,
		Timeout:      cfg.Fetch.Timeout,
		AllowedHosts: cfg.Fetch.AllowedHosts,
	})
	processor := pipeline.NewProcessor(fetcher)

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Printf("redis client close error: %v", err)
		}
	}()

	rateLimiter, err := ratelimit.NewBucket(redisClient, cfg.API.RateLimitCapacity, cfg.API.RateLimitWindow, "")
	if err != nil {
		logger.Fatalf("rate limiter setup failed: %v", err)
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

	var objectStore *storage.Client
	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Printf("object storage unavailable, result URLs disabled: %v", err)
	} else {
		objectStore = storageClient
	}

	var searcher *search.Client
	if cfg.Upstream.SearchAPIKey != "" {
		searcher = search.NewClient(search.Config{
			BaseURL: cfg.Upstream.SearchBaseURL,
			APIKey:  cfg.Upstream.SearchAPIKey,
		})
	} else {
		logger.Printf("icon search disabled: no API key configured")
	}

	deps := api.Deps{
		Processor:    processor,
		Queue:        queueClient,
		JobStore:     jobStore,
		UsageStore:   usageStore,
		RateLimiter:  rateLimiter,
		APIKeyHeader: cfg.API.APIKeyHeader,
	}
	if searcher != nil {
		deps.Search = searcher
	}
	if objectStore != nil {
		deps.Storage = objectStore
	}
	app := api.NewServer(logger, deps)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
