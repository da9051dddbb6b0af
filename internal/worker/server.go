// Package worker consumes queued icon generation jobs: it calls the
// generation upstream, runs the post-processing pipeline on the result,
// stores the artifact and reports back through the job store and webhooks.
package worker

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iconpress/iconpress/internal/config"
	"github.com/iconpress/iconpress/internal/domain"
	"github.com/iconpress/iconpress/internal/pipeline"
	"github.com/iconpress/iconpress/internal/queue"
	"github.com/iconpress/iconpress/internal/store"
	"github.com/iconpress/iconpress/internal/vectorize"
)

type iconGenerator interface {
	Generate(ctx context.Context, prompt, style string) ([]byte, error)
}

type transformer interface {
	Transform(ctx context.Context, data []byte, req pipeline.Request) (pipeline.Result, error)
}

type artifactStorage interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	sem           chan struct{}
	generator     iconGenerator
	processor     transformer
	storage       artifactStorage
	webhookClient webhookSender
	jobStore      store.GenerationStore
	usageStore    store.UsageStore
	metrics       *metrics
	tracer        trace.Tracer
}

type Deps struct {
	Generator  iconGenerator
	Processor  transformer
	Storage    artifactStorage
	Webhook    webhookSender
	JobStore   store.GenerationStore
	UsageStore store.UsageStore
}

func NewServer(logger *log.Logger, queueCfg config.QueueConfig, workerCfg config.WorkerConfig, deps Deps) (*Server, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("icon generator is required")
	}
	if deps.Processor == nil {
		return nil, fmt.Errorf("pipeline processor is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if deps.JobStore == nil {
		return nil, fmt.Errorf("job store is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:           make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		generator:     deps.Generator,
		processor:     deps.Processor,
		storage:       deps.Storage,
		webhookClient: deps.Webhook,
		jobStore:      deps.JobStore,
		usageStore:    deps.UsageStore,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("iconpress/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeGenerateIcon, s.handleGenerateIcon)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleGenerateIcon(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.GenerationStatusFailed

	payload, err := queue.ParseGenerateIconPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	format := payload.Format
	if format != domain.OutputFormatSVG {
		format = domain.OutputFormatPNG
	}

	ctx, span := s.tracer.Start(ctx, "worker.generate_icon", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.format", format),
		attribute.Bool("job.remove_background", payload.RemoveBackground),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(format, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(format, outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Printf("Working... job_id=%s format=%s remove_bg=%t", payload.JobID, format, payload.RemoveBackground)
	s.updateJobStatus(ctx, payload.JobID, domain.GenerationStatusProcessing)

	raw, err := s.generator.Generate(ctx, payload.Prompt, payload.Style)
	if err != nil {
		s.metrics.generationAttempts.WithLabelValues("error").Inc()
		return s.failJob(ctx, span, payload, fmt.Errorf("generate image: %w", err))
	}
	s.metrics.generationAttempts.WithLabelValues("ok").Inc()

	result, err := s.processor.Transform(ctx, raw, pipeline.Request{
		RemoveBackground: payload.RemoveBackground,
		Vectorize:        format == domain.OutputFormatSVG,
		Matte:            domain.DefaultMatteParams().Clamp(),
		Trace:            domain.DefaultTraceParams().Clamp(),
		TraceFallback:    vectorize.FallbackEmbedRaster,
	})
	if err != nil {
		return s.failJob(ctx, span, payload, fmt.Errorf("post-process image: %w", err))
	}

	objectKey := fmt.Sprintf("generations/%s/icon.%s", payload.JobID, format)
	if err := s.storage.WriteObject(ctx, objectKey, result.Bytes, result.ContentType); err != nil {
		return s.failJob(ctx, span, payload, fmt.Errorf("store artifact: %w", err))
	}

	if err := s.jobStore.SetResult(ctx, payload.JobID, objectKey); err != nil {
		s.logger.Printf("job result update failed job_id=%s err=%v", payload.JobID, err)
	}
	s.updateJobStatus(ctx, payload.JobID, domain.GenerationStatusSucceeded)
	s.logger.Printf("Processed job_id=%s object_key=%s bytes=%d", payload.JobID, objectKey, len(result.Bytes))
	s.recordUsage(ctx, payload, result, time.Since(startedAt))

	if err := s.dispatchWebhook(ctx, payload, "generation.completed", map[string]any{
		"generation_id": payload.JobID,
		"status":        domain.GenerationStatusSucceeded,
		"format":        format,
		"object_key":    objectKey,
		"requested_at":  payload.RequestedAt,
		"completed_at":  time.Now().UTC(),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.GenerationStatusSucceeded
	span.SetStatus(codes.Ok, "processed")
	return nil
}

func (s *Server) failJob(ctx context.Context, span trace.Span, payload queue.GenerateIconPayload, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "generation failed")

	if err := s.jobStore.SetError(ctx, payload.JobID, cause.Error()); err != nil {
		s.logger.Printf("job error update failed job_id=%s err=%v", payload.JobID, err)
	}
	s.updateJobStatus(ctx, payload.JobID, domain.GenerationStatusFailed)

	s.dispatchWebhook(ctx, payload, "generation.failed", map[string]any{
		"generation_id": payload.JobID,
		"status":        domain.GenerationStatusFailed,
		"requested_at":  payload.RequestedAt,
		"failed_at":     time.Now().UTC(),
		"error":         cause.Error(),
	})
	return cause
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Printf("job status update failed job_id=%s status=%s err=%v", jobID, status, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.GenerateIconPayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", payload.JobID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordUsage(ctx context.Context, payload queue.GenerateIconPayload, result pipeline.Result, computeDuration time.Duration) {
	if s.usageStore == nil {
		return
	}

	userID := payload.UserID
	if userID == "" {
		userID = "anonymous"
	}
	computeTimeMS := computeDuration.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	usage := domain.UsageLog{
		UserID:          userID,
		JobID:           payload.JobID,
		Operation:       "generate",
		PixelsProcessed: int64(result.Width) * int64(result.Height),
		BytesOut:        int64(len(result.Bytes)),
		ComputeTimeMS:   computeTimeMS,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		s.logger.Printf("usage log write failed job_id=%s err=%v", payload.JobID, err)
		return
	}

	s.metrics.pixelsProcessedTotal.Add(float64(usage.PixelsProcessed))
	s.metrics.bytesStoredTotal.Add(float64(usage.BytesOut))
	s.metrics.computeTimeMSTotal.Add(float64(usage.ComputeTimeMS))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
