package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/iconpress/iconpress/internal/domain"
	"github.com/iconpress/iconpress/internal/id"
	"github.com/iconpress/iconpress/internal/pipeline"
	"github.com/iconpress/iconpress/internal/queue"
	"github.com/iconpress/iconpress/internal/search"
	"github.com/iconpress/iconpress/internal/store"
	"github.com/iconpress/iconpress/internal/vectorize"
)

const resultURLTTL = 15 * time.Minute

type iconProcessor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type iconSearcher interface {
	Search(ctx context.Context, q string, limit int) ([]search.Icon, error)
}

type queueEnqueuer interface {
	EnqueueGenerateIcon(ctx context.Context, payload queue.GenerateIconPayload) (*asynq.TaskInfo, error)
}

type objectStorage interface {
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// Deps carries everything the API server talks to. Search, queue, storage,
// stores and the rate limiter are optional; their endpoints answer 503
// when absent so the pipeline endpoints still work in a minimal deploy.
type Deps struct {
	Processor    iconProcessor
	Search       iconSearcher
	Queue        queueEnqueuer
	JobStore     store.GenerationStore
	UsageStore   store.UsageStore
	Storage      objectStorage
	RateLimiter  RateLimiter
	APIKeyHeader string
}

type Server struct {
	logger       *log.Logger
	processor    iconProcessor
	searcher     iconSearcher
	queueClient  queueEnqueuer
	jobStore     store.GenerationStore
	usageStore   store.UsageStore
	storage      objectStorage
	rateLimiter  RateLimiter
	apiKeyHeader string
	metrics      *metrics
	tracer       trace.Tracer
	mux          *http.ServeMux
}

func NewServer(logger *log.Logger, deps Deps) *Server {
	apiKeyHeader := strings.TrimSpace(deps.APIKeyHeader)
	if apiKeyHeader == "" {
		apiKeyHeader = "X-Api-Key"
	}

	s := &Server{
		logger:       logger,
		processor:    deps.Processor,
		searcher:     deps.Search,
		queueClient:  deps.Queue,
		jobStore:     deps.JobStore,
		usageStore:   deps.UsageStore,
		storage:      deps.Storage,
		rateLimiter:  deps.RateLimiter,
		apiKeyHeader: apiKeyHeader,
		metrics:      newMetrics(),
		tracer:       otel.Tracer("iconpress/api"),
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.withRateLimit(h)
	h = s.withTracing(h)
	h = s.metrics.withHTTPMetrics(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /v1/vectorize", s.handleVectorize)
	s.mux.HandleFunc("GET /v1/remove-background", s.handleRemoveBackground)
	s.mux.HandleFunc("GET /v1/download", s.handleDownload)
	s.mux.HandleFunc("GET /v1/icons", s.handleSearchIcons)
	s.mux.HandleFunc("POST /v1/generations", s.handleCreateGeneration)
	s.mux.HandleFunc("GET /v1/generations/{id}", s.handleGetGeneration)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVectorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := pipeline.Request{
		URL:           q.Get("url"),
		Vectorize:     true,
		Matte:         domain.DefaultMatteParams().Clamp(),
		Trace:         traceParamsFromQuery(q),
		TraceFallback: vectorize.FallbackFail,
	}

	s.runPipeline(w, r, "vectorize", req)
}

func (s *Server) handleRemoveBackground(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := pipeline.Request{
		URL:              q.Get("url"),
		RemoveBackground: true,
		Matte:            s.matteParams(q),
		Trace:            domain.DefaultTraceParams().Clamp(),
	}

	s.runPipeline(w, r, "remove_background", req)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format != domain.OutputFormatSVG {
		format = domain.OutputFormatPNG
	}

	req := pipeline.Request{
		URL:              q.Get("url"),
		RemoveBackground: queryBool(q, "removeBg", false),
		Vectorize:        format == domain.OutputFormatSVG,
		Matte:            s.matteParams(q),
		Trace:            traceParamsFromQuery(q),
		TraceFallback:    vectorize.FallbackFail,
	}

	filename := fmt.Sprintf("icon.%s", format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	s.runPipeline(w, r, "download", req)
}

func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request, operation string, req pipeline.Request) {
	start := time.Now()

	result, err := s.processor.Process(r.Context(), req)
	if err != nil {
		s.metrics.pipelineRequests.WithLabelValues(operation, "error").Inc()
		s.writePipelineError(w, r, operation, err)
		return
	}

	s.metrics.pipelineRequests.WithLabelValues(operation, "ok").Inc()
	s.metrics.pipelineDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	s.recordUsage(r, operation, result, time.Since(start))

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Bytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Bytes)
}

func (s *Server) matteParams(q queryGetter) domain.MatteParams {
	params := matteParamsFromQuery(q)
	if params.RampWidth() < 5 {
		s.logger.Printf("near-binary matte configuration tol=%v hard=%v", params.Tolerance, params.Hardness)
	}
	return params
}

func (s *Server) handleSearchIcons(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "icon search is not configured"})
		return
	}

	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter q is required"})
		return
	}

	icons, err := s.searcher.Search(r.Context(), query, queryInt(q, "limit", 20))
	if err != nil {
		s.logger.Printf("icon search failed query=%q err=%v", query, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "icon search upstream failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query": query,
		"icons": icons,
	})
}

func (s *Server) handleCreateGeneration(w http.ResponseWriter, r *http.Request) {
	if s.queueClient == nil || s.jobStore == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "icon generation is not configured"})
		return
	}

	var req domain.CreateGenerationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = domain.OutputFormatPNG
	}

	now := time.Now().UTC()
	job := domain.GenerationJob{
		ID:               id.New(),
		UserID:           strings.TrimSpace(r.Header.Get(s.apiKeyHeader)),
		Status:           domain.GenerationStatusCreated,
		Prompt:           strings.TrimSpace(req.Prompt),
		Style:            strings.TrimSpace(req.Style),
		Format:           format,
		RemoveBackground: req.RemoveBackground,
		WebhookURL:       req.WebhookURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.jobStore.Create(r.Context(), job); err != nil {
		s.logger.Printf("create generation failed job_id=%s err=%v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create generation"})
		return
	}

	payload := queue.GenerateIconPayload{
		JobID:            job.ID,
		UserID:           job.UserID,
		Prompt:           job.Prompt,
		Style:            job.Style,
		Format:           job.Format,
		RemoveBackground: job.RemoveBackground,
		WebhookURL:       job.WebhookURL,
		RequestedAt:      now,
	}
	taskInfo, err := s.queueClient.EnqueueGenerateIcon(r.Context(), payload)
	if err != nil {
		s.logger.Printf("enqueue failed job_id=%s err=%v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue generation"})
		return
	}

	if _, err := s.jobStore.UpdateStatus(r.Context(), job.ID, domain.GenerationStatusQueued); err != nil {
		s.logger.Printf("update status failed job_id=%s err=%v", job.ID, err)
	}
	s.metrics.generationsEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"generation_id": job.ID,
		"status":        domain.GenerationStatusQueued,
		"status_url":    fmt.Sprintf("/v1/generations/%s", job.ID),
	})
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	if s.jobStore == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "icon generation is not configured"})
		return
	}

	jobID := r.PathValue("id")
	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch generation failed job_id=%s err=%v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load generation"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "generation not found"})
		return
	}

	body := map[string]any{
		"generation_id": job.ID,
		"status":        job.Status,
		"format":        job.Format,
		"created_at":    job.CreatedAt,
		"updated_at":    job.UpdatedAt,
	}
	if job.Error != "" {
		body["error"] = job.Error
	}
	if job.Status == domain.GenerationStatusSucceeded && job.ObjectKey != "" && s.storage != nil {
		url, err := s.storage.PresignedGetURL(r.Context(), job.ObjectKey, resultURLTTL)
		if err != nil {
			s.logger.Printf("presign result failed job_id=%s err=%v", job.ID, err)
		} else {
			body["result_url"] = url
		}
	}

	writeJSON(w, http.StatusOK, body)
}

// writePipelineError maps the pipeline taxonomy onto a JSON error
// envelope. The cause goes into details, never the top-level message.
func (s *Server) writePipelineError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		s.logger.Printf("pipeline failed op=%s url=%s err=%v", operation, r.URL.Query().Get("url"), err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	body := map[string]string{"error": errorMessage(perr.Kind)}
	if perr.Cause != nil {
		body["details"] = perr.Cause.Error()
	}
	if perr.Status >= 500 {
		s.logger.Printf("pipeline failed op=%s kind=%s err=%v", operation, perr.Kind, perr.Cause)
	}
	writeJSON(w, perr.Status, body)
}

func errorMessage(kind pipeline.Kind) string {
	switch kind {
	case pipeline.KindInvalidInput:
		return "invalid request"
	case pipeline.KindBlockedHost:
		return "source host is not allowed"
	case pipeline.KindTooLarge:
		return "source image is too large"
	case pipeline.KindTimeout:
		return "source fetch timed out"
	case pipeline.KindUpstream:
		return "source fetch failed"
	case pipeline.KindDecode:
		return "source image could not be decoded"
	case pipeline.KindVectorize:
		return "image could not be vectorized"
	default:
		return "internal error"
	}
}

func (s *Server) recordUsage(r *http.Request, operation string, result pipeline.Result, elapsed time.Duration) {
	if s.usageStore == nil {
		return
	}

	userID := strings.TrimSpace(r.Header.Get(s.apiKeyHeader))
	if userID == "" {
		userID = "anonymous"
	}
	computeMS := elapsed.Milliseconds()
	if computeMS < 1 {
		computeMS = 1
	}

	usage := domain.UsageLog{
		UserID:          userID,
		JobID:           id.New(),
		Operation:       operation,
		PixelsProcessed: int64(result.Width) * int64(result.Height),
		BytesOut:        int64(len(result.Bytes)),
		ComputeTimeMS:   computeMS,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.usageStore.CreateUsageLog(r.Context(), usage); err != nil {
		s.logger.Printf("usage log write failed op=%s err=%v", operation, err)
	}
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
