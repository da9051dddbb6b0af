package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/iconpress/iconpress/internal/domain"
	"github.com/iconpress/iconpress/internal/pipeline"
	"github.com/iconpress/iconpress/internal/queue"
	"github.com/iconpress/iconpress/internal/store"
)

type stubGenerator struct {
	data []byte
	err  error
}

func (g *stubGenerator) Generate(context.Context, string, string) ([]byte, error) {
	return g.data, g.err
}

type stubTransformer struct {
	lastRequest pipeline.Request
	result      pipeline.Result
	err         error
}

func (t *stubTransformer) Transform(_ context.Context, _ []byte, req pipeline.Request) (pipeline.Result, error) {
	t.lastRequest = req
	if t.err != nil {
		return pipeline.Result{}, t.err
	}
	return t.result, nil
}

type captureStorage struct {
	objectKey   string
	contentType string
	data        []byte
	err         error
}

func (s *captureStorage) WriteObject(_ context.Context, objectKey string, data []byte, contentType string) error {
	if s.err != nil {
		return s.err
	}
	s.objectKey = objectKey
	s.data = data
	s.contentType = contentType
	return nil
}

type captureWebhook struct {
	event string
	body  any
}

func (w *captureWebhook) Send(_ context.Context, _, event string, payload any) error {
	w.event = event
	w.body = payload
	return nil
}

type captureUsageStore struct {
	called bool
	log    domain.UsageLog
}

func (s *captureUsageStore) CreateUsageLog(_ context.Context, usage domain.UsageLog) error {
	s.called = true
	s.log = usage
	return nil
}

func newBareServer(deps Deps) *Server {
	return &Server{
		logger:        log.New(io.Discard, "", 0),
		sem:           make(chan struct{}, 1),
		generator:     deps.Generator,
		processor:     deps.Processor,
		storage:       deps.Storage,
		webhookClient: deps.Webhook,
		jobStore:      deps.JobStore,
		usageStore:    deps.UsageStore,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("worker-test"),
	}
}

func seedJob(t *testing.T, jobStore *store.MemoryStore, id string) {
	t.Helper()
	now := time.Now().UTC()
	if err := jobStore.Create(context.Background(), domain.GenerationJob{
		ID:        id,
		UserID:    "user-1",
		Status:    domain.GenerationStatusQueued,
		Prompt:    "rocket",
		Format:    domain.OutputFormatPNG,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}
}

func TestHandleGenerateIconSuccess(t *testing.T) {
	jobStore := store.NewMemoryStore()
	seedJob(t, jobStore, "job-1")

	transformer := &stubTransformer{result: pipeline.Result{
		Bytes:       []byte("fake-png"),
		ContentType: "image/png",
		Width:       512,
		Height:      512,
	}}
	storageClient := &captureStorage{}
	webhookClient := &captureWebhook{}
	usageStore := &captureUsageStore{}

	s := newBareServer(Deps{
		Generator:  &stubGenerator{data: []byte("raw")},
		Processor:  transformer,
		Storage:    storageClient,
		Webhook:    webhookClient,
		JobStore:   jobStore,
		UsageStore: usageStore,
	})

	task, err := queue.NewGenerateIconTask(queue.GenerateIconPayload{
		JobID:            "job-1",
		UserID:           "user-1",
		Prompt:           "rocket",
		Format:           domain.OutputFormatPNG,
		RemoveBackground: true,
		WebhookURL:       "https://hooks.example.com/x",
		RequestedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	if err := s.handleGenerateIcon(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !transformer.lastRequest.RemoveBackground {
		t.Fatal("expected background removal to be requested")
	}
	if transformer.lastRequest.Vectorize {
		t.Fatal("png format should not vectorize")
	}
	if storageClient.objectKey != "generations/job-1/icon.png" {
		t.Fatalf("unexpected object key %q", storageClient.objectKey)
	}
	if storageClient.contentType != "image/png" {
		t.Fatalf("unexpected content type %q", storageClient.contentType)
	}

	job, ok, err := jobStore.Get(context.Background(), "job-1")
	if err != nil || !ok {
		t.Fatalf("load job: ok=%v err=%v", ok, err)
	}
	if job.Status != domain.GenerationStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", job.Status)
	}
	if job.ObjectKey != "generations/job-1/icon.png" {
		t.Fatalf("unexpected stored object key %q", job.ObjectKey)
	}

	if webhookClient.event != "generation.completed" {
		t.Fatalf("unexpected webhook event %q", webhookClient.event)
	}
	if !usageStore.called {
		t.Fatal("expected usage log to be written")
	}
	if usageStore.log.PixelsProcessed != 512*512 {
		t.Fatalf("unexpected pixels processed %d", usageStore.log.PixelsProcessed)
	}
}

func TestHandleGenerateIconSVGVectorizes(t *testing.T) {
	jobStore := store.NewMemoryStore()
	seedJob(t, jobStore, "job-2")

	transformer := &stubTransformer{result: pipeline.Result{
		Bytes:       []byte("<svg></svg>"),
		ContentType: "image/svg+xml",
		Width:       128,
		Height:      128,
	}}
	storageClient := &captureStorage{}

	s := newBareServer(Deps{
		Generator: &stubGenerator{data: []byte("raw")},
		Processor: transformer,
		Storage:   storageClient,
		JobStore:  jobStore,
	})

	task, err := queue.NewGenerateIconTask(queue.GenerateIconPayload{
		JobID:  "job-2",
		Prompt: "gear",
		Format: domain.OutputFormatSVG,
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	if err := s.handleGenerateIcon(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !transformer.lastRequest.Vectorize {
		t.Fatal("svg format should vectorize")
	}
	if storageClient.objectKey != "generations/job-2/icon.svg" {
		t.Fatalf("unexpected object key %q", storageClient.objectKey)
	}
}

func TestHandleGenerateIconUpstreamFailureMarksJobFailed(t *testing.T) {
	jobStore := store.NewMemoryStore()
	seedJob(t, jobStore, "job-3")

	webhookClient := &captureWebhook{}
	s := newBareServer(Deps{
		Generator: &stubGenerator{err: errors.New("upstream exploded")},
		Processor: &stubTransformer{},
		Storage:   &captureStorage{},
		Webhook:   webhookClient,
		JobStore:  jobStore,
	})

	task, err := queue.NewGenerateIconTask(queue.GenerateIconPayload{
		JobID:      "job-3",
		Prompt:     "rocket",
		WebhookURL: "https://hooks.example.com/x",
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	if err := s.handleGenerateIcon(context.Background(), task); err == nil {
		t.Fatal("expected error from failed generation")
	}

	job, ok, _ := jobStore.Get(context.Background(), "job-3")
	if !ok {
		t.Fatal("job missing")
	}
	if job.Status != domain.GenerationStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.Error, "upstream exploded") {
		t.Fatalf("expected failure cause recorded, got %q", job.Error)
	}
	if webhookClient.event != "generation.failed" {
		t.Fatalf("unexpected webhook event %q", webhookClient.event)
	}
}

func TestRecordUsageWritesUsageLog(t *testing.T) {
	usageStore := &captureUsageStore{}
	s := newBareServer(Deps{UsageStore: usageStore})

	s.recordUsage(context.Background(), queue.GenerateIconPayload{
		JobID:  "job-4",
		UserID: "user-9",
	}, pipeline.Result{
		Bytes:  make([]byte, 300),
		Width:  10,
		Height: 20,
	}, 250*time.Millisecond)

	if !usageStore.called {
		t.Fatal("expected usage log to be written")
	}
	if usageStore.log.UserID != "user-9" {
		t.Fatalf("expected user_id=user-9, got %s", usageStore.log.UserID)
	}
	if usageStore.log.PixelsProcessed != 200 {
		t.Fatalf("expected pixels_processed=200, got %d", usageStore.log.PixelsProcessed)
	}
	if usageStore.log.BytesOut != 300 {
		t.Fatalf("expected bytes_out=300, got %d", usageStore.log.BytesOut)
	}
	if usageStore.log.ComputeTimeMS != 250 {
		t.Fatalf("expected compute_time_ms=250, got %d", usageStore.log.ComputeTimeMS)
	}
}

func TestRecordUsageAnonymousFallback(t *testing.T) {
	usageStore := &captureUsageStore{}
	s := newBareServer(Deps{UsageStore: usageStore})

	s.recordUsage(context.Background(), queue.GenerateIconPayload{JobID: "job-5"}, pipeline.Result{}, 0)

	if usageStore.log.UserID != "anonymous" {
		t.Fatalf("expected anonymous user, got %s", usageStore.log.UserID)
	}
	if usageStore.log.ComputeTimeMS < 1 {
		t.Fatalf("expected compute_time_ms to be at least 1, got %d", usageStore.log.ComputeTimeMS)
	}
}
