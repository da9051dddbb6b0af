package store

import (
	"context"
	"errors"

	"github.com/iconpress/iconpress/internal/domain"
)

var ErrJobNotFound = errors.New("generation job not found")

type GenerationStore interface {
	Create(ctx context.Context, job domain.GenerationJob) error
	Get(ctx context.Context, id string) (domain.GenerationJob, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.GenerationJob, error)
	SetResult(ctx context.Context, id, objectKey string) error
	SetError(ctx context.Context, id, message string) error
}

type UsageStore interface {
	CreateUsageLog(ctx context.Context, usage domain.UsageLog) error
}
