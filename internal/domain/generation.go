package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	GenerationStatusCreated    = "created"
	GenerationStatusQueued     = "queued"
	GenerationStatusProcessing = "processing"
	GenerationStatusSucceeded  = "succeeded"
	GenerationStatusFailed     = "failed"

	OutputFormatPNG = "png"
	OutputFormatSVG = "svg"
)

// CreateGenerationRequest is the JSON body of POST /v1/generations.
type CreateGenerationRequest struct {
	Prompt           string `json:"prompt"`
	Style            string `json:"style,omitempty"`
	Format           string `json:"format,omitempty"`
	RemoveBackground bool   `json:"remove_background,omitempty"`
	WebhookURL       string `json:"webhook_url,omitempty"`
}

const maxPromptLength = 1000

func (r CreateGenerationRequest) Validate() error {
	prompt := strings.TrimSpace(r.Prompt)
	if prompt == "" {
		return errors.New("prompt is required")
	}
	if len(prompt) > maxPromptLength {
		return fmt.Errorf("prompt exceeds %d characters", maxPromptLength)
	}
	format := strings.ToLower(strings.TrimSpace(r.Format))
	if format != "" && format != OutputFormatPNG && format != OutputFormatSVG {
		return fmt.Errorf("unsupported format: %s", r.Format)
	}
	return nil
}

// GenerationJob tracks one prompt-to-icon request through the queue.
type GenerationJob struct {
	ID               string
	UserID           string
	Status           string
	Prompt           string
	Style            string
	Format           string
	RemoveBackground bool
	WebhookURL       string
	ObjectKey        string
	Error            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
