package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeGenerateIcon = "icon:generate"

// GenerateIconPayload carries one queued prompt-to-icon job to the worker.
type GenerateIconPayload struct {
	JobID            string    `json:"job_id"`
	UserID           string    `json:"user_id,omitempty"`
	Prompt           string    `json:"prompt"`
	Style            string    `json:"style,omitempty"`
	Format           string    `json:"format"`
	RemoveBackground bool      `json:"remove_background"`
	WebhookURL       string    `json:"webhook_url,omitempty"`
	RequestedAt      time.Time `json:"requested_at"`
}

func NewGenerateIconTask(payload GenerateIconPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generate payload: %w", err)
	}
	return asynq.NewTask(TypeGenerateIcon, body), nil
}

func ParseGenerateIconPayload(task *asynq.Task) (GenerateIconPayload, error) {
	var payload GenerateIconPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return GenerateIconPayload{}, fmt.Errorf("unmarshal generate payload: %w", err)
	}
	return payload, nil
}
