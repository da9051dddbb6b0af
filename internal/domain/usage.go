package domain

import "time"

// UsageLog is one billing row per completed pipeline invocation.
type UsageLog struct {
	UserID          string
	JobID           string
	Operation       string
	PixelsProcessed int64
	BytesOut        int64
	ComputeTimeMS   int64
	CreatedAt       time.Time
}
