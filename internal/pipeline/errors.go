package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/iconpress/iconpress/internal/fetch"
	"github.com/iconpress/iconpress/internal/matte"
	"github.com/iconpress/iconpress/internal/vectorize"
)

// Kind buckets pipeline failures for the HTTP layer. Every failure is
// terminal for its request; nothing here is retried.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindBlockedHost  Kind = "blocked_host"
	KindTooLarge     Kind = "too_large"
	KindTimeout      Kind = "timeout"
	KindUpstream     Kind = "upstream_error"
	KindDecode       Kind = "decode_error"
	KindVectorize    Kind = "vectorize_error"
	KindInternal     Kind = "internal_error"
)

// Error is the pipeline's terminal failure: a kind, the HTTP status it maps
// to, and the underlying cause. The cause feeds the response's details
// field, never its primary message.
type Error struct {
	Kind   Kind
	Status int
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func invalidInput(cause error) *Error {
	return &Error{Kind: KindInvalidInput, Status: http.StatusBadRequest, Cause: cause}
}

// classifyFetch maps fetcher failures onto the taxonomy. Upstream statuses
// in the 4xx/5xx range propagate as-is; transport-level failures without a
// status become 502, fetch deadline overruns 504.
func classifyFetch(err error) *Error {
	var upstream *fetch.UpstreamError
	switch {
	case errors.Is(err, fetch.ErrInvalidURL):
		return invalidInput(err)
	case errors.Is(err, fetch.ErrBlockedHost):
		return &Error{Kind: KindBlockedHost, Status: http.StatusBadRequest, Cause: err}
	case errors.Is(err, fetch.ErrTooLarge):
		return &Error{Kind: KindTooLarge, Status: http.StatusRequestEntityTooLarge, Cause: err}
	case errors.As(err, &upstream):
		status := upstream.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return &Error{Kind: KindUpstream, Status: status, Cause: err}
	case fetch.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Status: http.StatusGatewayTimeout, Cause: err}
	default:
		return &Error{Kind: KindUpstream, Status: http.StatusBadGateway, Cause: err}
	}
}

func classifyTransform(err error) *Error {
	switch {
	case errors.Is(err, matte.ErrDecode):
		return &Error{Kind: KindDecode, Status: http.StatusInternalServerError, Cause: err}
	case errors.Is(err, vectorize.ErrTrace):
		return &Error{Kind: KindVectorize, Status: http.StatusInternalServerError, Cause: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindTimeout, Status: http.StatusGatewayTimeout, Cause: err}
	default:
		return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Cause: err}
	}
}
