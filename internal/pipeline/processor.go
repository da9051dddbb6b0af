// Package pipeline composes the icon post-processing stages: fetch,
// normalize, background removal, vectorization and encoding. One Processor
// serves all requests; each Process call is an independent, strictly
// sequential run with no shared mutable state.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/iconpress/iconpress/internal/domain"
	"github.com/iconpress/iconpress/internal/fetch"
	"github.com/iconpress/iconpress/internal/matte"
	"github.com/iconpress/iconpress/internal/vectorize"
)

// Fetcher is the upstream image source. Satisfied by *fetch.Fetcher; tests
// substitute stubs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Payload, error)
}

// Request selects which stages run. Params are expected to be clamped by
// the caller (the HTTP layer clamps at request entry).
type Request struct {
	URL              string
	RemoveBackground bool
	Vectorize        bool
	Matte            domain.MatteParams
	Trace            domain.TraceParams
	TraceFallback    vectorize.FallbackPolicy
}

// Result is one complete output; the pipeline never streams or returns
// partial data.
type Result struct {
	Bytes       []byte
	ContentType string
	Width       int
	Height      int
}

type Processor struct {
	fetcher Fetcher
}

func NewProcessor(fetcher Fetcher) *Processor {
	return &Processor{fetcher: fetcher}
}

// Process runs the selected stages in order. Any stage failure aborts the
// run and comes back as a *Error; no stage result is cached or reused
// across requests.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return Result{}, invalidInput(errors.New("url is required"))
	}

	payload, err := p.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return Result{}, classifyFetch(err)
	}

	return p.Transform(ctx, payload.Bytes, req)
}

// Transform runs the post-fetch stages on source bytes already in hand.
// The worker uses this directly for generated images that never touch
// the fetcher.
func (p *Processor) Transform(ctx context.Context, data []byte, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, classifyTransform(err)
	}

	source := data
	width, height := 0, 0

	if req.RemoveBackground {
		buf, err := matte.Normalize(source, req.Matte.MaxSize)
		if err != nil {
			return Result{}, classifyTransform(err)
		}
		out := matte.Remove(buf, req.Matte)
		width, height = out.W, out.H

		encoded, err := matte.EncodePNG(out)
		if err != nil {
			return Result{}, classifyTransform(err)
		}
		source = encoded
	}

	if err := ctx.Err(); err != nil {
		return Result{}, classifyTransform(err)
	}

	if req.Vectorize {
		svg, w, h, err := vectorize.Vectorize(source, req.Trace, req.TraceFallback)
		if err != nil {
			return Result{}, classifyTransform(err)
		}
		return Result{Bytes: svg, ContentType: "image/svg+xml", Width: w, Height: h}, nil
	}

	if !req.RemoveBackground {
		// Raster passthrough: normalize only, so the output still honors
		// the size cap and is always a well-formed PNG.
		buf, err := matte.Normalize(source, req.Matte.MaxSize)
		if err != nil {
			return Result{}, classifyTransform(err)
		}
		width, height = buf.W, buf.H

		encoded, err := matte.EncodePNG(buf)
		if err != nil {
			return Result{}, classifyTransform(err)
		}
		source = encoded
	}

	return Result{Bytes: source, ContentType: "image/png", Width: width, Height: height}, nil
}
