package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// Planning failures, mapped onto HTTP statuses by the handler layer.
var (
	// ErrBadRequest covers a missing or malformed Range header and an
	// unparseable chunk-size override. Nothing upstream is called.
	ErrBadRequest = errors.New("bad request")

	// ErrRangeNotSatisfiable is returned when the requested start offset
	// lies at or beyond the end of the object.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")

	// ErrCannotLocate is returned when the object's size cannot be fetched.
	// It deliberately does not distinguish a missing object from a store
	// outage.
	ErrCannotLocate = errors.New("cannot locate resource")
)

// DownloadPlan is the byte window computed for one range request, plus a
// deferred stream factory. Open is not called until the caller has emitted
// response headers, so header emission never waits on (or fails with) the
// backing read.
type DownloadPlan struct {
	Start  int64
	Length int64
	Total  int64

	Open func(ctx context.Context) (io.ReadCloser, error)
}

// End returns the inclusive last byte offset of the window.
func (p *DownloadPlan) End() int64 {
	return p.Start + p.Length - 1
}

// ContentRange formats the Content-Range header value for the window.
func (p *DownloadPlan) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", p.Start, p.End(), p.Total)
}

// PlanDownload computes the byte window for a range request. rangeHeader
// must be of the form "bytes=<start>-"; chunkSizeHeader optionally
// overrides the chunk size and is clamped to [1, MaxChunkBytes]. The plan
// holds no cursor: each request recomputes its window from its own header,
// and resumption is entirely client-driven.
func (s *Server) PlanDownload(ctx context.Context, subject, resource string, rangeHeader, chunkSizeHeader string) (*DownloadPlan, error) {
	start, err := parseRangeStart(rangeHeader)
	if err != nil {
		return nil, err
	}

	chunkSize := s.cfg.MaxChunkBytes
	if chunkSizeHeader != "" {
		requested, err := strconv.ParseInt(chunkSizeHeader, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid chunk size %q", ErrBadRequest, chunkSizeHeader)
		}
		chunkSize = clamp(requested, 1, s.cfg.MaxChunkBytes)
	}

	path := filePath(subject, resource)

	total, err := s.cfg.Store.ObjectSize(ctx, path)
	if err != nil {
		slog.Warn("Fetch object size", "path", path, "err", err)
		return nil, ErrCannotLocate
	}

	if start >= total {
		return nil, fmt.Errorf("%w: start %d, size %d", ErrRangeNotSatisfiable, start, total)
	}

	length := chunkSize
	if remaining := total - start; remaining < length {
		length = remaining
	}

	end := start + length - 1
	return &DownloadPlan{
		Start:  start,
		Length: length,
		Total:  total,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return s.cfg.Store.ReadRange(ctx, path, start, end)
		},
	}, nil
}

// parseRangeStart accepts exactly the open-ended form "bytes=<start>-".
// Suffix ranges and bounded ranges are rejected: the gateway always serves
// one negotiated chunk from the given offset.
func parseRangeStart(header string) (int64, error) {
	if header == "" {
		return 0, fmt.Errorf("%w: missing Range header", ErrBadRequest)
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, fmt.Errorf("%w: malformed Range header %q", ErrBadRequest, header)
	}
	spec, ok = strings.CutSuffix(spec, "-")
	if !ok || spec == "" {
		return 0, fmt.Errorf("%w: malformed Range header %q", ErrBadRequest, header)
	}

	start, err := strconv.ParseInt(spec, 10, 64)
	if err != nil || start < 0 {
		return 0, fmt.Errorf("%w: malformed Range header %q", ErrBadRequest, header)
	}
	return start, nil
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
