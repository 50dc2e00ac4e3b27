package blobhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniedit/mediaupload/internal/port/outbound"
)

// RequestIDHeader carries a per-PUT id for correlating client and store logs.
const RequestIDHeader = "X-Request-ID"

// Transport performs raw PUTs against presigned URLs.
type Transport struct {
	client *http.Client
	logger *zap.Logger
}

// NewTransport creates a blob transport using client.
func NewTransport(client *http.Client, logger *zap.Logger) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{client: client, logger: logger.Named("blob-transport")}
}

// Put streams size bytes from body to url. Content-Type is sent only when
// contentType is non-empty, since presigned part URLs are signed without it.
func (t *Transport) Put(ctx context.Context, url string, body io.Reader, size int64, contentType string, onBytes func(sent int64)) (*outbound.PutResult, error) {
	reader := &countingReader{r: body, onBytes: onBytes}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	t.logger.Debug("put completed",
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Int64("size", size),
		zap.Int64("sent", reader.sent),
	)

	return &outbound.PutResult{
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("ETag"),
	}, nil
}

// countingReader reports the cumulative number of bytes read after every
// successful Read.
type countingReader struct {
	r       io.Reader
	sent    int64
	onBytes func(sent int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.onBytes != nil {
			c.onBytes(c.sent)
		}
	}
	return n, err
}

// Compile-time check
var _ outbound.BlobTransportPort = (*Transport)(nil)
