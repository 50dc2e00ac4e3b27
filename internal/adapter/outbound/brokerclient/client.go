package brokerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/uniedit/mediaupload/internal/model"
	"github.com/uniedit/mediaupload/internal/port/inbound"
	"github.com/uniedit/mediaupload/internal/port/outbound"
)

// Route paths served by the broker.
const (
	PathUploadURL         = "/api/upload-url"
	PathMultipartStart    = "/api/multipart/start"
	PathMultipartPartURL  = "/api/multipart/part-url"
	PathMultipartComplete = "/api/multipart/complete"
	PathMultipartAbort    = "/api/multipart/abort"
	PathMediaList         = "/api/media/list"
	PathMediaDelete       = "/api/media/delete"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// APIError is a non-2xx broker response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("broker returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("broker returned status %d: %s", e.StatusCode, e.Message)
}

// Config holds broker client settings.
type Config struct {
	BaseURL string

	// Circuit breaker settings
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultConfig returns default broker client settings.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:          baseURL,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Client calls the authorization broker over HTTP. Calls pass through a
// circuit breaker that trips on transport failures and 5xx responses.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// NewClient creates a broker client.
func NewClient(cfg *Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("broker-client")

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "broker",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  logger,
	}
}

// BeginSingle requests a presigned single-shot PUT.
func (c *Client) BeginSingle(ctx context.Context, fileName, contentType string) (*model.SingleAuthorization, error) {
	var out inbound.UploadURLOutput
	in := inbound.UploadURLInput{FileName: fileName, FileType: contentType}
	if err := c.do(ctx, http.MethodPost, PathUploadURL, in, &out); err != nil {
		return nil, err
	}
	return &model.SingleAuthorization{URL: out.UploadURL, Key: out.Key}, nil
}

// BeginMultipart opens a multipart session.
func (c *Client) BeginMultipart(ctx context.Context, fileName, contentType string) (*model.MultipartSession, error) {
	var out inbound.MultipartStartOutput
	in := inbound.MultipartStartInput{FileName: fileName, FileType: contentType}
	if err := c.do(ctx, http.MethodPost, PathMultipartStart, in, &out); err != nil {
		return nil, err
	}
	return &model.MultipartSession{SessionID: out.UploadID, Key: out.Key}, nil
}

// AuthorizePart requests a presigned URL for one part.
func (c *Client) AuthorizePart(ctx context.Context, key, sessionID string, partNumber int32) (*model.PartAuthorization, error) {
	var out inbound.PartURLOutput
	in := inbound.PartURLInput{Key: key, UploadID: sessionID, PartNumber: partNumber}
	if err := c.do(ctx, http.MethodPost, PathMultipartPartURL, in, &out); err != nil {
		return nil, err
	}
	return &model.PartAuthorization{URL: out.URL}, nil
}

// FinalizeMultipart completes a session with its ordered part list.
func (c *Client) FinalizeMultipart(ctx context.Context, key, sessionID string, parts []model.PartRecord) error {
	in := inbound.MultipartCompleteInput{Key: key, UploadID: sessionID, Parts: parts}
	return c.do(ctx, http.MethodPost, PathMultipartComplete, in, nil)
}

// AbortMultipart discards a session.
func (c *Client) AbortMultipart(ctx context.Context, key, sessionID string) error {
	in := inbound.MultipartAbortInput{Key: key, UploadID: sessionID}
	return c.do(ctx, http.MethodPost, PathMultipartAbort, in, nil)
}

// ListMedia lists stored media.
func (c *Client) ListMedia(ctx context.Context) ([]*model.MediaObject, error) {
	var out inbound.MediaListOutput
	if err := c.do(ctx, http.MethodGet, PathMediaList, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// DeleteMedia deletes a stored object.
func (c *Client) DeleteMedia(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, PathMediaDelete, inbound.MediaDeleteInput{Key: key}, nil)
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, method, path, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("broker call rejected by circuit breaker", zap.String("path", path))
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}

// errorMessage extracts the message from an {"error": "..."} body.
func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

// Compile-time check
var _ outbound.UploadAuthorizerPort = (*Client)(nil)
