package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jackzampolin/docextract/internal/apperr"
)

// Path is the extraction endpoint relative to the server base URL.
const Path = "/api/extract/files"

// RequestIDHeader carries the per-submission request ID.
const RequestIDHeader = "X-Request-ID"

// Client submits extraction requests to a remote service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. The default has no timeout;
// the context passed to Submit bounds the call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit sends req as a single attempt and waits for the response.
func (c *Client) Submit(ctx context.Context, req *Request) (*Result, error) {
	body, contentType, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	reqID := uuid.New().String()
	logger := c.logger.With("req_id", reqID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+Path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, reqID)

	logger.Debug("submitting extraction", "url", httpReq.URL.String(), "files", len(req.Files()), "bytes", body.Len())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("submit cancelled: %w", ctx.Err())
		}
		return nil, &apperr.NetworkError{Op: "POST " + Path, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.NetworkError{Op: "read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("extraction failed", "status", resp.StatusCode)
		return nil, &apperr.HTTPError{Status: resp.StatusCode, Detail: errorDetail(respBody)}
	}

	res, err := DecodeResult(respBody)
	if err != nil {
		return nil, err
	}
	logger.Debug("extraction complete",
		"file_count", res.Usage.FileCount,
		"successful_extractions", res.Usage.SuccessfulExtractions,
		"total_cost", res.Usage.TotalCost)
	return res, nil
}

// errorDetail pulls a message out of {"error": ...} or {"detail": ...} bodies.
func errorDetail(body []byte) string {
	var payload struct {
		Error  string `json:"error"`
		Detail any    `json:"detail"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	switch d := payload.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
}
