package api

// API CLIENT

import (
	"bytes"
	"calc-server/internal/calc"
	"calc-server/internal/httpapi"
	"calc-server/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client talks to a calc-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Error is a non-2xx answer of the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("calc-server: %d: %s", e.Status, e.Message)
}

// Result is a successful calculation.
type Result struct {
	Offers []calc.OfferResult
	Timing httpapi.Timing
	Cached bool
}

type Health struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &h, nil
}

// Calculate prices the payload's offers.
func (c *Client) Calculate(ctx context.Context, payload *model.Payload) (*Result, error) {
	resp, err := c.post(ctx, "/calculate", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var env httpapi.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	res := &Result{Cached: env.Cached}
	if env.Timing != nil {
		res.Timing = *env.Timing
	}
	if err := json.Unmarshal(env.Data, &res.Offers); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}

	c.logger.Debug("Calculation received",
		zap.Int("offers", len(res.Offers)),
		zap.Bool("cached", res.Cached),
		zap.Int64("duration_ms", res.Timing.DurationMs))
	return res, nil
}

// Export returns the xlsx workbook of the payload's calculation.
func (c *Client) Export(ctx context.Context, payload *model.Payload) ([]byte, error) {
	resp, err := c.post(ctx, "/calculate/export", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, path string, payload *model.Payload) (*http.Response, error) {
	body, err := json.Marshal(map[string]any{"initPayload": payload})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body))
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	var env httpapi.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Error == "" {
		return &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return &Error{Status: resp.StatusCode, Message: env.Error}
}
