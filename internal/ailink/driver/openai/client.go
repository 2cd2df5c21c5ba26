// Package openai is a driver for the OpenAI chat completions API and any
// endpoint that speaks the same protocol.
package openai

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

	"github.com/postly/postly/internal/ailink/driver"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	driverName     = "openai"

	// maxResponseBytes caps how much of a completion body is read.
	maxResponseBytes = 4 << 20
)

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// Timeout bounds a single call; zero leaves the caller's deadline alone.
	Timeout time.Duration
}

// NewClient returns a client for baseURL, or the public API when it is blank.
func NewClient(baseURL, apiKey string) *Client {
	c := &Client{BaseURL: strings.TrimSpace(baseURL), APIKey: strings.TrimSpace(apiKey)}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	return c
}

func (c *Client) Name() string { return driverName }

func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{SupportsImages: true}
}

// Complete posts req to /chat/completions. Non-2xx replies become
// *driver.ProviderError and every call is written to the active tracer.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, errors.New("openai client not configured")
	}
	if c.APIKey == "" {
		return nil, errors.New("api key is required")
	}

	payload, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	trace := driver.TraceEntry{
		Driver:     driverName,
		Endpoint:   endpoint,
		Model:      payload.Model,
		PromptSlug: req.PromptSlug,
		HasImages:  req.HasImages(),
	}

	status, respBody, err := c.post(ctx, endpoint, body, &trace)
	if err != nil {
		return nil, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, driver.NewProviderError(driverName, status, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decodeResponse(&parsed)
}

// post sends body and returns the status and response bytes, recording the
// exchange in trace.
func (c *Client) post(ctx context.Context, endpoint string, body []byte, trace *driver.TraceEntry) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		trace.DurationMs = time.Since(start).Milliseconds()
		trace.Error = err.Error()
		driver.Trace(*trace)
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	trace.DurationMs = time.Since(start).Milliseconds()
	trace.StatusCode = resp.StatusCode
	if err != nil {
		trace.Error = err.Error()
		driver.Trace(*trace)
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	driver.Trace(trace.WithResponse(respBody))
	return resp.StatusCode, respBody, nil
}
