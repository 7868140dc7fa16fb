// Package replicate is a small client for the Replicate predictions API
// shared by the video and prompt providers.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"manifest/internal/infra"
)

var (
	// ErrMissingAPIToken indicates that the client was configured without credentials.
	ErrMissingAPIToken = errors.New("replicate: api token is required")
	// ErrPredictionFailed is returned when a prediction ends failed or canceled.
	ErrPredictionFailed = errors.New("replicate: prediction did not succeed")
)

const (
	DefaultBaseURL      = "https://api.replicate.com/v1"
	defaultPollInterval = 2 * time.Second
	waitHeaderValue     = "wait=60"
)

type Options struct {
	APIToken     string
	BaseURL      string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

type Client struct {
	apiToken     string
	baseURL      string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *infra.Logger
}

// Prediction mirrors the fields of a Replicate prediction we rely on.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// Terminal reports whether the prediction has stopped changing.
func (p *Prediction) Terminal() bool {
	switch p.Status {
	case "succeeded", "failed", "canceled":
		return true
	default:
		return false
	}
}

type createRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{
		apiToken:     strings.TrimSpace(opts.APIToken),
		baseURL:      baseURL,
		pollInterval: poll,
		httpClient:   client,
		logger:       infra.OrNop(opts.Logger),
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

// Run creates a prediction for model and blocks until it reaches a terminal
// state or ctx ends. model is either "owner/name" or "owner/name:version".
// A prediction that ends failed or canceled yields ErrPredictionFailed.
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIToken
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("replicate: model is required")
	}

	endpoint, body := c.createEndpoint(model, input)
	var pred Prediction
	if err := c.do(ctx, http.MethodPost, endpoint, body, &pred); err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("prediction_id", pred.ID).
		Str("model", model).
		Str("status", pred.Status).
		Msg("replicate: prediction created")

	for !pred.Terminal() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("replicate: prediction %s still %s: %w", pred.ID, pred.Status, ctx.Err())
		case <-time.After(c.pollInterval):
		}
		pollURL := pred.URLs.Get
		if pollURL == "" {
			pollURL = c.baseURL + "/predictions/" + url.PathEscape(pred.ID)
		}
		if err := c.do(ctx, http.MethodGet, pollURL, nil, &pred); err != nil {
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		return &pred, fmt.Errorf("%w: %s %s: %s", ErrPredictionFailed, pred.ID, pred.Status, errorText(pred.Error))
	}
	return &pred, nil
}

func (c *Client) createEndpoint(model string, input map[string]any) (string, createRequest) {
	if _, version, ok := strings.Cut(model, ":"); ok {
		return c.baseURL + "/predictions", createRequest{Version: version, Input: input}
	}
	return c.baseURL + "/models/" + model + "/predictions", createRequest{Input: input}
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("replicate: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", waitHeaderValue)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate: http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return fmt.Errorf("replicate: status %d: %s", resp.StatusCode, detail.Detail)
		}
		return fmt.Errorf("replicate: status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(raw)), 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("replicate: decode response: %w", err)
	}
	return nil
}

// LastOutput returns the output when it is a single string, or the last
// non-empty entry when it is a list.
func LastOutput(raw json.RawMessage) (string, error) {
	parts, err := outputParts(raw)
	if err != nil {
		return "", err
	}
	for i := len(parts) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(parts[i]); s != "" {
			return s, nil
		}
	}
	return "", errors.New("replicate: empty output")
}

// JoinedOutput concatenates a streamed token list into one string.
func JoinedOutput(raw json.RawMessage) (string, error) {
	parts, err := outputParts(raw)
	if err != nil {
		return "", err
	}
	joined := strings.TrimSpace(strings.Join(parts, ""))
	if joined == "" {
		return "", errors.New("replicate: empty output")
	}
	return joined, nil
}

func outputParts(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("replicate: empty output")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	return nil, fmt.Errorf("replicate: unexpected output shape: %s", truncate(string(raw), 120))
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "no error detail"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	return truncate(string(raw), 200)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
