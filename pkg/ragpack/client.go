package ragpack

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

	api "github.com/kailas-cloud/ragpack/internal/transport/chi"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "ragpack-go"
	maxErrorBody     = 64 << 10
)

// Client is the ragpack service entry point.
type Client struct {
	base      *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
	obs       *observer
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("ragpack: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ragpack: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("ragpack: unsupported scheme %q", base.Scheme)
	}

	cfg := &clientConfig{timeout: defaultTimeout, userAgent: defaultUserAgent}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	return &Client{
		base:      base,
		http:      hc,
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

// BuildContext returns the prompt messages for a turn: memory, packed context and the conversation.
func (c *Client) BuildContext(ctx context.Context, t Turn) (_ ContextResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("build_context", start, err) }()

	var resp api.ContextResponse
	if err = c.do(ctx, http.MethodPost, "/v1/context", toTurnRequest(t), &resp); err != nil {
		return ContextResult{}, err
	}
	return ContextResult{
		Status:   Status(resp.Status),
		Messages: fromMessageDTOs(resp.Messages),
		Stats:    fromStatsDTO(resp.Stats),
	}, nil
}

// Chat builds context for a turn and returns the model's reply.
// Out-of-scope turns return the configured message without calling the model.
func (c *Client) Chat(ctx context.Context, t Turn) (_ ChatResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("chat", start, err) }()

	var resp api.ChatResponse
	if err = c.do(ctx, http.MethodPost, "/v1/chat", toTurnRequest(t), &resp); err != nil {
		return ChatResult{}, err
	}
	return ChatResult{
		Status: Status(resp.Status),
		Reply:  resp.Reply,
		Stats:  fromStatsDTO(resp.Stats),
	}, nil
}

// Remember stores facts for the conversation so later turns of it get them as memory.
func (c *Client) Remember(ctx context.Context, msgs []Message, facts []string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("remember", start, err) }()

	body := api.FactsRequest{Messages: toMessageDTOs(msgs), Facts: facts}
	return c.do(ctx, http.MethodPut, "/v1/facts", body, nil)
}

// Health returns the service health report.
// An unhealthy service answers 503 with a report; that is returned without error.
func (c *Client) Health(ctx context.Context) (_ HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	var resp api.HealthResponse
	err = c.do(ctx, http.MethodGet, "/health", nil, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable && resp.Status != "" {
		err = nil
	}
	if err != nil {
		return HealthStatus{}, err
	}
	return HealthStatus{Status: resp.Status, Checks: resp.Checks}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ragpack: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("ragpack: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ragpack: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er api.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Code != "" {
			apiErr.Code = string(er.Code)
			apiErr.Message = er.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		// Health reports travel with 503, so let the caller still see them.
		if out != nil {
			_ = json.Unmarshal(raw, out)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ragpack: decode %s response: %w", path, err)
	}
	return nil
}
