package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/canvasflow/canvasflow/internal/logging"
	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/ports"
)

// Client speaks to the remote flow engine over HTTP. It implements both
// ports.FlowService (save, build, suggestions) and ports.RunStreamer
// (run/resume with line-delimited event streaming).
type Client struct {
	base   string
	hc     *http.Client
	token  string
	logger *slog.Logger
}

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// WithToken sets a bearer token attached to every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithClientLogger sets a structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the engine at the given base URL.
func NewClient(base string, opts ...ClientOption) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		hc:     &http.Client{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// apiError is the engine's error envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func responseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var e apiError
	if json.Unmarshal(data, &e) == nil && e.Message != "" {
		return fmt.Errorf("engine error %d: %s", e.Code, e.Message)
	}
	return fmt.Errorf("engine returned %s", resp.Status)
}

// SaveFlow persists the flow and returns the server-side update timestamp.
func (c *Client) SaveFlow(ctx context.Context, flow *domain.Flow) (time.Time, error) {
	req, err := c.newRequest(ctx, http.MethodPut, "/api/flows/"+url.PathEscape(flow.ID), flow)
	if err != nil {
		return time.Time{}, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("save flow: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, responseError(resp)
	}

	var out struct {
		UpdatedAt time.Time `json:"updated_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return time.Time{}, fmt.Errorf("decode save response: %w", err)
	}
	return out.UpdatedAt, nil
}

// BuildFlow runs the remote compile/validate round trip.
func (c *Client) BuildFlow(ctx context.Context, flow *domain.Flow) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/flows/"+url.PathEscape(flow.ID)+"/build", flow)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("build flow: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	return nil
}

// Suggestions returns follow-up question candidates for the last answer.
func (c *Client) Suggestions(ctx context.Context, flowID, lastAnswer string) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodPost,
		"/api/flows/"+url.PathEscape(flowID)+"/suggestions",
		map[string]string{"last_answer": lastAnswer})
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggestions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return out.Suggestions, nil
}

// Run opens a streaming debug run. Events arrive as line-delimited JSON
// (with or without an SSE "data:" prefix) until the stream closes.
func (c *Client) Run(ctx context.Context, runReq ports.RunRequest) (<-chan ports.RunEvent, error) {
	return c.stream(ctx, "/api/flows/"+url.PathEscape(runReq.FlowID)+"/run", runReq)
}

// Resume continues or abandons an interrupted run.
func (c *Client) Resume(ctx context.Context, resReq ports.ResumeRequest) (<-chan ports.RunEvent, error) {
	return c.stream(ctx, "/api/flows/"+url.PathEscape(resReq.FlowID)+"/resume", resReq)
}

func (c *Client) stream(ctx context.Context, path string, payload any) (<-chan ports.RunEvent, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, responseError(resp)
	}

	ch := make(chan ports.RunEvent)
	go c.consume(resp.Body, ch)
	return ch, nil
}

func (c *Client) consume(body io.ReadCloser, ch chan<- ports.RunEvent) {
	defer close(ch)
	defer body.Close()

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		line = bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if len(line) == 0 || bytes.Equal(line, []byte("[DONE]")) {
			continue
		}
		var evt ports.RunEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			c.logger.Warn("dropping malformed stream event", "err", err)
			continue
		}
		ch <- evt
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		c.logger.Debug("stream closed", "err", err)
	}
}
