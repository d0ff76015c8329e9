package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/analyticore/gatekit/errors"
	"github.com/analyticore/gatekit/logger"
	"github.com/analyticore/gatekit/registry"
)

// HTTPConfig configures an HTTP-backed engine client.
type HTTPConfig struct {
	// Endpoint is the backend base address (host:port or full URL).
	Endpoint string
	// InvokePath is the operation endpoint. Default: /invoke.
	InvokePath string
	// HealthPath is the health endpoint. Default: /health.
	HealthPath string
	// Timeout bounds calls whose context carries no deadline.
	Timeout time.Duration
}

// ApplyDefaults fills zero fields with sensible defaults.
func (c *HTTPConfig) ApplyDefaults() {
	if c.InvokePath == "" {
		c.InvokePath = "/invoke"
	}
	if c.HealthPath == "" {
		c.HealthPath = "/health"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// HTTPEngine invokes a backend analytics engine over HTTP/JSON.
type HTTPEngine struct {
	client  *http.Client
	baseURL string
	cfg     HTTPConfig
	log     *logger.Logger
}

// NewHTTP creates an HTTP engine client for one backend endpoint.
func NewHTTP(cfg HTTPConfig, log *logger.Logger) (*HTTPEngine, error) {
	cfg.ApplyDefaults()
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("engine endpoint is required")
	}

	baseURL := cfg.Endpoint
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &HTTPEngine{
		client:  &http.Client{},
		baseURL: baseURL,
		cfg:     cfg,
		log:     log.WithComponent("engine.http"),
	}, nil
}

type invokeRequest struct {
	Operation  string         `json:"operation"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type invokeResponse struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Invoke implements registry.Engine. Every call carries a deadline: the
// context's own, or the configured default.
func (e *HTTPEngine) Invoke(ctx context.Context, operation string, params map[string]any) (any, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	body, err := json.Marshal(invokeRequest{Operation: operation, Parameters: params})
	if err != nil {
		return nil, &apperrors.ValidationError{Field: "parameters", Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+e.cfg.InvokePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read invoke response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, e.statusError(operation, resp, raw)
	}

	var out invokeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode invoke response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("engine error: %s", out.Error)
	}
	return out.Result, nil
}

// statusError translates backend status codes into classification markers.
func (e *HTTPEngine) statusError(operation string, resp *http.Response, body []byte) error {
	base := fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &apperrors.RateLimitError{RetryAfter: retryAfter(resp), Err: base}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &apperrors.AuthError{Reason: base.Error(), Err: base}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &apperrors.ValidationError{Reason: base.Error()}
	case http.StatusNotFound, http.StatusNotImplemented:
		return &apperrors.UnsupportedError{Operation: operation}
	default:
		if resp.StatusCode >= 500 {
			return &apperrors.TransientError{Err: base}
		}
		return base
	}
}

// HealthCheck implements registry.Engine.
func (e *HTTPEngine) HealthCheck(ctx context.Context) (registry.Health, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+e.cfg.HealthPath, nil)
	if err != nil {
		return registry.HealthUnknown, fmt.Errorf("build health request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return registry.HealthUnknown, fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return registry.HealthUnhealthy, fmt.Errorf("health check: HTTP %d", resp.StatusCode)
	}

	var out healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return registry.HealthUnknown, fmt.Errorf("decode health response: %w", err)
	}

	switch strings.ToLower(out.Status) {
	case "healthy", "up", "ok":
		return registry.HealthHealthy, nil
	case "degraded":
		return registry.HealthDegraded, nil
	case "unhealthy", "down":
		return registry.HealthUnhealthy, nil
	default:
		return registry.HealthUnknown, nil
	}
}

func (e *HTTPEngine) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.Timeout)
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// Compile-time check.
var _ registry.Engine = (*HTTPEngine)(nil)
