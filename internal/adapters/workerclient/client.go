// Package workerclient implements the HTTP client for the remote analysis
// worker service.
package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gitgauge/gitgauge/internal/core"
	"github.com/gitgauge/gitgauge/internal/domain/model"
	apperrors "github.com/gitgauge/gitgauge/internal/errors"
)

// maxResponseBytes bounds how much of a worker response is read into memory.
const maxResponseBytes = 64 * 1024

// WorkerUnreachable indicates the worker could not be reached at all.
type WorkerUnreachable struct {
	Err error
}

func (e *WorkerUnreachable) Error() string {
	return fmt.Sprintf("analysis worker unreachable: %v", e.Err)
}

func (e *WorkerUnreachable) Unwrap() error { return e.Err }

// unavailable classifies a transport failure under the application error
// taxonomy while keeping the typed WorkerUnreachable in the chain for
// errors.As callers.
func unavailable(message string, err error) *apperrors.AppError {
	return apperrors.Wrap(&WorkerUnreachable{Err: err}, apperrors.ErrCodeUnavailable, message)
}

// WorkerRejected indicates the worker answered with a non-2xx status.
type WorkerRejected struct {
	StatusCode int
	Detail     string
}

func (e *WorkerRejected) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("analysis worker rejected job: status %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis worker rejected job: status %d: %s", e.StatusCode, e.Detail)
}

// Config describes how to reach the analysis worker.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Client  *http.Client
	Logger  *slog.Logger
}

// Client forwards analysis jobs to the remote worker over HTTP. The hand-off
// is fire-and-forget: Forward validates and starts the request, then delivers
// the worker's answer on the returned channel.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

var _ core.WorkerClient = (*Client)(nil)

// NewClient builds a worker client. Callers should pass a sanitized config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("worker base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		timeout: timeout,
		client:  hc,
		logger:  logger,
	}, nil
}

// Forward starts a job hand-off. Errors returned synchronously mean the
// request never left this process; transport failures and worker refusals
// arrive on the returned channel, which delivers exactly one result.
func (c *Client) Forward(ctx context.Context, payload model.DispatchPayload) (<-chan core.ForwardResult, error) {
	if payload.JobID == "" {
		return nil, errors.New("dispatch payload missing job id")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode dispatch payload: %w", err)
	}

	// The caller returns before the worker answers, so the request rides a
	// detached context bounded by the client timeout.
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	results := make(chan core.ForwardResult, 1)
	go func() {
		defer cancel()
		defer close(results)
		results <- c.deliver(req)
	}()

	return results, nil
}

func (c *Client) deliver(req *http.Request) core.ForwardResult {
	resp, err := c.client.Do(req)
	if err != nil {
		return core.ForwardResult{Err: unavailable("job hand-off failed", err)}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close worker response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.ForwardResult{Err: fmt.Errorf("read worker response: %w", err)}
	}
	detail := strings.TrimSpace(string(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.ForwardResult{Err: &WorkerRejected{StatusCode: resp.StatusCode, Detail: detail}}
	}

	return core.ForwardResult{Ack: &core.WorkerAck{StatusCode: resp.StatusCode, Body: detail}}
}

// Poll sends a best-effort wake signal to the worker's dispatch trigger.
func (c *Client) Poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/poll", http.NoBody)
	if err != nil {
		return fmt.Errorf("create poll request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return unavailable("wake-up ping failed", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close poll response body", "error", closeErr)
		}
	}()

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes)); err != nil {
		return fmt.Errorf("drain poll response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &WorkerRejected{StatusCode: resp.StatusCode}
	}
	return nil
}
