package client

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

	"mety-backend/internal/model"
	"mety-backend/internal/utils"
)

const (
	DefaultTimeout = 30 * time.Second

	maxReplyBytes = 1 << 20
)

var (
	ErrBackendUnavailable = errors.New("chat backend unreachable")
	ErrMalformedReply     = errors.New("chat backend sent a malformed reply")
)

// BackendError is a non-2xx answer from the backend.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat backend returned status %d: %s", e.StatusCode, e.Message)
}

// RemoteBackend talks to the chat backend over HTTP.
type RemoteBackend struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteBackend(baseURL string, timeout time.Duration) *RemoteBackend {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RemoteBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: utils.NewHTTPClient(timeout),
	}
}

func (r *RemoteBackend) Answer(ctx context.Context, req *model.ChatRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	var reply model.ChatReply
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&reply)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &BackendError{StatusCode: resp.StatusCode, Message: reply.Error}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedReply, decodeErr)
	}
	if !reply.Success || strings.TrimSpace(reply.Message) == "" {
		return "", fmt.Errorf("%w: success=%t, %d message bytes", ErrMalformedReply, reply.Success, len(reply.Message))
	}

	return reply.Message, nil
}

// Health probes GET /api/health and reports whether the backend is up.
func (r *RemoteBackend) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	var health model.HealthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&health); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}
	if resp.StatusCode != http.StatusOK || health.Status != "OK" {
		return &BackendError{StatusCode: resp.StatusCode, Message: health.Message}
	}
	return nil
}
