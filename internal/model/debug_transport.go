package model

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"

	"mety-backend/pkg/logger"
)

var (
	sensitiveHeaders = []string{"authorization", "x-api-key", "x-goog-api-key", "x-auth-token", "cookie", "api-key"}
	sensitiveFields  = regexp.MustCompile(`(?i)("(?:api_key|apikey|password|secret|token)"\s*:\s*)"[^"]*"`)
)

// DebugTransport logs outgoing provider requests at debug level with
// credentials redacted. When disabled it only delegates.
type DebugTransport struct {
	base    http.RoundTripper
	enabled bool
}

func NewDebugTransport(base http.RoundTripper, enabled bool) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base, enabled: enabled}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.enabled && req.Method == http.MethodPost {
		t.logRequest(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil && t.enabled {
		logger.WithFields(logger.Fields{"url": req.URL.Redacted()}).Debugf("provider request failed: %v", err)
	}
	return resp, err
}

func (t *DebugTransport) logRequest(req *http.Request) {
	headers := make(map[string]string, len(req.Header))
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			headers[name] = "[REDACTED]"
			continue
		}
		headers[name] = strings.Join(values, ", ")
	}

	fields := logger.Fields{
		"method":  req.Method,
		"url":     req.URL.Redacted(),
		"headers": headers,
	}

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			logger.Warnf("debug transport: read request body: %v", err)
			return
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		fields["body_bytes"] = len(body)
		fields["body"] = redactBody(string(body))
	}

	logger.WithFields(fields).Debug("provider request")
}

func redactBody(body string) string {
	return sensitiveFields.ReplaceAllString(body, `${1}"[REDACTED]"`)
}

func isSensitiveHeader(name string) bool {
	for _, sensitive := range sensitiveHeaders {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}
