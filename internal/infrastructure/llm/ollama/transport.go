package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/resilience"
)

const (
	maxResponseBytes = 64 << 20
	maxErrorBytes    = 2048
)

// ErrModelMissing means the configured model has not been pulled into the
// Ollama server.
var ErrModelMissing = errors.New("ollama model not pulled")

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}
	if resp.StatusCode >= 300 {
		return statusError(operation, resp, raw)
	}

	// Ollama can report a failure in a 200 body, e.g. when the runner dies
	// mid-request.
	if message := errorMessage(raw); message != "" {
		return &resilience.HTTPStatusError{
			Service:    "ollama",
			Operation:  operation,
			StatusCode: http.StatusBadGateway,
			Status:     "502 model error",
			Body:       message,
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func statusError(operation string, resp *http.Response, raw []byte) error {
	message := errorMessage(raw)
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if len(message) > maxErrorBytes {
		message = message[:maxErrorBytes]
	}

	statusErr := &resilience.HTTPStatusError{
		Service:    "ollama",
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       message,
	}
	if resp.StatusCode == http.StatusNotFound && strings.Contains(message, "not found") {
		return fmt.Errorf("%w: %w", ErrModelMissing, statusErr)
	}
	return statusErr
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Error)
}
