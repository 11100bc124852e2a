package html

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/resilience"
)

const userAgent = "zoning-feasibility/1.0 (+text snapshot)"

// Fetcher downloads a web page and reduces it to its visible text so it can
// be stored as a .txt source document.
type Fetcher struct {
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewFetcher(timeout time.Duration, executor *resilience.Executor) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (f *Fetcher) Snapshot(ctx context.Context, url string) (string, error) {
	text, err := resilience.Do(ctx, f.executor, "html.fetch", func(callCtx context.Context) (string, error) {
		return f.fetch(callCtx, url)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", resilience.WrapTemporary("fetch url", err, resilience.ClassifyHTTP)
	}
	return text, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", resilience.NewHTTPStatusError("html", "fetch", resp)
	}
	text, err := VisibleText(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
