package guardrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPClassifier asks an external moderation endpoint. The endpoint receives
// {"text": "..."} and answers with a Verdict.
type HTTPClassifier struct {
	url        string
	httpClient *http.Client
	userAgent  string
	attempts   int
	backoff    time.Duration
}

func NewHTTPClassifier(url string, httpClient *http.Client, userAgent string) *HTTPClassifier {
	return &HTTPClassifier{
		url:        url,
		httpClient: httpClient,
		userAgent:  userAgent,
		attempts:   2,
		backoff:    200 * time.Millisecond,
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		verdict, retryable, err := c.post(ctx, body)
		if err == nil {
			return verdict, nil
		}
		lastErr = err
		if !retryable || attempt == c.attempts {
			break
		}

		slog.Debug("Retrying content classifier", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return Verdict{}, ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}

	return Verdict{}, lastErr
}

func (c *HTTPClassifier) post(ctx context.Context, body []byte) (Verdict, bool, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, true, fmt.Errorf("failed to call classifier: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Verdict{}, true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return Verdict{}, retryable, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var verdict Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return Verdict{}, false, fmt.Errorf("failed to decode verdict: %w", err)
	}
	return verdict, false, nil
}
