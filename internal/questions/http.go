package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	fetchAttempts = 3
	retryBackoff  = 500 * time.Millisecond
)

// HTTPProvider fetches questions from the remote generation service. The
// service is treated as a request/response oracle; malformed questions in
// the response fail the whole batch.
type HTTPProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider creates a provider against the given service URL. A
// zero timeout falls back to 30s.
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type fetchRequest struct {
	Subject string `json:"subject"`
	Count   int    `json:"count"`
}

type fetchResponse struct {
	Questions []Question `json:"questions"`
}

// Fetch requests count questions, retrying transient failures with a fixed
// backoff. Server 5xx responses retry; anything else fails immediately.
func (p *HTTPProvider) Fetch(ctx context.Context, subject string, count int) ([]Question, error) {
	body, err := json.Marshal(fetchRequest{Subject: subject, Count: count})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff):
			}
		}

		qs, retryable, err := p.fetchOnce(ctx, body)
		if err == nil {
			return qs, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("fetching questions: %w", lastErr)
}

func (p *HTTPProvider) fetchOnce(ctx context.Context, body []byte) (qs []Question, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("service returned %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("service returned %s", resp.Status)
	}

	var out fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Questions) == 0 {
		return nil, false, ErrNoQuestions
	}
	for i := range out.Questions {
		if err := out.Questions[i].Validate(); err != nil {
			return nil, false, err
		}
	}
	return out.Questions, false, nil
}
