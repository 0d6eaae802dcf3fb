package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sender posts CloudEvents over HTTP in structured mode.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given per-request timeout.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Send delivers event to url, signing the body when key is set.
func (s *Sender) Send(ctx context.Context, url string, event *CloudEvent, key string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/cloudevents+json")
	req.Header.Set("Ce-Specversion", event.SpecVersion)
	req.Header.Set("Ce-Type", event.Type)
	req.Header.Set("Ce-Source", event.Source)
	req.Header.Set("Ce-Subject", event.Subject)
	req.Header.Set("Ce-Id", event.ID)
	req.Header.Set("Ce-Time", event.Time.Format(time.RFC3339))
	if key != "" {
		req.Header.Set("X-Signature-256", signature(body, key))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &HTTPError{StatusCode: resp.StatusCode}
}

// HTTPError is a non-2xx callback response.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// isClientError reports 4xx responses, which are not retried.
func isClientError(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= 400 && he.StatusCode < 500
	}
	return false
}
