package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/zulandar/switchboard/internal/mailbox"
)

const (
	// defaultTimeout bounds a single request to the endpoint.
	defaultTimeout = 10 * time.Second
	// defaultRetries is the number of additional attempts after the
	// first request fails.
	defaultRetries = 3
)

// batchPayload is the JSON body posted to the processing endpoint.
type batchPayload struct {
	Messages  []payloadMessage `json:"messages"`
	BatchSize int              `json:"batch_size"`
	Timestamp int64            `json:"timestamp"`
}

type payloadMessage struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"username"`
	Text      string `json:"text"`
	ChannelID string `json:"channel_id"`
	ThreadID  string `json:"thread_id"`
	EventTS   string `json:"event_ts"`
}

// HTTP posts batches to a remote processing endpoint.
type HTTP struct {
	endpoint string
	client   *http.Client
	retries  int
}

// HTTPOpts holds parameters for creating an HTTP processor.
type HTTPOpts struct {
	Endpoint string
	Timeout  time.Duration // per-request, defaults to defaultTimeout
	Retries  int           // defaults to defaultRetries
	// Client overrides the HTTP client, for tests.
	Client *http.Client
}

// NewHTTP creates an HTTP processor.
func NewHTTP(opts HTTPOpts) (*HTTP, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("processor: endpoint is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTP{
		endpoint: opts.Endpoint,
		client:   client,
		retries:  opts.Retries,
	}, nil
}

// Process posts the batch as JSON. Transport-level failures are retried
// with exponential backoff up to the configured attempt count; a
// non-2xx response is returned as an error without retry.
func (h *HTTP) Process(ctx context.Context, batch []mailbox.Message) (string, error) {
	if len(batch) == 0 {
		return "", fmt.Errorf("processor: empty batch")
	}

	payload := batchPayload{
		BatchSize: len(batch),
		Timestamp: time.Now().Unix(),
	}
	for _, m := range batch {
		payload.Messages = append(payload.Messages, payloadMessage{
			UserID:    m.UserID,
			UserName:  m.UserName,
			Text:      m.Text,
			ChannelID: m.ChannelID,
			ThreadID:  m.ThreadID,
			EventTS:   m.EventTS,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("processor: encode payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= h.retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		result, retryable, err := h.post(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", fmt.Errorf("processor: post batch: %w", lastErr)
}

// post performs one request. The second return reports whether the
// failure is worth retrying.
func (h *HTTP) post(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", false, fmt.Errorf("endpoint returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", false, err
	}
	if len(data) == 0 {
		return "Batch accepted by processing endpoint", false, nil
	}

	// Endpoints may answer with plain text or {"result": "..."}.
	var parsed struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Result != "" {
		return parsed.Result, false, nil
	}
	return string(data), false, nil
}

// HealthCheck issues a GET against the endpoint and accepts any
// response that is not a server error.
func (h *HTTP) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return fmt.Errorf("processor: health check: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("processor: health check: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("processor: health check: endpoint returned %s", resp.Status)
	}
	return nil
}
