package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

const (
	maxAttempts = 4

	// MaxPageSize и MaxBatchSize — жёсткие лимиты API
	MaxPageSize  = 100
	MaxBatchSize = 10
)

// Client talks to one Airtable table. Every request goes through Do, which owns
// the retry policy for rate limits and transient failures.
type Client struct {
	token   string
	baseURL string
	client  *http.Client

	// подменяется в тестах
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(token, tableURL string, timeout time.Duration) *Client {
	return &Client{
		token:   token,
		baseURL: tableURL,
		client:  &http.Client{Timeout: timeout},
		sleep:   sleepCtx,
	}
}

// BaseURL is the table endpoint the client was built for.
func (c *Client) BaseURL() string { return c.baseURL }

// Do performs one logical call with up to four attempts. A 429 waits for
// Retry-After (at least one second) or one second per attempt; network errors
// and 5xx wait 500ms per attempt. Other non-2xx responses are terminal.
func (c *Client) Do(ctx context.Context, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, header, respBody, err := c.roundTrip(ctx, method, url, payload)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("airtable %s: %w", method, err)
			log.Printf("[airtable][do] attempt=%d method=%s err=%v", attempt, method, err)
			if attempt < maxAttempts {
				if err := c.sleep(ctx, time.Duration(attempt)*500*time.Millisecond); err != nil {
					return err
				}
			}
			continue
		}

		if status == http.StatusTooManyRequests {
			lastErr = newAPIError(status, respBody)
			if attempt < maxAttempts {
				delay := retryAfter(header.Get("Retry-After"), attempt)
				log.Printf("[airtable][do] rate limited attempt=%d wait=%s", attempt, delay)
				if err := c.sleep(ctx, delay); err != nil {
					return err
				}
			}
			continue
		}

		if status >= 500 {
			lastErr = newAPIError(status, respBody)
			log.Printf("[airtable][do] attempt=%d method=%s status=%d", attempt, method, status)
			if attempt < maxAttempts {
				if err := c.sleep(ctx, time.Duration(attempt)*500*time.Millisecond); err != nil {
					return err
				}
			}
			continue
		}

		if status < 200 || status >= 300 {
			return newAPIError(status, respBody)
		}

		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return &APIError{
				Status:  status,
				Message: fmt.Sprintf("Server returned status %d. Could not parse response.", status),
			}
		}
		return nil
	}
	return lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, url string, payload []byte) (int, http.Header, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, b, nil
}

func retryAfter(v string, attempt int) time.Duration {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		d := time.Duration(secs * float64(time.Second))
		if d < time.Second {
			d = time.Second
		}
		return d
	}
	return time.Duration(attempt) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// APIError is an upstream failure; Message carries Airtable's own text when it sent one.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Retryable reports whether the failure was a rate limit or a server-side error.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	// Airtable отдаёт либо {"error":{"type","message"}}, либо {"error":"TYPE"}
	var structured struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	var flat struct {
		Error string `json:"error"`
	}
	switch {
	case json.Unmarshal(body, &structured) == nil && structured.Error.Message != "":
		apiErr.Type = structured.Error.Type
		apiErr.Message = structured.Error.Message
	case json.Unmarshal(body, &flat) == nil && flat.Error != "":
		apiErr.Type = flat.Error
		apiErr.Message = flat.Error
	default:
		apiErr.Message = fmt.Sprintf("An unknown server error occurred. (Status: %d)", status)
	}
	return apiErr
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
