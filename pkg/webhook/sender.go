package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers JSON payloads to HTTP endpoints with retries, optional
// HMAC signing and optional circuit breaking. Safe for concurrent use.
type Sender struct {
	client    *http.Client
	userAgent string
}

// NewSender creates a Sender with a pooled HTTP client. Pass a nil client to
// use the default one.
func NewSender(client *http.Client) *Sender {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Sender{client: client, userAgent: "subcycle-webhook/1.0"}
}

// Send marshals data to JSON and delivers it to endpoint.
// 4xx responses other than 408, 425 and 429 are permanent and are not
// retried; everything else is retried with the configured backoff until
// attempts are exhausted or ctx is done.
func (s *Sender) Send(ctx context.Context, endpoint string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}
	if err := validate(endpoint, payload); err != nil {
		return err
	}

	o := defaultSendOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.breaker != nil && !o.breaker.Allow() {
		return ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.backoff.NextInterval(attempt)):
			}
		}

		result := s.deliver(ctx, endpoint, payload, o)
		result.Attempt = attempt + 1
		if o.onDelivery != nil {
			o.onDelivery(result)
		}
		if o.breaker != nil {
			if result.Err == nil {
				o.breaker.RecordSuccess()
			} else {
				o.breaker.RecordFailure()
			}
		}

		if result.Err == nil {
			return nil
		}
		lastErr = result.Err
		if isPermanent(result.StatusCode) {
			return errors.Join(ErrPermanentFailure, lastErr)
		}
	}

	return errors.Join(fmt.Errorf("%w after %d attempts", ErrDeliveryFailed, o.maxRetries+1), lastErr)
}

func (s *Sender) deliver(ctx context.Context, endpoint string, payload []byte, o *sendOptions) DeliveryResult {
	start := time.Now()
	result := DeliveryResult{}

	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, o.method, endpoint, bytes.NewReader(payload))
	if err != nil {
		result.Err = err
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}
	if o.secret != "" {
		sig, err := SignPayload(o.secret, payload)
		if err != nil {
			result.Err = err
			return result
		}
		for k, v := range sig.Headers() {
			req.Header.Set(k, v)
		}
	}

	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			result.Err = errors.Join(ErrTimeout, err)
		} else {
			result.Err = errors.Join(ErrTemporaryFailure, err)
		}
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return result
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
	if text := strings.TrimSpace(strings.ReplaceAll(string(body), "\n", " ")); text != "" {
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		msg += ": " + text
	}
	result.Err = errors.New(msg)
	return result
}

func validate(endpoint string, payload []byte) error {
	if endpoint == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.Join(ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	if len(payload) == 0 || string(payload) == "null" {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	return nil
}

func isPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
