package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smilemakc/convoflow/pkg/models"
)

// HTTPCallbackObserver forwards analytics events to an external HTTP endpoint,
// typically a tenant's own analytics collector or a BI webhook.
type HTTPCallbackObserver struct {
	name         string
	url          string
	method       string
	headers      map[string]string
	filter       EventFilter
	client       *http.Client
	maxRetries   int
	retryDelay   time.Duration
	retryBackoff float64
}

// HTTPObserverOption configures HTTPCallbackObserver.
type HTTPObserverOption func(*HTTPCallbackObserver)

// WithHTTPMethod sets the HTTP method.
func WithHTTPMethod(method string) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) {
		o.method = method
	}
}

// WithHTTPHeaders sets custom HTTP headers.
func WithHTTPHeaders(headers map[string]string) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) {
		o.headers = headers
	}
}

// WithHTTPName sets a custom observer name, required when registering more
// than one callback observer with the same manager.
func WithHTTPName(name string) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) {
		o.name = name
	}
}

// WithHTTPFilter sets the event filter.
func WithHTTPFilter(filter EventFilter) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) {
		o.filter = filter
	}
}

// WithHTTPTimeout sets the request timeout.
func WithHTTPTimeout(timeout time.Duration) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) {
		o.client.Timeout = timeout
	}
}

// WithHTTPRetry configures retry behavior.
func WithHTTPRetry(maxRetries int, delay time.Duration, backoff float64) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) {
		o.maxRetries = maxRetries
		o.retryDelay = delay
		o.retryBackoff = backoff
	}
}

// NewHTTPCallbackObserver creates a new HTTP callback observer.
func NewHTTPCallbackObserver(url string, opts ...HTTPObserverOption) *HTTPCallbackObserver {
	obs := &HTTPCallbackObserver{
		name:         "http_callback",
		url:          url,
		method:       http.MethodPost,
		headers:      make(map[string]string),
		client:       &http.Client{Timeout: 10 * time.Second},
		maxRetries:   3,
		retryDelay:   1 * time.Second,
		retryBackoff: 2.0,
	}
	for _, opt := range opts {
		opt(obs)
	}
	return obs
}

// Name returns the observer's name.
func (o *HTTPCallbackObserver) Name() string {
	return o.name
}

// Filter returns the event filter.
func (o *HTTPCallbackObserver) Filter() EventFilter {
	return o.filter
}

// OnEvent delivers the event as a JSON POST (or configured method).
func (o *HTTPCallbackObserver) OnEvent(ctx context.Context, event models.AnalyticsEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return o.sendWithRetry(ctx, body)
}

// sendWithRetry sends the request with exponential backoff.
func (o *HTTPCallbackObserver) sendWithRetry(ctx context.Context, body []byte) error {
	var lastErr error
	delay := o.retryDelay

	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * o.retryBackoff)
		}

		if err := o.send(ctx, body); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("http callback failed after %d attempts: %w", o.maxRetries+1, lastErr)
}

func (o *HTTPCallbackObserver) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, o.method, o.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range o.headers {
		req.Header.Set(key, value)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http callback returned status %d", resp.StatusCode)
	}
	return nil
}
