package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookRequest is the templated HTTP call a WEBHOOK_CALL, API_INTEGRATION,
// or ACTION(webhook) node issues.
type WebhookRequest struct {
	URL            string
	Method         string
	Headers        map[string]string
	Body           map[string]any
	TimeoutSeconds int
	RetryOnFail    bool
}

// WebhookResult is the outbound-HTTP response contract.
type WebhookResult struct {
	Success    bool
	StatusCode int
	BodyExcerpt string
	Err         string
}

const webhookBodyExcerptLimit = 1000

// HTTPDoer is the subset of *http.Client the webhook caller needs, so tests
// can substitute a fake transport without a live listener.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CallWebhook performs the outbound HTTP call: templates string body
// values from collected_data, applies the method default and timeout
// default, and retries at most once on network-class failure when
// RetryOnFail is set. The call is cancellable by ctx, composing with the
// surrounding step deadline.
func CallWebhook(ctx context.Context, client HTTPDoer, req WebhookRequest, data map[string]any) WebhookResult {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	timeout := req.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	body := renderBody(req.Body, data)
	policy := WebhookRetryPolicy(req.RetryOnFail)

	var result WebhookResult
	_ = policy.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()

		httpReq, err := http.NewRequestWithContext(callCtx, method, req.URL, bytes.NewReader(body))
		if err != nil {
			result = WebhookResult{Success: false, Err: err.Error()}
			return nil // not retryable — malformed request, not a network error
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			result = WebhookResult{Success: false, Err: err.Error()}
			return err
		}
		defer resp.Body.Close()

		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, webhookBodyExcerptLimit))
		result = WebhookResult{
			Success:     resp.StatusCode < 400,
			StatusCode:  resp.StatusCode,
			BodyExcerpt: string(excerpt),
		}
		return nil
	})

	return result
}

func renderBody(body map[string]any, data map[string]any) []byte {
	rendered := make(map[string]any, len(body))
	for k, v := range body {
		if s, ok := v.(string); ok {
			rendered[k] = RenderTemplate(s, data)
		} else {
			rendered[k] = v
		}
	}
	encoded, err := json.Marshal(rendered)
	if err != nil {
		return []byte("{}")
	}
	return encoded
}

// ParseMethod normalizes a configured HTTP method string to the closed set
// GET/POST/PUT/DELETE, defaulting to POST for anything else.
func ParseMethod(s string) string {
	switch m := strings.ToUpper(strings.TrimSpace(s)); m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return m
	default:
		return http.MethodPost
	}
}
