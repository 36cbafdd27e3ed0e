package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

type flakyDoer struct {
	failures int32
	inner    HTTPDoer
	calls    atomic.Int32
}

type tempErr struct{}

func (tempErr) Error() string   { return "connection reset" }
func (tempErr) Temporary() bool { return true }

func (d *flakyDoer) Do(req *http.Request) (*http.Response, error) {
	if d.calls.Add(1) <= d.failures {
		return nil, tempErr{}
	}
	return d.inner.Do(req)
}

func TestCallWebhookSuccess(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	res := CallWebhook(context.Background(), server.Client(), WebhookRequest{
		URL:  server.URL,
		Body: map[string]any{"nome": "{nome}", "fixo": 7},
	}, map[string]any{"nome": "Carla"})

	assert.True(t, res.Success)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, `{"ok":true}`, res.BodyExcerpt)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Carla", gotBody["nome"])
	assert.Equal(t, float64(7), gotBody["fixo"])
}

func TestCallWebhookStatusClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	res := CallWebhook(context.Background(), server.Client(), WebhookRequest{URL: server.URL}, nil)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCallWebhookNoRetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	res := CallWebhook(context.Background(), server.Client(), WebhookRequest{
		URL:         server.URL,
		RetryOnFail: true,
	}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCallWebhookRetriesNetworkErrorOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	doer := &flakyDoer{failures: 1, inner: server.Client()}
	res := CallWebhook(context.Background(), doer, WebhookRequest{
		URL:         server.URL,
		RetryOnFail: true,
	}, nil)

	assert.True(t, res.Success)
	assert.Equal(t, int32(2), doer.calls.Load())
}

func TestCallWebhookNoRetryWhenDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	doer := &flakyDoer{failures: 1, inner: server.Client()}
	res := CallWebhook(context.Background(), doer, WebhookRequest{URL: server.URL}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, "connection reset", res.Err)
	assert.Equal(t, int32(1), doer.calls.Load())
}

func TestCallWebhookBodyExcerptLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer server.Close()

	res := CallWebhook(context.Background(), server.Client(), WebhookRequest{URL: server.URL}, nil)
	assert.Len(t, res.BodyExcerpt, webhookBodyExcerptLimit)
}

func TestCallWebhookCancelledByDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	res := CallWebhook(ctx, server.Client(), WebhookRequest{URL: server.URL}, nil)
	assert.False(t, res.Success)
}

func TestParseMethod(t *testing.T) {
	assert.Equal(t, http.MethodGet, ParseMethod("get"))
	assert.Equal(t, http.MethodDelete, ParseMethod(" DELETE "))
	assert.Equal(t, http.MethodPost, ParseMethod(""))
	assert.Equal(t, http.MethodPost, ParseMethod("PATCH"))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.DeadlineExceeded))
	assert.True(t, IsRetryableError(tempErr{}))
	assert.True(t, IsRetryableError(errors.New("dial tcp: connection refused")))
}
