package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/convoflow/pkg/models"
)

func TestExecutorFuncAdapts(t *testing.T) {
	called := false
	exec := NewExecutorFunc(
		func(_ context.Context, action *models.Action, _ map[string]any) (map[string]any, error) {
			called = true
			return map[string]any{"name": action.Name}, nil
		},
		nil,
	)

	require.NoError(t, exec.Validate(&models.Action{Name: "x"}))
	out, err := exec.Execute(context.Background(), &models.Action{Name: "x"}, nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "x", out["name"])
}

func TestDispatchUnknownAction(t *testing.T) {
	m := NewManager()
	_, err := Dispatch(context.Background(), m, &models.Action{Name: "nope"}, nil)
	assert.ErrorIs(t, err, models.ErrExecutorNotFound)
}

func TestDispatchNilAction(t *testing.T) {
	m := NewManager()
	_, err := Dispatch(context.Background(), m, nil, nil)
	assert.Error(t, err)
}

func TestDispatchValidationFailure(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register("strict", NewExecutorFunc(
		func(context.Context, *models.Action, map[string]any) (map[string]any, error) {
			t.Fatal("execute must not run after failed validation")
			return nil, nil
		},
		func(*models.Action) error { return fmt.Errorf("bad payload") },
	)))

	_, err := Dispatch(context.Background(), m, &models.Action{Name: "strict"}, nil)
	assert.ErrorContains(t, err, "bad payload")
}

func TestWebhookExecutorTemplatesBody(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := NewWebhookExecutor(server.Client())
	action := &models.Action{
		Name: "webhook",
		Payload: map[string]any{
			"url":  server.URL,
			"body": map[string]any{"lead": "{nome}"},
		},
	}
	out, err := exec.Execute(context.Background(), action, map[string]any{"nome": "Joao Silva"})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Joao Silva", got["lead"])
}

func TestWebhookExecutorRequiresURL(t *testing.T) {
	exec := NewWebhookExecutor(http.DefaultClient)
	err := exec.Validate(&models.Action{Name: "webhook", Payload: map[string]any{}})
	assert.Error(t, err)
}

func TestWebhookExecutorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	exec := NewWebhookExecutor(server.Client())
	out, err := exec.Execute(context.Background(), &models.Action{
		Name:    "webhook",
		Payload: map[string]any{"url": server.URL},
	}, nil)
	assert.Error(t, err)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, http.StatusBadGateway, out["status_code"])
}

func TestLogExecutorRecords(t *testing.T) {
	exec := NewLogExecutor(nil)
	out, err := exec.Execute(context.Background(), &models.Action{
		Name:    "send_email",
		Payload: map[string]any{"to": "lead@example.com"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["recorded"])
}

func TestRegisterBuiltins(t *testing.T) {
	m := NewManager()
	require.NoError(t, RegisterBuiltins(m, http.DefaultClient, nil))

	assert.True(t, m.Has("webhook"))
	assert.True(t, m.Has("send_email"))
	assert.True(t, m.Has("tag_lead"))
	assert.True(t, m.Has("scheduling"))
}
