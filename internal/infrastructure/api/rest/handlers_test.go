package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
	"github.com/smilemakc/convoflow/internal/store"
	"github.com/smilemakc/convoflow/pkg/engine"
	"github.com/smilemakc/convoflow/pkg/models"
)

const leadFlowJSON = `{
	"start_node_id": "greet",
	"nodes": [
		{"id": "greet", "type": "GREETING", "config": {"message": "Olá!"}, "next_node_id": "name"},
		{"id": "name", "type": "NAME", "config": {"prompt": "Seu nome?"}, "next_node_id": "end"},
		{"id": "end", "type": "END", "config": {}}
	]
}`

func setupTestServer(t *testing.T) (*gin.Engine, *Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := &Server{
		Engine:       engine.New(nil),
		Graphs:       NewGraphRegistry(),
		Contexts:     store.NewContextStore(client, time.Hour),
		Log:          logger.Default(),
		StepDeadline: 5 * time.Second,
	}
	router := gin.New()
	router.GET("/health", s.Health)
	router.POST("/engine/step", s.Step)
	router.GET("/engine/context/:conversation_id", s.GetContext)
	router.GET("/engine/score/:conversation_id", s.GetScore)
	router.POST("/graphs", s.RegisterGraph)
	router.POST("/graphs/validate", s.ValidateGraph)
	return router, s
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerLeadFlow(t *testing.T, router *gin.Engine) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/graphs", map[string]any{
		"graph_id": "lead-flow",
		"graph":    json.RawMessage(leadFlowJSON),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRegisterGraphAndStep(t *testing.T) {
	router, _ := setupTestServer(t)
	registerLeadFlow(t, router)

	step := map[string]any{
		"conversation_id": "conv-1",
		"lead_id":         "lead-1",
		"tenant_id":       "tenant-1",
		"graph_id":        "lead-flow",
		"user_message":    "oi",
	}
	w := doJSON(t, router, http.MethodPost, "/engine/step", step)
	require.Equal(t, http.StatusOK, w.Code)

	var result models.StepResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Contains(t, result.ReplyText, "Olá!")
	assert.True(t, result.ShouldWait)

	step["user_message"] = "maria souza"
	w = doJSON(t, router, http.MethodPost, "/engine/step", step)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.ResultEnd, result.ResultKind)
	assert.Equal(t, "nome", result.CollectedField)
}

func TestStepUnknownGraph(t *testing.T) {
	router, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/engine/step", map[string]any{
		"conversation_id": "c",
		"tenant_id":       "t",
		"graph_id":        "missing",
		"user_message":    "oi",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStepMissingRequiredFields(t *testing.T) {
	router, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/engine/step", map[string]any{"user_message": "oi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetContextAfterStep(t *testing.T) {
	router, _ := setupTestServer(t)
	registerLeadFlow(t, router)

	doJSON(t, router, http.MethodPost, "/engine/step", map[string]any{
		"conversation_id": "conv-ctx",
		"tenant_id":       "tenant-1",
		"graph_id":        "lead-flow",
		"user_message":    "oi",
	})

	w := doJSON(t, router, http.MethodGet, "/engine/context/conv-ctx", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cctx models.Context
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cctx))
	assert.Equal(t, "conv-ctx", cctx.ConversationID)
	assert.Equal(t, models.StatusWaitingInput, cctx.Status())
	assert.Contains(t, cctx.VisitedNodeIDs(), "greet")
}

func TestGetContextNotFound(t *testing.T) {
	router, _ := setupTestServer(t)
	w := doJSON(t, router, http.MethodGet, "/engine/context/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateGraphReportsDiagnostics(t *testing.T) {
	router, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/graphs/validate", json.RawMessage(`{
		"start_node_id": "q",
		"nodes": [{"id": "q", "type": "QUESTION", "config": {}}]
	}`))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Diagnostics []models.Diagnostic `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, models.HasErrors(resp.Diagnostics))
}

func TestRegisterGraphRefusesErrors(t *testing.T) {
	router, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/graphs", map[string]any{
		"graph_id": "broken",
		"graph": json.RawMessage(`{
			"start_node_id": "q",
			"nodes": [{"id": "q", "type": "QUESTION", "config": {}}]
		}`),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetScore(t *testing.T) {
	router, s := setupTestServer(t)
	registerLeadFlow(t, router)

	cctx := models.NewContext("conv-score", "lead-1", "tenant-1", "lead-flow", "greet", time.Now().UTC())
	cctx.SetField("nome", "Maria")
	cctx.SetField("telefone", "11999998888")
	cctx.SetField("urgencia", "imediata")
	require.NoError(t, s.Contexts.Save(httptest.NewRequest(http.MethodGet, "/", nil).Context(), cctx))

	w := doJSON(t, router, http.MethodGet, "/engine/score/conv-score", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var score struct {
		Total       int    `json:"total"`
		Temperature string `json:"temperature"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &score))
	assert.Greater(t, score.Total, 0)
	assert.NotEmpty(t, score.Temperature)
}

func TestHealth(t *testing.T) {
	router, _ := setupTestServer(t)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
