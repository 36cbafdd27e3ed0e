// Package rest exposes the engine over JSON/HTTP: the step endpoint that
// drives a conversation one inbound message at a time, context retrieval,
// graph registration/validation, and the live analytics event stream.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
	"github.com/smilemakc/convoflow/internal/store"
	"github.com/smilemakc/convoflow/pkg/engine"
	"github.com/smilemakc/convoflow/pkg/executor"
	"github.com/smilemakc/convoflow/pkg/graph"
	"github.com/smilemakc/convoflow/pkg/models"
	"github.com/smilemakc/convoflow/pkg/scorer"
)

// Server carries the handlers' collaborators.
type Server struct {
	Engine       *engine.Engine
	Graphs       *GraphRegistry
	Contexts     *store.ContextStore
	Actions      executor.Manager
	Log          *logger.Logger
	StepDeadline time.Duration
}

// StepRequest is the body of POST /engine/step.
type StepRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	LeadID         string `json:"lead_id"`
	TenantID       string `json:"tenant_id" binding:"required"`
	GraphID        string `json:"graph_id" binding:"required"`
	UserMessage    string `json:"user_message"`
	Media          string `json:"media,omitempty"`
	ReceivedAt     string `json:"received_at,omitempty"`
}

// Step drives one engine step for an inbound message.
func (s *Server) Step(c *gin.Context) {
	var req StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, ok := s.Graphs.Get(req.GraphID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "graph not found: " + req.GraphID})
		return
	}

	now := time.Now().UTC()
	if req.ReceivedAt != "" {
		if t, err := time.Parse(time.RFC3339, req.ReceivedAt); err == nil {
			now = t.UTC()
		}
	}

	cctx, err := s.Contexts.Load(c.Request.Context(), req.ConversationID)
	if errors.Is(err, models.ErrContextNotFound) {
		cctx = models.NewContext(req.ConversationID, req.LeadID, req.TenantID, req.GraphID, g.StartNodeID, now)
	} else if err != nil {
		s.Log.Error("context load failed", "conversation_id", req.ConversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation context"})
		return
	}

	stepCtx, cancel := context.WithTimeout(c.Request.Context(), s.StepDeadline)
	defer cancel()

	userInput := req.UserMessage
	if userInput == "" {
		userInput = req.Media
	}
	result := s.Engine.ProcessMessage(stepCtx, g, cctx, userInput, now)

	if result.ActionReq != nil && s.Actions != nil && s.Actions.Has(result.ActionReq.Name) {
		if _, err := executor.Dispatch(stepCtx, s.Actions, result.ActionReq, cctx.SnapshotCollectedData()); err != nil {
			s.Log.Warn("action dispatch failed", "action", result.ActionReq.Name, "error", err)
		}
	}

	if err := s.Contexts.Save(c.Request.Context(), cctx); err != nil {
		s.Log.Error("context save failed", "conversation_id", req.ConversationID, "error", err)
	}

	status := http.StatusOK
	if result.Error != nil && result.Error.Code == models.ErrCodeConversationBusy {
		status = http.StatusConflict
	}
	c.JSON(status, result)
}

// GetContext returns the serialized context for a conversation.
func (s *Server) GetContext(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	cctx, err := s.Contexts.Load(c.Request.Context(), conversationID)
	if errors.Is(err, models.ErrContextNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found: " + conversationID})
		return
	}
	if err != nil {
		s.Log.Error("context load failed", "conversation_id", conversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation context"})
		return
	}
	c.JSON(http.StatusOK, cctx)
}

// GetScore runs the lead scorer over a conversation's collected data.
func (s *Server) GetScore(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	cctx, err := s.Contexts.Load(c.Request.Context(), conversationID)
	if errors.Is(err, models.ErrContextNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found: " + conversationID})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation context"})
		return
	}

	var weights map[string]int
	if g, ok := s.Graphs.Get(cctx.GraphID); ok {
		weights = g.GlobalCfg.QualificationWeights
	}
	now := time.Now().UTC()
	metrics := scorer.Metrics{
		TotalMessages:        len(cctx.Visits),
		TotalDurationMinutes: cctx.SessionDuration(now).Minutes(),
		RetriesPerField:      cctx.RetriesPerField(),
		FieldsCollectedCount: len(cctx.SnapshotCollectedData()),
	}
	c.JSON(http.StatusOK, scorer.Calculate(cctx.SnapshotCollectedData(), metrics, weights))
}

// ValidateGraph autocorrects and validates a raw graph without registering it.
func (s *Server) ValidateGraph(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, diags, err := graph.LoadJSON(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"canonical_graph": canonicalGraphJSON(g),
		"diagnostics":     diags,
	})
}

// RegisterGraphRequest is the body of POST /graphs.
type RegisterGraphRequest struct {
	GraphID string          `json:"graph_id" binding:"required"`
	Graph   json.RawMessage `json:"graph" binding:"required"`
}

// RegisterGraph loads, validates, and caches a graph for stepping. A graph
// with ERROR-level diagnostics is refused.
func (s *Server) RegisterGraph(c *gin.Context) {
	var req RegisterGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, diags, err := graph.LoadJSON(req.Graph)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if models.HasErrors(diags) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       string(models.ErrCodeGraphValidationError),
			"diagnostics": diags,
		})
		return
	}
	if err := s.Graphs.Register(req.GraphID, g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"graph_id": req.GraphID, "diagnostics": diags})
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": uuid.NewString()})
}

// canonicalGraphJSON renders a canonical graph in the wire shape, with
// nodes in declaration order.
func canonicalGraphJSON(g *models.Graph) gin.H {
	nodes := make([]*models.Node, 0)
	nodes = append(nodes, g.NodesInOrder()...)
	return gin.H{
		"nodes":         nodes,
		"edges":         g.Edges,
		"start_node_id": g.StartNodeID,
		"version":       g.Version,
		"global_config": g.GlobalCfg,
		"name":          g.Name,
		"description":   g.Description,
	}
}
