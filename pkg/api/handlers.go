package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trustoracle/oracle/pkg/database"
	"github.com/trustoracle/oracle/pkg/model"
	"github.com/trustoracle/oracle/pkg/trend"
	"github.com/trustoracle/oracle/pkg/version"
)

const healthCheckTimeout = 5 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string                `json:"status"`
	Version  string                `json:"version"`
	Postgres database.BackendCheck `json:"postgres"`
	Cache    database.BackendCheck `json:"cache"`
}

// healthHandler handles GET /health: process + store health (spec.md §6,
// SPEC_FULL.md §6 expansion). Only the oracle's own storage backends
// (Postgres, Redis) are checked — external collaborators (RPC, indexer,
// LLM, gateways) are intentionally excluded so a flaky third party never
// flips this process's own health to unhealthy.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	health := database.CheckStores(ctx, s.db.DB(), s.cache)

	httpStatus := http.StatusOK
	if health.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, HealthResponse{
		Status:   health.Status,
		Version:  version.Full(),
		Postgres: health.Postgres,
		Cache:    health.Cache,
	})
}

// listAgentsHandler handles GET /agents: every monitored agent with its
// current score (spec.md §6 expansion).
func (s *Server) listAgentsHandler(c *gin.Context) {
	monitoredOnly := c.Query("all") != "true"

	agents, err := s.store.ListAgents(c.Request.Context(), monitoredOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if agents == nil {
		agents = []model.Agent{}
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents, "count": len(agents)})
}

// getAgentHandler handles GET /agents/:id: the single agent record.
func (s *Server) getAgentHandler(c *gin.Context) {
	agentID := c.Param("id")

	agent, err := s.store.GetAgent(c.Request.Context(), agentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if agent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	c.JSON(http.StatusOK, agent)
}

// getAgentHistoryHandler handles GET /agents/:id/history: the last
// `limit` health events, newest first (default 50; a limit outside 1..200
// falls back to the default). With
// ?onchain=true the response also carries the indexer's healthUpdateds
// view of the same agent, so callers can cross-check the oracle's own
// log against what actually landed on-chain. Indexer failures only drop
// that enrichment, never the store-backed history.
func (s *Server) getAgentHistoryHandler(c *gin.Context) {
	agentID := c.Param("id")
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	events, err := s.store.GetHealthHistory(c.Request.Context(), agentID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []model.HealthEvent{}
	}

	body := gin.H{"agentId": agentID, "events": events}
	if s.indexer != nil && c.Query("onchain") == "true" {
		updates, err := s.indexer.HealthUpdates(c.Request.Context(), agentID)
		if err != nil {
			s.logger.Warn("indexer history enrichment failed", "agentId", agentID, "error", err)
		} else {
			body["onChain"] = updates
		}
	}
	c.JSON(http.StatusOK, body)
}

// getAgentTrendsHandler handles GET /agents/:id/trends: the trend
// snapshot recomputed live from the stored probe history (spec.md §4.5 —
// trends() is a pure function of stored history, so there is nothing to
// cache here).
func (s *Server) getAgentTrendsHandler(c *gin.Context) {
	agentID := c.Param("id")

	agent, err := s.store.GetAgent(c.Request.Context(), agentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if agent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	c.JSON(http.StatusOK, trend.Analyze(agent.ProbeHistory))
}

// notifyRegisteredRequest is the body of POST /internal/agents/:id/registered.
type notifyRegisteredRequest struct {
	Endpoint     string `json:"endpoint" binding:"required"`
	Owner        string `json:"owner"`
	StakedAmount string `json:"stakedAmount"`
}

// notifyRegisteredHandler handles the MonitoringEnabled out-of-band signal
// (spec.md §6: "Events consumed when notified externally"). It creates the
// agent row at first observation if one does not already exist, per
// spec.md §3 "Lifecycle".
func (s *Server) notifyRegisteredHandler(c *gin.Context) {
	agentID := c.Param("id")

	var req notifyRegisteredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	existing, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	agent := model.Agent{AgentID: agentID}
	if existing != nil {
		agent = *existing
	}
	agent.Endpoint = req.Endpoint
	if req.Owner != "" {
		agent.Owner = req.Owner
	}
	agent.Monitored = true

	if err := s.store.UpsertAgent(ctx, agent); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("agent registered via notify signal", "agentId", agentID, "endpoint", req.Endpoint)
	c.JSON(http.StatusAccepted, gin.H{"agentId": agentID, "status": "registered"})
}

// notifyUnregisteredHandler handles DELETE /internal/agents/:id: the
// unregistration signal that triggers deleteAgentData's cascade across
// the agent row, its health events, its suspicious-counter row, and any
// cache entry containing the agent id (spec.md §3 "Lifecycle", §4.10).
func (s *Server) notifyUnregisteredHandler(c *gin.Context) {
	agentID := c.Param("id")

	touched, err := s.store.DeleteAgentData(c.Request.Context(), agentID, s.cache)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("agent unregistered via notify signal", "agentId", agentID, "collectionsTouched", touched)
	c.JSON(http.StatusOK, gin.H{"agentId": agentID, "status": "unregistered", "collectionsTouched": touched})
}
