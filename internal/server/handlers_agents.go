package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lunarr-ai/a4s/internal/common/errors"
	"github.com/lunarr-ai/a4s/internal/domain"
)

type registerAgentRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	Version     string              `json:"version"`
	URL         string              `json:"url"`
	Port        int                 `json:"port"`
	OwnerID     string              `json:"owner_id"`
	Mode        domain.AgentMode    `json:"mode" binding:"required"`
	SpawnConfig *domain.SpawnConfig `json:"spawn_config"`
}

func (s *Server) handleRegisterAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, apperrors.BadRequest(err.Error()))
		return
	}

	id, err := s.newAgentID(req.Name)
	if err != nil {
		writeAppError(c, err)
		return
	}

	url := req.URL
	if url == "" && req.SpawnConfig != nil {
		url = fmt.Sprintf("http://%s:%d", domain.ContainerName(id), req.Port)
	}

	agent := &domain.Agent{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Version:     req.Version,
		URL:         url,
		Port:        req.Port,
		OwnerID:     req.OwnerID,
		Status:      domain.AgentStatusPending,
		Mode:        req.Mode,
		SpawnConfig: req.SpawnConfig,
	}

	if err := s.agents.Register(c.Request.Context(), agent); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

func (s *Server) handleUnregisterAgent(c *gin.Context) {
	if err := s.agents.Unregister(c.Request.Context(), c.Param("id")); err != nil {
		writeAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListAgents(c *gin.Context) {
	offset, limit := parsePagination(c)
	agents, err := s.agents.List(c.Request.Context(), offset, limit)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, agents)
}

func (s *Server) handleSearchAgents(c *gin.Context) {
	_, limit := parsePagination(c)
	query := c.Query("query")

	hits, err := s.agents.Search(c.Request.Context(), query, limit)
	if err != nil {
		writeAppError(c, err)
		return
	}

	filtered := make([]*domain.Agent, 0, len(hits))
	for _, a := range hits {
		if a.ID == s.backboneCfg.AgentID {
			continue
		}
		filtered = append(filtered, a)
	}
	c.JSON(http.StatusOK, filtered)
}

func (s *Server) handleGetAgent(c *gin.Context) {
	agent, err := s.agents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (s *Server) handleStartAgent(c *gin.Context) {
	id := c.Param("id")
	agent, err := s.agents.Get(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	if agent.SpawnConfig == nil {
		writeAppError(c, apperrors.BadRequest("agent has no spawn_config"))
		return
	}

	req := domain.SpawnRequestFromAgent(agent)
	spawned, err := s.driver.Spawn(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": spawned.ID, "status": spawned.Status})
}

func (s *Server) handleStopAgent(c *gin.Context) {
	id := c.Param("id")
	if err := s.driver.Stop(c.Request.Context(), id); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": id, "status": domain.AgentStatusStopped})
}

func (s *Server) handleAgentStatus(c *gin.Context) {
	id := c.Param("id")
	status, err := s.driver.Status(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": id, "status": status})
}

// handleEnsureRunning implements the serverless cold-start gate. Permanent
// agents are treated as assumed running: the endpoint returns 200 without
// attempting to spawn anything (§9, resolved open question).
func (s *Server) handleEnsureRunning(c *gin.Context) {
	id := c.Param("id")
	agent, err := s.agents.Get(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	if agent.Mode != domain.ModeServerless {
		c.Status(http.StatusOK)
		return
	}

	if _, _, err := s.sched.EnsureRunning(c.Request.Context(), id); err != nil {
		writeAppError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleProxy(c *gin.Context) {
	s.proxy.ServeAgentProxy(c.Writer, c.Request, c.Param("id"), c.Param("path"))
}
