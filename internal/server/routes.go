package server

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lunarr-ai/a4s/internal/common/errors"
	"github.com/lunarr-ai/a4s/internal/idgen"
)

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/api/v1")

	agents := v1.Group("/agents")
	agents.POST("", s.handleRegisterAgent)
	agents.GET("", s.handleListAgents)
	agents.GET("/search", s.handleSearchAgents)
	agents.GET("/:id", s.handleGetAgent)
	agents.DELETE("/:id", s.handleUnregisterAgent)
	agents.POST("/:id/start", s.handleStartAgent)
	agents.POST("/:id/stop", s.handleStopAgent)
	agents.GET("/:id/status", s.handleAgentStatus)
	agents.Any("/:id/ensure-running", s.handleEnsureRunning)
	agents.Any("/:id/proxy/*path", s.handleProxy)

	channels := v1.Group("/channels")
	channels.POST("", s.handleCreateChannel)
	channels.GET("", s.handleListChannels)
	channels.GET("/:id", s.handleGetChannel)
	channels.PUT("/:id", s.handleUpdateChannel)
	channels.DELETE("/:id", s.handleDeleteChannel)
	channels.POST("/:id/agents", s.handleAddChannelAgents)
	channels.DELETE("/:id/agents", s.handleRemoveChannelAgents)
	channels.GET("/:id/agents/search", s.handleSearchChannelAgents)
	channels.POST("/:id/chat", s.handleChannelChat)
}

func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	return offset, limit
}

func (s *Server) newAgentID(name string) (string, error) {
	id, err := idgen.AgentID(name)
	if err != nil {
		return "", apperrors.InternalError("generate agent id", err)
	}
	return id, nil
}
