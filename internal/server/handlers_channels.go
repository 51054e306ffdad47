package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/lunarr-ai/a4s/internal/common/errors"
	"github.com/lunarr-ai/a4s/internal/domain"
)

type createChannelRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	AgentIDs    []string `json:"agent_ids"`
	OwnerID     string   `json:"owner_id"`
}

func (s *Server) handleCreateChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, apperrors.BadRequest(err.Error()))
		return
	}

	now := time.Now().UTC()
	ch := &domain.Channel{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		AgentIDs:    req.AgentIDs,
		OwnerID:     req.OwnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.channels.Create(c.Request.Context(), ch); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

func (s *Server) handleListChannels(c *gin.Context) {
	offset, limit := parsePagination(c)
	channels, err := s.channels.List(c.Request.Context(), offset, limit)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (s *Server) handleGetChannel(c *gin.Context) {
	ch, err := s.channels.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

type updateChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleUpdateChannel(c *gin.Context) {
	var req updateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, apperrors.BadRequest(err.Error()))
		return
	}

	existing, err := s.channels.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	name := req.Name
	if name == "" {
		name = existing.Name
	}

	ch, err := s.channels.Update(c.Request.Context(), existing.ID, name, req.Description)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (s *Server) handleDeleteChannel(c *gin.Context) {
	if err := s.channels.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type channelAgentsRequest struct {
	AgentIDs []string `json:"agent_ids" binding:"required"`
}

func (s *Server) handleAddChannelAgents(c *gin.Context) {
	var req channelAgentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, apperrors.BadRequest(err.Error()))
		return
	}
	ch, err := s.channels.AddAgents(c.Request.Context(), c.Param("id"), req.AgentIDs)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (s *Server) handleRemoveChannelAgents(c *gin.Context) {
	var req channelAgentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, apperrors.BadRequest(err.Error()))
		return
	}
	ch, err := s.channels.RemoveAgents(c.Request.Context(), c.Param("id"), req.AgentIDs)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// handleSearchChannelAgents intersects a semantic search with channel
// membership, excluding the backbone (invariant 4).
func (s *Server) handleSearchChannelAgents(c *gin.Context) {
	_, limit := parsePagination(c)
	query := c.Query("query")

	ch, err := s.channels.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	hits, err := s.agents.Search(c.Request.Context(), query, limit)
	if err != nil {
		writeAppError(c, err)
		return
	}

	filtered := make([]*domain.Agent, 0, len(hits))
	for _, a := range hits {
		if a.ID == s.backboneCfg.AgentID || !ch.HasAgent(a.ID) {
			continue
		}
		filtered = append(filtered, a)
	}
	c.JSON(http.StatusOK, filtered)
}

type channelChatRequest struct {
	Message  string   `json:"message" binding:"required"`
	AgentIDs []string `json:"agent_ids"`
}

func (s *Server) handleChannelChat(c *gin.Context) {
	var req channelChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, apperrors.BadRequest(err.Error()))
		return
	}

	resp, err := s.orchestrator.Chat(c.Request.Context(), c.Param("id"), req.Message, req.AgentIDs)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
