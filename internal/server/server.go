// Package server wires C1-C6 together behind a gin HTTP surface (C7):
// agent and channel REST endpoints, the reverse proxy, error-to-status
// mapping, and backbone-agent registration on startup.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lunarr-ai/a4s/internal/channel"
	"github.com/lunarr-ai/a4s/internal/channelstore"
	"github.com/lunarr-ai/a4s/internal/common/config"
	apperrors "github.com/lunarr-ai/a4s/internal/common/errors"
	"github.com/lunarr-ai/a4s/internal/common/logger"
	"github.com/lunarr-ai/a4s/internal/domain"
	"github.com/lunarr-ai/a4s/internal/proxy"
	"github.com/lunarr-ai/a4s/internal/registry"
	"github.com/lunarr-ai/a4s/internal/runtime"
	"github.com/lunarr-ai/a4s/internal/scheduler"
)

// Server wires every component into one gin.Engine.
type Server struct {
	router        *gin.Engine
	agents        registry.AgentRegistry
	channels      channelstore.ChannelStore
	driver        runtime.Driver
	sched         *scheduler.Scheduler
	proxy         *proxy.Proxy
	orchestrator  *channel.Orchestrator
	backboneCfg   config.BackboneConfig
	containerPort int
	logger        *logger.Logger
}

// New constructs a Server and registers all routes. containerPort is the
// port managed agent containers (including the backbone) listen on, used
// to derive the backbone's DNS-form URL.
func New(
	agents registry.AgentRegistry,
	channels channelstore.ChannelStore,
	driver runtime.Driver,
	sched *scheduler.Scheduler,
	prox *proxy.Proxy,
	orch *channel.Orchestrator,
	backboneCfg config.BackboneConfig,
	containerPort int,
	logLevel string,
	log *logger.Logger,
) *Server {
	if logLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		router:        router,
		agents:        agents,
		channels:      channels,
		driver:        driver,
		sched:         sched,
		proxy:         prox,
		orchestrator:  orch,
		backboneCfg:   backboneCfg,
		containerPort: containerPort,
		logger:        log,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// EnsureBackboneAgent registers the configured backbone agent if it is
// absent from the registry, per the lifespan contract in §4.7.
func (s *Server) EnsureBackboneAgent(ctx context.Context) error {
	if s.backboneCfg.AgentID == "" {
		return nil
	}
	if _, err := s.agents.Get(ctx, s.backboneCfg.AgentID); err == nil {
		return nil
	}

	agent := &domain.Agent{
		ID:          s.backboneCfg.AgentID,
		Name:        "backbone-router",
		Description: "Routes channel chat messages to the right peer agent.",
		Version:     "1.0.0",
		URL:         fmt.Sprintf("http://%s:%d", domain.ContainerName(s.backboneCfg.AgentID), s.containerPort),
		Port:        s.containerPort,
		Status:      domain.AgentStatusPending,
		Mode:        domain.ModePermanent,
		SpawnConfig: &domain.SpawnConfig{
			Image: s.backboneCfg.Image,
			Model: domain.ModelRef{
				Provider: s.backboneCfg.ModelProvider,
				ModelID:  s.backboneCfg.ModelID,
			},
			Instruction:   s.backboneCfg.Instruction,
			MCPToolFilter: "search_agents,send_a2a_message",
		},
	}
	if err := s.agents.Register(ctx, agent); err != nil {
		return err
	}
	s.logger.Info("registered backbone agent", zap.String("agent_id", agent.ID))
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func writeAppError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	c.JSON(status, gin.H{"detail": err.Error()})
}
