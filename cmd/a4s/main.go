// Package main is the entry point for the A4S control plane: a single
// binary that wires agent discovery, the Docker runtime driver, the
// serverless scheduler, the reverse proxy, and the channel orchestrator
// behind one HTTP surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lunarr-ai/a4s/internal/activity"
	"github.com/lunarr-ai/a4s/internal/channel"
	"github.com/lunarr-ai/a4s/internal/channelstore"
	channelsqlite "github.com/lunarr-ai/a4s/internal/channelstore/sqlite"
	"github.com/lunarr-ai/a4s/internal/common/config"
	"github.com/lunarr-ai/a4s/internal/common/logger"
	"github.com/lunarr-ai/a4s/internal/proxy"
	"github.com/lunarr-ai/a4s/internal/registry"
	registrysqlite "github.com/lunarr-ai/a4s/internal/registry/sqlite"
	"github.com/lunarr-ai/a4s/internal/runtime/docker"
	"github.com/lunarr-ai/a4s/internal/scheduler"
	"github.com/lunarr-ai/a4s/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("starting a4s control plane")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dockerClient, err := docker.NewClient(cfg.Docker, log)
	if err != nil {
		log.Fatal("failed to connect to docker", zap.Error(err))
	}

	driver := docker.NewDriver(dockerClient, cfg.Docker.DefaultNetwork, cfg.Docker.APIBaseURL, cfg.Docker.AgentGatewayURL, cfg.Docker.ContainerPort)
	if err := driver.EnsureNetwork(ctx); err != nil {
		log.Fatal("failed to ensure docker network", zap.Error(err))
	}

	agentStore, err := registrysqlite.Open(cfg.Registry.SQLitePath)
	if err != nil {
		log.Fatal("failed to open agent registry", zap.Error(err))
	}
	var agentRegistry registry.AgentRegistry = agentStore

	chStore, err := channelsqlite.Open(cfg.Registry.SQLitePath)
	if err != nil {
		log.Fatal("failed to open channel store", zap.Error(err))
	}
	var chanStore channelstore.ChannelStore = chStore

	monitor := activity.NewMonitor()
	sched := scheduler.New(agentRegistry, driver, monitor, cfg.Scheduler, log)
	sched.Start()

	prox := proxy.New(agentRegistry, sched, cfg.Proxy, log)
	orch := channel.New(chanStore, agentRegistry, sched, cfg.Proxy, cfg.Backbone.AgentID, log)

	srv := server.New(agentRegistry, chanStore, driver, sched, prox, orch, cfg.Backbone, cfg.Docker.ContainerPort, cfg.Logging.Level, log)
	if err := srv.EnsureBackboneAgent(ctx); err != nil {
		log.Fatal("failed to register backbone agent", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down a4s control plane")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}

	sched.Stop()

	if err := chStore.Close(); err != nil {
		log.Error("channel store close error", zap.Error(err))
	}
	if err := agentStore.Close(); err != nil {
		log.Error("agent registry close error", zap.Error(err))
	}
	if err := dockerClient.Close(); err != nil {
		log.Error("docker client close error", zap.Error(err))
	}

	log.Info("a4s control plane stopped")
}
