// Package scheduler implements the agent scheduler (C3): cold-start
// gating via ensureRunning, activity recording, and the idle reaper that
// stops serverless agents that have gone quiet.
package scheduler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lunarr-ai/a4s/internal/activity"
	"github.com/lunarr-ai/a4s/internal/common/config"
	"github.com/lunarr-ai/a4s/internal/common/logger"
	"github.com/lunarr-ai/a4s/internal/domain"
	"github.com/lunarr-ai/a4s/internal/registry"
	"github.com/lunarr-ai/a4s/internal/runtime"
)

// Scheduler owns cold-start gating and idle reaping for managed agents.
type Scheduler struct {
	registry registry.AgentRegistry
	driver   runtime.Driver
	activity *activity.Monitor
	cfg      config.SchedulerConfig
	logger   *logger.Logger

	group      singleflight.Group
	httpClient *http.Client

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs a Scheduler. The reaper is not started until Start is called.
func New(reg registry.AgentRegistry, driver runtime.Driver, monitor *activity.Monitor, cfg config.SchedulerConfig, log *logger.Logger) *Scheduler {
	return &Scheduler{
		registry: reg,
		driver:   driver,
		activity: monitor,
		cfg:      cfg,
		logger:   log,
		httpClient: &http.Client{
			Timeout: cfg.ReadinessPerAttemptTimeout(),
		},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

type ensureResult struct {
	agent       *domain.Agent
	coldStartMS *int64
}

// EnsureRunning guarantees a serverless agent's container is running before
// returning. Permanent agents pass through untouched. Concurrent callers for
// the same id are coalesced onto a single spawn attempt.
func (s *Scheduler) EnsureRunning(ctx context.Context, id string) (*domain.Agent, *int64, error) {
	agent, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if agent.Mode != domain.ModeServerless {
		return agent, nil, nil
	}

	status, err := s.driver.Status(ctx, id)
	if err == nil && status == domain.AgentStatusRunning {
		return agent, nil, nil
	}

	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		// Re-check inside the group so a caller arriving after a spawn has
		// finished sees the running container instead of spawning again.
		if status, err := s.driver.Status(ctx, id); err == nil && status == domain.AgentStatusRunning {
			return ensureResult{agent: agent}, nil
		}
		return s.spawnAndWait(ctx, agent)
	})
	if err != nil {
		return nil, nil, err
	}
	result := v.(ensureResult)
	return result.agent, result.coldStartMS, nil
}

func (s *Scheduler) spawnAndWait(ctx context.Context, agent *domain.Agent) (ensureResult, error) {
	start := time.Now()

	req := domain.SpawnRequestFromAgent(agent)
	spawned, err := s.driver.Spawn(ctx, req)
	if err != nil {
		return ensureResult{}, err
	}

	s.waitForReady(ctx, spawned.URL)

	elapsed := time.Since(start).Milliseconds()
	return ensureResult{agent: spawned, coldStartMS: &elapsed}, nil
}

// waitForReady polls url until it answers with a status below 500 or the
// readiness deadline elapses. Non-readiness is logged, never returned as an
// error: the caller may still try the proxy, which will surface a real error.
func (s *Scheduler) waitForReady(ctx context.Context, url string) {
	if url == "" {
		return
	}
	deadline := time.Now().Add(s.cfg.ReadinessTimeout())
	interval := s.cfg.ReadinessPollInterval()

	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadinessPerAttemptTimeout())
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
		if err == nil {
			resp, err := s.httpClient.Do(req)
			if err == nil {
				resp.Body.Close()
				cancel()
				if resp.StatusCode < 500 {
					return
				}
			}
		}
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
	s.logger.Warn("agent did not become ready within deadline", zap.String("url", url))
}

// RecordActivity marks id as recently active.
func (s *Scheduler) RecordActivity(id string) {
	s.activity.Record(id)
}

// Start launches the reaper background loop.
func (s *Scheduler) Start() {
	go s.reaperLoop()
}

// Stop cancels the reaper loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}

func (s *Scheduler) reaperLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.ReaperInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.reapOnce()
		}
	}
}

func (s *Scheduler) reapOnce() {
	ctx := context.Background()
	for _, id := range s.activity.GetIdle(s.cfg.IdleTimeout()) {
		agent, err := s.registry.Get(ctx, id)
		if err != nil {
			s.activity.Remove(id)
			continue
		}
		if agent.Mode != domain.ModeServerless {
			s.activity.Remove(id)
			continue
		}

		if err := s.driver.Stop(ctx, id); err != nil {
			s.logger.Error("reaper failed to stop agent, will retry next cycle",
				zap.String("agent_id", id), zap.Error(err))
			continue
		}
		s.activity.Remove(id)
	}
}

