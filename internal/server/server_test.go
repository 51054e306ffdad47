package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lunarr-ai/a4s/internal/channel"
	"github.com/lunarr-ai/a4s/internal/channelstore"
	"github.com/lunarr-ai/a4s/internal/common/config"
	"github.com/lunarr-ai/a4s/internal/common/logger"
	"github.com/lunarr-ai/a4s/internal/domain"
	"github.com/lunarr-ai/a4s/internal/proxy"
	"github.com/lunarr-ai/a4s/internal/registry"
	"github.com/lunarr-ai/a4s/internal/runtime"
	"github.com/lunarr-ai/a4s/internal/scheduler"
)

type fakeAgentRegistry struct {
	agents map[string]*domain.Agent
}

func (r *fakeAgentRegistry) Get(_ context.Context, id string) (*domain.Agent, error) {
	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent not registered: %s", id)
	}
	return a, nil
}
func (r *fakeAgentRegistry) List(context.Context, int, int) ([]*domain.Agent, error)      { return nil, nil }
func (r *fakeAgentRegistry) Search(context.Context, string, int) ([]*domain.Agent, error) { return nil, nil }
func (r *fakeAgentRegistry) Register(_ context.Context, a *domain.Agent) error {
	if r.agents == nil {
		r.agents = make(map[string]*domain.Agent)
	}
	r.agents[a.ID] = a
	return nil
}
func (r *fakeAgentRegistry) Unregister(context.Context, string) error { return nil }
func (r *fakeAgentRegistry) Close() error                             { return nil }

type fakeChannelStore struct{}

func (fakeChannelStore) Get(context.Context, string) (*domain.Channel, error)      { return nil, nil }
func (fakeChannelStore) List(context.Context, int, int) ([]*domain.Channel, error) { return nil, nil }
func (fakeChannelStore) Create(context.Context, *domain.Channel) error             { return nil }
func (fakeChannelStore) Update(context.Context, string, string, string) (*domain.Channel, error) {
	return nil, nil
}
func (fakeChannelStore) AddAgents(context.Context, string, []string) (*domain.Channel, error) {
	return nil, nil
}
func (fakeChannelStore) RemoveAgents(context.Context, string, []string) (*domain.Channel, error) {
	return nil, nil
}
func (fakeChannelStore) Delete(context.Context, string) error { return nil }
func (fakeChannelStore) Close() error                         { return nil }

type fakeDriver struct{}

func (fakeDriver) Spawn(context.Context, *domain.SpawnRequest) (*domain.Agent, error) { return nil, nil }
func (fakeDriver) Stop(context.Context, string) error                                 { return nil }
func (fakeDriver) List(context.Context) ([]runtime.ManagedContainer, error)            { return nil, nil }
func (fakeDriver) Status(context.Context, string) (domain.AgentStatus, error) {
	return domain.AgentStatusRunning, nil
}

func newTestServer(agents registry.AgentRegistry, backboneCfg config.BackboneConfig) *Server {
	var chans channelstore.ChannelStore = fakeChannelStore{}
	var driver runtime.Driver = fakeDriver{}
	sched := scheduler.New(agents, driver, nil, config.SchedulerConfig{IdleTimeoutSeconds: 1, ReaperIntervalSeconds: 1}, logger.Default())
	prox := proxy.New(agents, sched, config.ProxyConfig{TotalTimeoutSeconds: 1, ConnectTimeoutSeconds: 1}, logger.Default())
	orch := channel.New(chans, agents, sched, config.ProxyConfig{A2ATimeoutSeconds: 1}, backboneCfg.AgentID, logger.Default())
	return New(agents, chans, driver, sched, prox, orch, backboneCfg, 8000, "info", logger.Default())
}

func TestRouteTableIsRegistered(t *testing.T) {
	srv := newTestServer(&fakeAgentRegistry{}, config.BackboneConfig{})
	routes := srv.router.Routes()

	want := map[string]bool{
		"POST /api/v1/agents":                 false,
		"GET /api/v1/agents":                  false,
		"GET /api/v1/agents/search":           false,
		"GET /api/v1/agents/:id":              false,
		"DELETE /api/v1/agents/:id":           false,
		"POST /api/v1/agents/:id/start":       false,
		"POST /api/v1/agents/:id/stop":        false,
		"GET /api/v1/agents/:id/status":       false,
		"POST /api/v1/channels":               false,
		"GET /api/v1/channels":                false,
		"GET /api/v1/channels/:id":            false,
		"PUT /api/v1/channels/:id":            false,
		"DELETE /api/v1/channels/:id":         false,
		"GET /api/v1/channels/:id/agents/search": false,
		"POST /api/v1/channels/:id/chat":      false,
	}
	for _, r := range routes {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("expected route %q to be registered", k)
		}
	}
}

func TestEnsureBackboneAgentNoopWhenUnconfigured(t *testing.T) {
	agents := &fakeAgentRegistry{}
	srv := newTestServer(agents, config.BackboneConfig{AgentID: ""})

	if err := srv.EnsureBackboneAgent(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agents.agents) != 0 {
		t.Fatalf("expected no agent registered, got %d", len(agents.agents))
	}
}

func TestEnsureBackboneAgentRegistersOnce(t *testing.T) {
	agents := &fakeAgentRegistry{}
	cfg := config.BackboneConfig{AgentID: "backbone", Image: "a4s/backbone:latest"}
	srv := newTestServer(agents, cfg)

	if err := srv.EnsureBackboneAgent(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := agents.agents["backbone"]; !ok {
		t.Fatalf("expected backbone agent to be registered")
	}
	if agents.agents["backbone"].Mode != domain.ModePermanent {
		t.Fatalf("expected backbone agent to be permanent")
	}
	if agents.agents["backbone"].URL != "http://a4s-agent-backbone:8000" {
		t.Fatalf("expected backbone URL to be the deterministic container DNS form, got %q", agents.agents["backbone"].URL)
	}

	// A second call must be a no-op (agent already present).
	agents.agents["backbone"].Description = "manually edited"
	if err := srv.EnsureBackboneAgent(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agents.agents["backbone"].Description != "manually edited" {
		t.Fatalf("expected second EnsureBackboneAgent call to be a no-op")
	}
}

func TestWriteAppErrorMapsStatus(t *testing.T) {
	srv := newTestServer(&fakeAgentRegistry{}, config.BackboneConfig{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents/missing", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected mapped status for unregistered agent lookup, got %d", rec.Code)
	}
}
