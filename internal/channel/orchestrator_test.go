package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lunarr-ai/a4s/internal/common/config"
	"github.com/lunarr-ai/a4s/internal/common/logger"
	"github.com/lunarr-ai/a4s/internal/domain"
)

type fakeChannelStore struct {
	channels map[string]*domain.Channel
}

func (s *fakeChannelStore) Get(_ context.Context, id string) (*domain.Channel, error) {
	ch, ok := s.channels[id]
	if !ok {
		return nil, fmt.Errorf("channel not found: %s", id)
	}
	return ch, nil
}
func (s *fakeChannelStore) List(context.Context, int, int) ([]*domain.Channel, error) { return nil, nil }
func (s *fakeChannelStore) Create(context.Context, *domain.Channel) error             { return nil }
func (s *fakeChannelStore) Update(context.Context, string, string, string) (*domain.Channel, error) {
	return nil, nil
}
func (s *fakeChannelStore) AddAgents(context.Context, string, []string) (*domain.Channel, error) {
	return nil, nil
}
func (s *fakeChannelStore) RemoveAgents(context.Context, string, []string) (*domain.Channel, error) {
	return nil, nil
}
func (s *fakeChannelStore) Delete(context.Context, string) error { return nil }
func (s *fakeChannelStore) Close() error                         { return nil }

type fakeAgentRegistry struct {
	mu     sync.Mutex
	agents map[string]*domain.Agent
}

func (r *fakeAgentRegistry) Get(_ context.Context, id string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent not registered: %s", id)
	}
	return a, nil
}
func (r *fakeAgentRegistry) List(context.Context, int, int) ([]*domain.Agent, error) { return nil, nil }
func (r *fakeAgentRegistry) Search(_ context.Context, _ string, limit int) ([]*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
func (r *fakeAgentRegistry) Register(context.Context, *domain.Agent) error { return nil }
func (r *fakeAgentRegistry) Unregister(context.Context, string) error      { return nil }
func (r *fakeAgentRegistry) Close() error                                  { return nil }

type fakeScheduler struct{}

func (fakeScheduler) EnsureRunning(_ context.Context, id string) (*domain.Agent, *int64, error) {
	return nil, nil, nil
}
func (fakeScheduler) RecordActivity(string) {}

// runningScheduler returns the given agent's own record, simulating an
// already-running agent so the orchestrator can proceed to the A2A call.
type runningScheduler struct {
	registry *fakeAgentRegistry
}

func (s runningScheduler) EnsureRunning(ctx context.Context, id string) (*domain.Agent, *int64, error) {
	return s.registry.Get(ctx, id)
}
func (s runningScheduler) RecordActivity(string) {}

func testProxyConfig() config.ProxyConfig {
	return config.ProxyConfig{A2ATimeoutSeconds: 5}
}

func backboneServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      "1",
			"result": map[string]interface{}{
				"parts": []map[string]string{{"kind": "text", "text": reply}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestChatPhase1BackboneCandidates(t *testing.T) {
	srv := backboneServer(t, `{"candidates":[{"id":"p1","name":"P1","reason":"matches"}]}`)
	defer srv.Close()

	ch := &domain.Channel{ID: "C", Name: "chan", AgentIDs: []string{"p1", "p2", "backbone"}}
	store := &fakeChannelStore{channels: map[string]*domain.Channel{"C": ch}}
	agents := &fakeAgentRegistry{agents: map[string]*domain.Agent{
		"backbone": {ID: "backbone", Mode: domain.ModePermanent, URL: srv.URL},
		"p1":       {ID: "p1", Name: "P1"},
		"p2":       {ID: "p2", Name: "P2"},
	}}

	orch := New(store, agents, runningScheduler{registry: agents}, testProxyConfig(), "backbone", logger.Default())
	resp, err := orch.Chat(context.Background(), "C", "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Type != "candidates" {
		t.Fatalf("expected type=candidates, got %s", resp.Type)
	}
	if len(resp.Candidates) != 1 || resp.Candidates[0].ID != "p1" {
		t.Fatalf("unexpected candidates: %+v", resp.Candidates)
	}
}

func TestChatPhase1FallbackWhenBackboneUnregistered(t *testing.T) {
	ch := &domain.Channel{ID: "C", Name: "chan", AgentIDs: []string{"p1", "p2"}}
	store := &fakeChannelStore{channels: map[string]*domain.Channel{"C": ch}}
	agents := &fakeAgentRegistry{agents: map[string]*domain.Agent{
		"p1": {ID: "p1", Name: "P1", Description: "does p1 things"},
		"p2": {ID: "p2", Name: "P2", Description: "does p2 things"},
	}}

	orch := New(store, agents, fakeScheduler{}, testProxyConfig(), "backbone", logger.Default())
	resp, err := orch.Chat(context.Background(), "C", "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Type != "candidates" {
		t.Fatalf("expected type=candidates, got %s", resp.Type)
	}
	for _, c := range resp.Candidates {
		if c.ID == "backbone" {
			t.Fatalf("backbone must not appear in fallback candidates")
		}
	}
}

func TestChatPhase2InvalidAgentIDMakesNoCalls(t *testing.T) {
	ch := &domain.Channel{ID: "C", AgentIDs: []string{"p1"}}
	store := &fakeChannelStore{channels: map[string]*domain.Channel{"C": ch}}
	agents := &fakeAgentRegistry{agents: map[string]*domain.Agent{"p1": {ID: "p1"}}}

	orch := New(store, agents, fakeScheduler{}, testProxyConfig(), "backbone", logger.Default())
	resp, err := orch.Chat(context.Background(), "C", "hi", []string{"px"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Type != "results" || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Results[0].Error != "Agent not in channel" {
		t.Fatalf("expected 'Agent not in channel', got %q", resp.Results[0].Error)
	}
}

func TestChatPhase2MixedFailuresIsolated(t *testing.T) {
	ok := backboneServer(t, "hello from p1")
	defer ok.Close()

	ch := &domain.Channel{ID: "C", AgentIDs: []string{"p1", "p2"}}
	store := &fakeChannelStore{channels: map[string]*domain.Channel{"C": ch}}
	agents := &fakeAgentRegistry{agents: map[string]*domain.Agent{
		"p1": {ID: "p1", Mode: domain.ModePermanent, URL: ok.URL},
		"p2": {ID: "p2", Mode: domain.ModePermanent, URL: "http://127.0.0.1:1"},
	}}

	orch := New(store, agents, runningScheduler{registry: agents}, testProxyConfig(), "backbone", logger.Default())
	resp, err := orch.Chat(context.Background(), "C", "hi", []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].AgentID != "p1" || resp.Results[0].Response == "" {
		t.Fatalf("expected p1 to succeed, got %+v", resp.Results[0])
	}
	if resp.Results[1].AgentID != "p2" || resp.Results[1].Error == "" {
		t.Fatalf("expected p2 to fail, got %+v", resp.Results[1])
	}
}
