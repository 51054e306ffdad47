package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lunarr-ai/a4s/internal/common/config"
	"github.com/lunarr-ai/a4s/internal/common/logger"
	"github.com/lunarr-ai/a4s/internal/domain"
)

type fakeRegistry struct {
	mu     sync.Mutex
	agents map[string]*domain.Agent
}

func (r *fakeRegistry) Get(_ context.Context, id string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent not registered: %s", id)
	}
	return a, nil
}
func (r *fakeRegistry) List(context.Context, int, int) ([]*domain.Agent, error)      { return nil, nil }
func (r *fakeRegistry) Search(context.Context, string, int) ([]*domain.Agent, error) { return nil, nil }
func (r *fakeRegistry) Register(context.Context, *domain.Agent) error                { return nil }
func (r *fakeRegistry) Unregister(context.Context, string) error                     { return nil }
func (r *fakeRegistry) Close() error                                                 { return nil }

type fakeScheduler struct {
	ensureCalls  int
	recordCalls  int
	returnsAgent *domain.Agent
}

func (s *fakeScheduler) EnsureRunning(_ context.Context, _ string) (*domain.Agent, *int64, error) {
	s.ensureCalls++
	return s.returnsAgent, nil, nil
}
func (s *fakeScheduler) RecordActivity(string) { s.recordCalls++ }

func testProxyConfig() config.ProxyConfig {
	return config.ProxyConfig{TotalTimeoutSeconds: 5, ConnectTimeoutSeconds: 2}
}

func TestServeAgentProxySetsCORSOnEveryResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	reg := &fakeRegistry{agents: map[string]*domain.Agent{
		"p1": {ID: "p1", Mode: domain.ModePermanent, URL: upstream.URL},
	}}
	p := New(reg, &fakeScheduler{}, testProxyConfig(), logger.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents/p1/proxy/health", nil)
	p.ServeAgentProxy(rec, req, "p1", "/health")

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header on proxied response")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServeAgentProxyOptionsShortCircuits(t *testing.T) {
	p := New(&fakeRegistry{agents: map[string]*domain.Agent{}}, &fakeScheduler{}, testProxyConfig(), logger.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/agents/p1/proxy/health", nil)
	p.ServeAgentProxy(rec, req, "p1", "/health")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for OPTIONS, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header on OPTIONS response")
	}
}

func TestServeAgentProxyGatesServerlessAgentOnEnsureRunning(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	running := &domain.Agent{ID: "p1", Mode: domain.ModeServerless, URL: upstream.URL}
	reg := &fakeRegistry{agents: map[string]*domain.Agent{
		"p1": {ID: "p1", Mode: domain.ModeServerless, URL: upstream.URL},
	}}
	sched := &fakeScheduler{returnsAgent: running}
	p := New(reg, sched, testProxyConfig(), logger.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents/p1/proxy/health", nil)
	p.ServeAgentProxy(rec, req, "p1", "/health")

	if sched.ensureCalls != 1 {
		t.Fatalf("expected EnsureRunning to be called once, got %d", sched.ensureCalls)
	}
	if sched.recordCalls != 1 {
		t.Fatalf("expected RecordActivity to be called once, got %d", sched.recordCalls)
	}
}

func TestServeAgentProxyUpstreamUnreachableReturns502(t *testing.T) {
	reg := &fakeRegistry{agents: map[string]*domain.Agent{
		"p1": {ID: "p1", Mode: domain.ModePermanent, URL: "http://127.0.0.1:1"},
	}}
	p := New(reg, &fakeScheduler{}, testProxyConfig(), logger.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents/p1/proxy/health", nil)
	p.ServeAgentProxy(rec, req, "p1", "/health")

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestServeAgentProxyUnknownAgentPlainErrorReturns500(t *testing.T) {
	p := New(&fakeRegistry{agents: map[string]*domain.Agent{}}, &fakeScheduler{}, testProxyConfig(), logger.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents/missing/proxy/health", nil)
	p.ServeAgentProxy(rec, req, "missing", "/health")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected a mapped status for a plain error, got %d", rec.Code)
	}
}
