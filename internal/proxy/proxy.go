// Package proxy implements the transparent reverse proxy the control plane
// puts in front of every managed agent (C5): cold-start gating, upstream
// forwarding, and CORS.
package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lunarr-ai/a4s/internal/common/config"
	apperrors "github.com/lunarr-ai/a4s/internal/common/errors"
	"github.com/lunarr-ai/a4s/internal/common/logger"
	"github.com/lunarr-ai/a4s/internal/domain"
	"github.com/lunarr-ai/a4s/internal/registry"
)

// excludedHeaders are never copied between the inbound request/response and
// the upstream agent: they are either connection-specific or recomputed by
// the transport for us.
var excludedHeaders = map[string]bool{
	"host":              true,
	"content-length":    true,
	"transfer-encoding": true,
	"content-encoding":  true,
}

// ensureRunner is the subset of the scheduler the proxy depends on.
type ensureRunner interface {
	EnsureRunning(ctx context.Context, id string) (*domain.Agent, *int64, error)
	RecordActivity(id string)
}

// Proxy forwards requests to a managed agent's container, gating on cold
// start for serverless agents.
type Proxy struct {
	registry  registry.AgentRegistry
	scheduler ensureRunner
	client    *http.Client
	logger    *logger.Logger
}

// New constructs a Proxy with the configured total/connect timeouts.
func New(reg registry.AgentRegistry, sched ensureRunner, cfg config.ProxyConfig, log *logger.Logger) *Proxy {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout()}
	return &Proxy{
		registry:  reg,
		scheduler: sched,
		logger:    log,
		client: &http.Client{
			Timeout: cfg.TotalTimeout(),
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
	}
}

// ServeAgentProxy handles one proxied request for agentID, forwarding to
// path with the original method, headers, body, and query string.
func (p *Proxy) ServeAgentProxy(w http.ResponseWriter, r *http.Request, agentID, path string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	agent, err := p.registry.Get(r.Context(), agentID)
	if err != nil {
		writeError(w, err)
		return
	}

	if agent.Mode == domain.ModeServerless {
		agent, _, err = p.scheduler.EnsureRunning(r.Context(), agentID)
		if err != nil {
			writeError(w, err)
			return
		}
		p.scheduler.RecordActivity(agentID)
	}

	target := strings.TrimRight(agent.URL, "/") + "/" + strings.TrimLeft(path, "/")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	// The upstream call is detached from the inbound request's cancellation;
	// only the proxy http.Client's total timeout bounds it.
	upstreamReq, err := http.NewRequestWithContext(context.WithoutCancel(r.Context()), r.Method, target, r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	copyHeaders(upstreamReq.Header, r.Header)

	resp, err := p.client.Do(upstreamReq)
	if err != nil {
		p.logger.Warn("proxy upstream request failed", zap.String("agent_id", agentID), zap.Error(err))
		if isTimeout(err) {
			http.Error(w, "upstream request timed out", http.StatusGatewayTimeout)
		} else {
			http.Error(w, "failed to reach upstream agent", http.StatusBadGateway)
		}
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if excludedHeaders[strings.ToLower(key)] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
}
