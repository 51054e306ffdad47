// Package channel implements the channel orchestrator (C6): two-phase
// backbone routing with semantic-search fallback, and concurrent fan-out
// to a caller-selected set of agents.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lunarr-ai/a4s/internal/channelstore"
	"github.com/lunarr-ai/a4s/internal/common/config"
	"github.com/lunarr-ai/a4s/internal/common/logger"
	"github.com/lunarr-ai/a4s/internal/domain"
	"github.com/lunarr-ai/a4s/internal/registry"
)

// ensureRunner is the subset of the scheduler the orchestrator depends on.
type ensureRunner interface {
	EnsureRunning(ctx context.Context, id string) (*domain.Agent, *int64, error)
	RecordActivity(id string)
}

// ChatResponse is the union response type returned by a channel chat request.
type ChatResponse struct {
	Type       string            `json:"type"` // "candidates" | "direct" | "results"
	Candidates []Candidate       `json:"candidates,omitempty"`
	Text       string            `json:"text,omitempty"`
	Results    []AgentChatResult `json:"results,omitempty"`
}

// Candidate is a backbone- or fallback-selected peer.
type Candidate struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// AgentChatResult is one peer's outcome in a Phase-2 fan-out.
type AgentChatResult struct {
	AgentID  string `json:"agent_id"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

const fallbackSearchLimit = 50
const fallbackCandidateLimit = 5

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Orchestrator implements the channel chat state machine (§4.6).
type Orchestrator struct {
	channels   channelstore.ChannelStore
	agents     registry.AgentRegistry
	scheduler  ensureRunner
	httpClient *http.Client
	backboneID string
	logger     *logger.Logger
}

// New constructs an Orchestrator bound to the configured backbone agent id.
func New(channels channelstore.ChannelStore, agents registry.AgentRegistry, sched ensureRunner, cfg config.ProxyConfig, backboneID string, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		channels:   channels,
		agents:     agents,
		scheduler:  sched,
		httpClient: &http.Client{Timeout: cfg.A2ATimeout()},
		backboneID: backboneID,
		logger:     log,
	}
}

// Chat runs the two-phase channel chat protocol for the given channel.
// agentIDs == nil selects Phase 1 (routing); non-nil selects Phase 2 (fan-out).
func (o *Orchestrator) Chat(ctx context.Context, channelID, message string, agentIDs []string) (*ChatResponse, error) {
	ch, err := o.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if agentIDs == nil {
		return o.routePhase(ctx, ch, message)
	}
	return o.fanOutPhase(ctx, ch, message, agentIDs)
}

// routePhase implements Phase 1: backbone routing with semantic-search fallback.
func (o *Orchestrator) routePhase(ctx context.Context, ch *domain.Channel, message string) (*ChatResponse, error) {
	peers := o.resolvePeers(ctx, ch)

	if o.backboneID == "" {
		return o.fallback(ctx, ch, message)
	}
	backbone, err := o.agents.Get(ctx, o.backboneID)
	if err != nil {
		return o.fallback(ctx, ch, message)
	}
	running, _, err := o.scheduler.EnsureRunning(ctx, backbone.ID)
	if err != nil {
		return o.fallback(ctx, ch, message)
	}

	prompt := buildRoutingPrompt(ch, peers, message)
	text, err := sendA2A(ctx, o.httpClient, running.URL, prompt, 1)
	if err != nil || text == "" {
		o.logger.Warn("backbone routing produced no usable reply, falling back",
			zap.String("channel_id", ch.ID), zap.Error(err))
		return o.fallback(ctx, ch, message)
	}

	if candidates, ok := parseCandidates(text, ch); ok {
		return &ChatResponse{Type: "candidates", Candidates: candidates}, nil
	}
	return &ChatResponse{Type: "direct", Text: text}, nil
}

// resolvePeers enumerates the channel's agents (excluding the backbone),
// silently skipping any id the registry no longer recognizes.
func (o *Orchestrator) resolvePeers(ctx context.Context, ch *domain.Channel) []*domain.Agent {
	peers := make([]*domain.Agent, 0, len(ch.AgentIDs))
	for _, id := range ch.AgentIDs {
		if id == o.backboneID {
			continue
		}
		agent, err := o.agents.Get(ctx, id)
		if err != nil {
			continue
		}
		peers = append(peers, agent)
	}
	return peers
}

func buildRoutingPrompt(ch *domain.Channel, peers []*domain.Agent, message string) string {
	type peerSummary struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	summaries := make([]peerSummary, 0, len(peers))
	for _, p := range peers {
		summaries = append(summaries, peerSummary{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	peerJSON, _ := json.Marshal(summaries)

	var b strings.Builder
	fmt.Fprintf(&b, "channel: %s (%s)\n", ch.Name, ch.ID)
	fmt.Fprintf(&b, "agents: %s\n", string(peerJSON))
	fmt.Fprintf(&b, "message: %s", message)
	return b.String()
}

// parseCandidates attempts to read {"candidates":[{id,name,reason}]} from
// raw text, or from the first fenced code block within it, then filters to
// ids that are actually members of the channel.
func parseCandidates(text string, ch *domain.Channel) ([]Candidate, bool) {
	var doc struct {
		Candidates []Candidate `json:"candidates"`
	}

	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &doc); err != nil {
		match := fencedJSONPattern.FindStringSubmatch(text)
		if match == nil {
			return nil, false
		}
		if err := json.Unmarshal([]byte(match[1]), &doc); err != nil {
			return nil, false
		}
	}
	if doc.Candidates == nil {
		return nil, false
	}

	valid := make([]Candidate, 0, len(doc.Candidates))
	for _, c := range doc.Candidates {
		if ch.HasAgent(c.ID) {
			valid = append(valid, c)
		}
	}
	return valid, true
}

// fallback performs a semantic search for message and returns the top
// in-channel matches (excluding the backbone) as candidates.
func (o *Orchestrator) fallback(ctx context.Context, ch *domain.Channel, message string) (*ChatResponse, error) {
	hits, err := o.agents.Search(ctx, message, fallbackSearchLimit)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, fallbackCandidateLimit)
	for _, hit := range hits {
		if len(candidates) >= fallbackCandidateLimit {
			break
		}
		if hit.ID == o.backboneID || !ch.HasAgent(hit.ID) {
			continue
		}
		candidates = append(candidates, Candidate{ID: hit.ID, Name: hit.Name, Reason: hit.Description})
	}
	return &ChatResponse{Type: "candidates", Candidates: candidates}, nil
}

// fanOutPhase implements Phase 2: validate membership, then fan out
// concurrently, collecting per-peer results in input order.
func (o *Orchestrator) fanOutPhase(ctx context.Context, ch *domain.Channel, message string, agentIDs []string) (*ChatResponse, error) {
	for _, id := range agentIDs {
		if !ch.HasAgent(id) {
			results := make([]AgentChatResult, len(agentIDs))
			for i, reqID := range agentIDs {
				results[i] = AgentChatResult{AgentID: reqID, Error: "Agent not in channel"}
			}
			return &ChatResponse{Type: "results", Results: results}, nil
		}
	}

	results := make([]AgentChatResult, len(agentIDs))
	var wg sync.WaitGroup
	for i, id := range agentIDs {
		wg.Add(1)
		go func(idx int, agentID string) {
			defer wg.Done()
			results[idx] = o.chatWithOne(ctx, agentID, message)
		}(i, id)
	}
	wg.Wait()

	return &ChatResponse{Type: "results", Results: results}, nil
}

func (o *Orchestrator) chatWithOne(ctx context.Context, agentID, message string) AgentChatResult {
	agent, err := o.agents.Get(ctx, agentID)
	if err != nil {
		return AgentChatResult{AgentID: agentID, Error: "Agent not in channel"}
	}

	if agent.Mode == domain.ModeServerless {
		running, _, err := o.scheduler.EnsureRunning(ctx, agentID)
		if err != nil {
			return AgentChatResult{AgentID: agentID, Error: classifyA2AError(err)}
		}
		agent = running
		o.scheduler.RecordActivity(agentID)
	}

	text, err := sendA2A(ctx, o.httpClient, agent.URL, message, 1)
	if err != nil {
		return AgentChatResult{AgentID: agentID, Error: classifyA2AError(err)}
	}
	return AgentChatResult{AgentID: agentID, Response: text}
}

func classifyA2AError(err error) string {
	switch {
	case err == nil:
		return ""
	case isDeadlineExceeded(err):
		return "Request timed out"
	case strings.Contains(err.Error(), "connect") || strings.Contains(err.Error(), "connection refused"):
		return "Failed to connect to agent"
	case strings.HasPrefix(err.Error(), "HTTP "):
		return err.Error()
	case err.Error() == "no response from agent":
		return "No response from agent"
	default:
		return err.Error()
	}
}

func isDeadlineExceeded(err error) bool {
	return strings.Contains(err.Error(), "context deadline exceeded") || strings.Contains(err.Error(), "Client.Timeout")
}
