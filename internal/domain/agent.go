// Package domain holds the core entities shared across the control plane:
// agents, channels, and the values that describe how an agent is spawned.
package domain

import "time"

// AgentStatus is the lifecycle status of an agent's container.
type AgentStatus string

const (
	AgentStatusPending AgentStatus = "pending"
	AgentStatusRunning AgentStatus = "running"
	AgentStatusStopped AgentStatus = "stopped"
	AgentStatusError   AgentStatus = "error"
)

// AgentMode determines whether the scheduler may stop an agent's container.
type AgentMode string

const (
	// ModeServerless agents may be started and stopped by the scheduler at will.
	ModeServerless AgentMode = "serverless"
	// ModePermanent agents are kept running for the lifetime of the process.
	ModePermanent AgentMode = "permanent"
)

// ModelRef identifies the model backing an agent.
type ModelRef struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
}

// SpawnConfig is the configuration required to start a managed agent's container.
type SpawnConfig struct {
	Image         string   `json:"image"`
	Model         ModelRef `json:"model"`
	Instruction   string   `json:"instruction"`
	Tools         []string `json:"tools"`
	MCPToolFilter string   `json:"mcp_tool_filter"`
}

// Agent is the identity of a registered AI agent.
type Agent struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Version     string       `json:"version"`
	URL         string       `json:"url"`
	Port        int          `json:"port"`
	OwnerID     string       `json:"owner_id"`
	Status      AgentStatus  `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	Mode        AgentMode    `json:"mode"`
	SpawnConfig *SpawnConfig `json:"spawn_config,omitempty"`
}

// IsManaged reports whether the control plane is responsible for this
// agent's container lifecycle (it has a spawn configuration to derive one from).
func (a *Agent) IsManaged() bool {
	return a.SpawnConfig != nil
}

// ContainerName returns the deterministic container name for a managed agent.
func ContainerName(agentID string) string {
	return "a4s-agent-" + agentID
}

// SpawnRequest carries everything the runtime driver needs to start a container.
type SpawnRequest struct {
	AgentID       string
	Name          string
	Description   string
	Version       string
	Image         string
	Model         ModelRef
	Instruction   string
	Tools         []string
	MCPToolFilter string
}

// SpawnRequestFromAgent derives a SpawnRequest from a managed agent's stored
// spawn configuration, the shape the scheduler and the /start endpoint both use.
func SpawnRequestFromAgent(agent *Agent) *SpawnRequest {
	if agent.SpawnConfig == nil {
		return nil
	}
	return &SpawnRequest{
		AgentID:       agent.ID,
		Name:          agent.Name,
		Description:   agent.Description,
		Version:       agent.Version,
		Image:         agent.SpawnConfig.Image,
		Model:         agent.SpawnConfig.Model,
		Instruction:   agent.SpawnConfig.Instruction,
		Tools:         agent.SpawnConfig.Tools,
		MCPToolFilter: agent.SpawnConfig.MCPToolFilter,
	}
}
