package docker

import (
	"context"
	"fmt"
	"os"
	"time"

	apperrors "github.com/lunarr-ai/a4s/internal/common/errors"
	"github.com/lunarr-ai/a4s/internal/domain"
	"github.com/lunarr-ai/a4s/internal/runtime"
)

const (
	labelManaged     = "a4s.managed"
	labelAgentID     = "a4s.agent_id"
	labelName        = "a4s.name"
	labelDescription = "a4s.description"
	labelVersion     = "a4s.version"

	stopTimeoutSeconds = 10
)

// passthroughEnvKeys are copied from the control plane's own environment into
// every spawned agent container, so agents can reach the providers and
// integrations the operator has configured without the caller having to
// thread credentials through the spawn request.
var passthroughEnvKeys = []string{
	"GOOGLE_API_KEY",
	"OPENAI_API_KEY",
	"OPENROUTER_API_KEY",
	"GITHUB_TOKEN",
	"LINEAR_API_KEY",
}

// Driver is the runtime.Driver implementation backed by the Docker SDK.
type Driver struct {
	client     *Client
	network    string
	apiBaseURL string
	gatewayURL string
	port       int
}

// NewDriver wraps an existing Docker client as a runtime.Driver, bound to
// the given bridge network and the URLs advertised to spawned containers.
func NewDriver(client *Client, network, apiBaseURL, gatewayURL string, containerPort int) *Driver {
	return &Driver{
		client:     client,
		network:    network,
		apiBaseURL: apiBaseURL,
		gatewayURL: gatewayURL,
		port:       containerPort,
	}
}

// EnsureNetwork creates the driver's bridge network if it does not exist yet.
func (d *Driver) EnsureNetwork(ctx context.Context) error {
	return d.client.EnsureNetwork(ctx, d.network)
}

// Spawn pulls req.Image if needed, creates a container labeled for this
// agent, starts it, and returns the agent's updated runtime state.
func (d *Driver) Spawn(ctx context.Context, req *domain.SpawnRequest) (*domain.Agent, error) {
	if err := d.client.PullImage(ctx, req.Image); err != nil {
		return nil, apperrors.ImageNotFound(req.Image, err)
	}

	name := domain.ContainerName(req.AgentID)
	env := buildEnv(req, d.apiBaseURL, d.gatewayURL, d.port)
	labels := map[string]string{
		labelManaged:     "true",
		labelAgentID:     req.AgentID,
		labelName:        req.Name,
		labelDescription: req.Description,
		labelVersion:     req.Version,
	}

	containerID, err := d.client.CreateContainer(ctx, ContainerConfig{
		Name:        name,
		Image:       req.Image,
		Env:         env,
		NetworkMode: d.network,
		Labels:      labels,
	})
	if err != nil {
		return nil, apperrors.SpawnError(fmt.Sprintf("create container for agent %s", req.AgentID), err)
	}

	if err := d.client.StartContainer(ctx, containerID); err != nil {
		return nil, apperrors.SpawnError(fmt.Sprintf("start container for agent %s", req.AgentID), err)
	}

	info, err := d.client.GetContainerInfo(ctx, containerID)
	if err != nil {
		return nil, apperrors.SpawnError(fmt.Sprintf("inspect container for agent %s", req.AgentID), err)
	}

	agent := &domain.Agent{
		ID:          req.AgentID,
		Name:        req.Name,
		Description: req.Description,
		Version:     req.Version,
		URL:         fmt.Sprintf("http://%s:%d", name, d.port),
		Port:        d.port,
		Status:      statusFromState(info.State),
	}
	return agent, nil
}

// Stop stops and removes the container backing agentID. A missing container
// is treated as already stopped, not an error.
func (d *Driver) Stop(ctx context.Context, agentID string) error {
	name := domain.ContainerName(agentID)

	info, err := d.client.GetContainerInfo(ctx, name)
	if err != nil {
		return nil
	}

	if err := d.client.StopContainer(ctx, info.ID, stopTimeoutSeconds*time.Second); err != nil {
		return apperrors.InternalError(fmt.Sprintf("stop container for agent %s", agentID), err)
	}
	if err := d.client.RemoveContainer(ctx, info.ID, true); err != nil {
		return apperrors.InternalError(fmt.Sprintf("remove container for agent %s", agentID), err)
	}
	return nil
}

// List returns every container labeled as managed by this driver.
func (d *Driver) List(ctx context.Context) ([]runtime.ManagedContainer, error) {
	containers, err := d.client.ListContainers(ctx, map[string]string{labelManaged: "true"})
	if err != nil {
		return nil, apperrors.InternalError("list managed containers", err)
	}

	managed := make([]runtime.ManagedContainer, 0, len(containers))
	for _, c := range containers {
		agentID := c.Labels[labelAgentID]
		if agentID == "" {
			continue
		}
		info, err := d.client.GetContainerInfo(ctx, c.ID)
		ip := ""
		if err == nil {
			ip = info.IP
		}
		managed = append(managed, runtime.ManagedContainer{
			AgentID: agentID,
			Name:    c.Name,
			Status:  statusFromState(c.State),
			IP:      ip,
		})
	}
	return managed, nil
}

// Status reports the lifecycle status of the container backing agentID.
func (d *Driver) Status(ctx context.Context, agentID string) (domain.AgentStatus, error) {
	info, err := d.client.GetContainerInfo(ctx, domain.ContainerName(agentID))
	if err != nil {
		return "", apperrors.AgentNotFound(agentID)
	}
	return statusFromState(info.State), nil
}

// statusFromState maps a Docker container state to a domain.AgentStatus.
func statusFromState(state string) domain.AgentStatus {
	switch state {
	case "created", "restarting":
		return domain.AgentStatusPending
	case "running", "paused":
		return domain.AgentStatusRunning
	case "removing", "exited":
		return domain.AgentStatusStopped
	case "dead":
		return domain.AgentStatusError
	default:
		return domain.AgentStatusError
	}
}

func buildEnv(req *domain.SpawnRequest, apiBaseURL, gatewayURL string, port int) []string {
	env := []string{
		"AGENT_NAME=" + req.Name,
		"AGENT_ID=" + req.AgentID,
		"AGENT_HOST=" + domain.ContainerName(req.AgentID),
		"AGENT_MODEL_PROVIDER=" + req.Model.Provider,
		"AGENT_MODEL_ID=" + req.Model.ModelID,
		"AGENT_INSTRUCTION=" + req.Instruction,
		"AGENT_TOOLS=" + joinComma(req.Tools),
		"AGENT_MCP_TOOL_FILTER=" + req.MCPToolFilter,
		"A4S_API_URL=" + apiBaseURL,
		"A4S_AGENT_URL=" + fmt.Sprintf("%s/agents/%s/", gatewayURL, req.AgentID),
	}
	for _, key := range passthroughEnvKeys {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	return env
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}
