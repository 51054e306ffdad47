// Package runtime defines the contract the scheduler uses to manage a
// managed agent's backing container, independent of the concrete
// container engine (C1 in the design).
package runtime

import (
	"context"

	"github.com/lunarr-ai/a4s/internal/domain"
)

// Driver spawns, stops, lists, and reports status for managed agent containers.
type Driver interface {
	// Spawn pulls the image if needed and starts a new container for the
	// given request, returning the updated agent with its assigned port
	// and running status.
	Spawn(ctx context.Context, req *domain.SpawnRequest) (*domain.Agent, error)
	// Stop stops and removes the container backing agentID.
	Stop(ctx context.Context, agentID string) error
	// List returns every container this driver currently manages.
	List(ctx context.Context) ([]ManagedContainer, error)
	// Status reports the lifecycle status of the container backing agentID.
	// Returns errors.AgentNotFound if no such container exists.
	Status(ctx context.Context, agentID string) (domain.AgentStatus, error)
}

// ManagedContainer is the runtime driver's view of one container it manages.
type ManagedContainer struct {
	AgentID string
	Name    string
	Status  domain.AgentStatus
	IP      string
}
