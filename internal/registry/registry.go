// Package registry defines the read-mostly contract the control plane
// consumes for agent identity and discovery (C4 in the design).
package registry

import (
	"context"

	"github.com/lunarr-ai/a4s/internal/domain"
)

// AgentRegistry is the capability set the core requires of an agent store:
// get, list, search, and (on startup only) register/unregister. Concrete
// implementations may be backed by any store capable of a similarity
// ranking for Search; the core depends only on this interface.
type AgentRegistry interface {
	Get(ctx context.Context, agentID string) (*domain.Agent, error)
	List(ctx context.Context, offset, limit int) ([]*domain.Agent, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.Agent, error)
	Register(ctx context.Context, agent *domain.Agent) error
	Unregister(ctx context.Context, agentID string) error
	Close() error
}
