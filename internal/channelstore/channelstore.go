// Package channelstore defines the persistence contract for channels, the
// named groupings of agents that the channel orchestrator (C6) routes
// messages through.
package channelstore

import (
	"context"

	"github.com/lunarr-ai/a4s/internal/domain"
)

// ChannelStore is the capability set the channel orchestrator and the HTTP
// layer require for channel CRUD and membership changes.
type ChannelStore interface {
	Get(ctx context.Context, channelID string) (*domain.Channel, error)
	List(ctx context.Context, offset, limit int) ([]*domain.Channel, error)
	Create(ctx context.Context, channel *domain.Channel) error
	Update(ctx context.Context, channelID, name, description string) (*domain.Channel, error)
	AddAgents(ctx context.Context, channelID string, agentIDs []string) (*domain.Channel, error)
	RemoveAgents(ctx context.Context, channelID string, agentIDs []string) (*domain.Channel, error)
	Delete(ctx context.Context, channelID string) error
	Close() error
}
