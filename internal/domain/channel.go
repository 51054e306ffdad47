package domain

import "time"

// Channel is a named group of agent ids owned by one principal.
type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AgentIDs    []string  `json:"agent_ids"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasAgent reports whether id is a member of the channel.
func (c *Channel) HasAgent(id string) bool {
	for _, a := range c.AgentIDs {
		if a == id {
			return true
		}
	}
	return false
}

// AddAgents appends any ids not already present, preserving order and set
// semantics (no duplicates).
func (c *Channel) AddAgents(ids []string) {
	for _, id := range ids {
		if !c.HasAgent(id) {
			c.AgentIDs = append(c.AgentIDs, id)
		}
	}
}

// RemoveAgents removes every occurrence of the given ids.
func (c *Channel) RemoveAgents(ids []string) {
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	kept := make([]string, 0, len(c.AgentIDs))
	for _, id := range c.AgentIDs {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	c.AgentIDs = kept
}
