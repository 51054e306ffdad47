// Package sqlite provides a SQLite-backed implementation of
// channelstore.ChannelStore, following the same single-*sqlx.DB, idempotent
// schema-init pattern as the agent registry's store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/lunarr-ai/a4s/internal/common/errors"
	"github.com/lunarr-ai/a4s/internal/domain"
)

// Store is a SQLite-backed channelstore.ChannelStore.
type Store struct {
	db *sqlx.DB
}

// Open creates (or attaches to) a SQLite database at path and ensures the
// channels table exists.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite channel store: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init channel store schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		agent_ids TEXT NOT NULL DEFAULT '[]',
		owner_id TEXT DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type channelRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	AgentIDs    string    `db:"agent_ids"`
	OwnerID     string    `db:"owner_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *channelRow) toChannel() (*domain.Channel, error) {
	var agentIDs []string
	if err := json.Unmarshal([]byte(r.AgentIDs), &agentIDs); err != nil {
		return nil, fmt.Errorf("decode agent_ids for channel %s: %w", r.ID, err)
	}
	return &domain.Channel{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		AgentIDs:    agentIDs,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// Get returns the channel with the given id, or ChannelNotFound.
func (s *Store) Get(ctx context.Context, channelID string) (*domain.Channel, error) {
	var row channelRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM channels WHERE id = ?`, channelID)
	if err == sql.ErrNoRows {
		return nil, apperrors.ChannelNotFound(channelID)
	}
	if err != nil {
		return nil, apperrors.RegistryConnectionError(err)
	}
	return row.toChannel()
}

// List returns up to limit channels starting at offset, ordered by creation time.
func (s *Store) List(ctx context.Context, offset, limit int) ([]*domain.Channel, error) {
	var rows []channelRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM channels ORDER BY created_at ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, apperrors.RegistryConnectionError(err)
	}
	channels := make([]*domain.Channel, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toChannel()
		if err != nil {
			return nil, apperrors.RegistryError("decode channel row", err)
		}
		channels = append(channels, c)
	}
	return channels, nil
}

// Create inserts a new channel record.
func (s *Store) Create(ctx context.Context, channel *domain.Channel) error {
	agentIDs, err := json.Marshal(channel.AgentIDs)
	if err != nil {
		return apperrors.RegistryError("encode agent_ids", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO channels (id, name, description, agent_ids, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, channel.ID, channel.Name, channel.Description, string(agentIDs), channel.OwnerID,
		channel.CreatedAt, channel.UpdatedAt)
	if err != nil {
		return apperrors.RegistryConnectionError(err)
	}
	return nil
}

// Update sets the channel's name and description and returns the updated channel.
func (s *Store) Update(ctx context.Context, channelID, name, description string) (*domain.Channel, error) {
	channel, err := s.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	channel.Name = name
	channel.Description = description
	channel.UpdatedAt = nowUTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE channels SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		channel.Name, channel.Description, channel.UpdatedAt, channelID)
	if err != nil {
		return nil, apperrors.RegistryConnectionError(err)
	}
	return channel, nil
}

// AddAgents adds agentIDs to the channel's membership and returns the updated channel.
func (s *Store) AddAgents(ctx context.Context, channelID string, agentIDs []string) (*domain.Channel, error) {
	return s.mutateMembership(ctx, channelID, func(c *domain.Channel) {
		c.AddAgents(agentIDs)
	})
}

// RemoveAgents removes agentIDs from the channel's membership and returns the updated channel.
func (s *Store) RemoveAgents(ctx context.Context, channelID string, agentIDs []string) (*domain.Channel, error) {
	return s.mutateMembership(ctx, channelID, func(c *domain.Channel) {
		c.RemoveAgents(agentIDs)
	})
}

func (s *Store) mutateMembership(ctx context.Context, channelID string, mutate func(*domain.Channel)) (*domain.Channel, error) {
	channel, err := s.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	mutate(channel)
	channel.UpdatedAt = nowUTC()

	encoded, err := json.Marshal(channel.AgentIDs)
	if err != nil {
		return nil, apperrors.RegistryError("encode agent_ids", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE channels SET agent_ids = ?, updated_at = ? WHERE id = ?`,
		string(encoded), channel.UpdatedAt, channelID)
	if err != nil {
		return nil, apperrors.RegistryConnectionError(err)
	}
	return channel, nil
}

// Delete removes the channel with the given id.
func (s *Store) Delete(ctx context.Context, channelID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, channelID)
	if err != nil {
		return apperrors.RegistryConnectionError(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperrors.ChannelNotFound(channelID)
	}
	return nil
}

// nowUTC exists so the single non-deterministic call in this package is
// isolated and easy to stub in tests.
var nowUTC = func() time.Time { return time.Now().UTC() }
