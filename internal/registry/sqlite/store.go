// Package sqlite provides a SQLite-backed implementation of registry.AgentRegistry.
//
// It stands in for the vector-database-backed registry the core treats as an
// external collaborator: Search ranks by a token-overlap score over name and
// description rather than true semantic similarity, but the contract
// (get/list/search/register/unregister) is identical, so the facade the core
// depends on is exercised against a real, persistent store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/lunarr-ai/a4s/internal/common/errors"
	"github.com/lunarr-ai/a4s/internal/domain"
)

// Store is a SQLite-backed registry.AgentRegistry.
type Store struct {
	db *sqlx.DB
}

// Open creates (or attaches to) a SQLite database at path and ensures the
// agents table exists.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite registry: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init registry schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		version TEXT DEFAULT '',
		url TEXT DEFAULT '',
		port INTEGER DEFAULT 0,
		owner_id TEXT DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		mode TEXT NOT NULL DEFAULT 'serverless',
		spawn_config TEXT DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agents_name ON agents(name);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type agentRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Version     string    `db:"version"`
	URL         string    `db:"url"`
	Port        int       `db:"port"`
	OwnerID     string    `db:"owner_id"`
	Status      string    `db:"status"`
	Mode        string    `db:"mode"`
	SpawnConfig string    `db:"spawn_config"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *agentRow) toAgent() (*domain.Agent, error) {
	agent := &domain.Agent{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Version:     r.Version,
		URL:         r.URL,
		Port:        r.Port,
		OwnerID:     r.OwnerID,
		Status:      domain.AgentStatus(r.Status),
		Mode:        domain.AgentMode(r.Mode),
		CreatedAt:   r.CreatedAt,
	}
	if r.SpawnConfig != "" {
		var cfg domain.SpawnConfig
		if err := json.Unmarshal([]byte(r.SpawnConfig), &cfg); err != nil {
			return nil, fmt.Errorf("decode spawn_config for agent %s: %w", r.ID, err)
		}
		agent.SpawnConfig = &cfg
	}
	return agent, nil
}

func agentToRow(agent *domain.Agent) (*agentRow, error) {
	row := &agentRow{
		ID:          agent.ID,
		Name:        agent.Name,
		Description: agent.Description,
		Version:     agent.Version,
		URL:         agent.URL,
		Port:        agent.Port,
		OwnerID:     agent.OwnerID,
		Status:      string(agent.Status),
		Mode:        string(agent.Mode),
		CreatedAt:   agent.CreatedAt,
	}
	if agent.SpawnConfig != nil {
		b, err := json.Marshal(agent.SpawnConfig)
		if err != nil {
			return nil, fmt.Errorf("encode spawn_config for agent %s: %w", agent.ID, err)
		}
		row.SpawnConfig = string(b)
	}
	return row, nil
}

// Get returns the agent with the given id, or AgentNotRegistered.
func (s *Store) Get(ctx context.Context, agentID string) (*domain.Agent, error) {
	var row agentRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM agents WHERE id = ?`, agentID)
	if err == sql.ErrNoRows {
		return nil, apperrors.AgentNotRegistered(agentID)
	}
	if err != nil {
		return nil, apperrors.RegistryConnectionError(err)
	}
	return row.toAgent()
}

// List returns up to limit agents starting at offset, ordered by creation time.
func (s *Store) List(ctx context.Context, offset, limit int) ([]*domain.Agent, error) {
	var rows []agentRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM agents ORDER BY created_at ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, apperrors.RegistryConnectionError(err)
	}
	return rowsToAgents(rows)
}

// Search ranks agents by token overlap between query and each agent's
// name+description, returning the top `limit` matches. This is the
// concrete stand-in for the vector-similarity search the design names as
// an external capability; it never errors on "no matches" (an empty slice
// is a valid result), matching the contractual tolerance for irrelevant hits.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*domain.Agent, error) {
	var rows []agentRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM agents`)
	if err != nil {
		return nil, apperrors.RegistryConnectionError(err)
	}
	agents, err := rowsToAgents(rows)
	if err != nil {
		return nil, err
	}

	queryTokens := tokenize(query)
	type scored struct {
		agent *domain.Agent
		score int
	}
	scoredAgents := make([]scored, 0, len(agents))
	for _, a := range agents {
		doc := tokenize(a.Name + " " + a.Description)
		scoredAgents = append(scoredAgents, scored{agent: a, score: overlap(queryTokens, doc)})
	}
	sort.SliceStable(scoredAgents, func(i, j int) bool {
		return scoredAgents[i].score > scoredAgents[j].score
	})

	if limit <= 0 || limit > len(scoredAgents) {
		limit = len(scoredAgents)
	}
	result := make([]*domain.Agent, 0, limit)
	for i := 0; i < limit; i++ {
		result = append(result, scoredAgents[i].agent)
	}
	return result, nil
}

// Register inserts or replaces an agent record.
func (s *Store) Register(ctx context.Context, agent *domain.Agent) error {
	row, err := agentToRow(agent)
	if err != nil {
		return apperrors.RegistryError("encode agent", err)
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO agents (id, name, description, version, url, port, owner_id, status, mode, spawn_config, created_at)
		VALUES (:id, :name, :description, :version, :url, :port, :owner_id, :status, :mode, :spawn_config, :created_at)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, description=excluded.description, version=excluded.version,
			url=excluded.url, port=excluded.port, owner_id=excluded.owner_id,
			status=excluded.status, mode=excluded.mode, spawn_config=excluded.spawn_config
	`, row)
	if err != nil {
		return apperrors.RegistryConnectionError(err)
	}
	return nil
}

// Unregister deletes the agent with the given id.
func (s *Store) Unregister(ctx context.Context, agentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, agentID)
	if err != nil {
		return apperrors.RegistryConnectionError(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperrors.AgentNotRegistered(agentID)
	}
	return nil
}

func rowsToAgents(rows []agentRow) ([]*domain.Agent, error) {
	agents := make([]*domain.Agent, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toAgent()
		if err != nil {
			return nil, apperrors.RegistryError("decode agent row", err)
		}
		agents = append(agents, a)
	}
	return agents, nil
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(s)) {
		tokens[field] = true
	}
	return tokens
}

func overlap(a, b map[string]bool) int {
	count := 0
	for token := range a {
		if b[token] {
			count++
		}
	}
	return count
}
