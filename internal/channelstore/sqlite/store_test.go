package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lunarr-ai/a4s/internal/common/errors"
	"github.com/lunarr-ai/a4s/internal/domain"
)

func setupChannelStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testChannel(id, name string, agentIDs ...string) *domain.Channel {
	now := time.Now().UTC()
	return &domain.Channel{
		ID:        id,
		Name:      name,
		AgentIDs:  agentIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateThenGet(t *testing.T) {
	store := setupChannelStore(t)
	ctx := context.Background()

	ch := testChannel("c1", "general", "p1", "p2")
	require.NoError(t, store.Create(ctx, ch))

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "general", got.Name)
	assert.ElementsMatch(t, []string{"p1", "p2"}, got.AgentIDs)
}

func TestGetUnknownChannelReturnsNotFound(t *testing.T) {
	store := setupChannelStore(t)
	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "CHANNEL_NOT_FOUND"))
}

func TestUpdateChangesNameAndDescription(t *testing.T) {
	store := setupChannelStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, testChannel("c1", "old-name")))

	updated, err := store.Update(ctx, "c1", "new-name", "new description")
	require.NoError(t, err)
	assert.Equal(t, "new-name", updated.Name)
	assert.Equal(t, "new description", updated.Description)

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "new-name", got.Name)
}

func TestAddAgentsIsIdempotentSet(t *testing.T) {
	store := setupChannelStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, testChannel("c1", "general", "p1")))

	updated, err := store.AddAgents(ctx, "c1", []string{"p1", "p2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, updated.AgentIDs)
}

func TestRemoveAgents(t *testing.T) {
	store := setupChannelStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, testChannel("c1", "general", "p1", "p2", "p3")))

	updated, err := store.RemoveAgents(ctx, "c1", []string{"p2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p3"}, updated.AgentIDs)
}

func TestListOrdersByCreation(t *testing.T) {
	store := setupChannelStore(t)
	ctx := context.Background()

	for i, id := range []string{"c1", "c2", "c3"} {
		ch := testChannel(id, id)
		ch.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Create(ctx, ch))
	}

	all, err := store.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c1", all[0].ID)
	assert.Equal(t, "c3", all[2].ID)
}

func TestDeleteRemovesChannel(t *testing.T) {
	store := setupChannelStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, testChannel("c1", "general")))

	require.NoError(t, store.Delete(ctx, "c1"))

	_, err := store.Get(ctx, "c1")
	require.Error(t, err)
}

func TestDeleteUnknownChannelReturnsNotFound(t *testing.T) {
	store := setupChannelStore(t)
	err := store.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "CHANNEL_NOT_FOUND"))
}
