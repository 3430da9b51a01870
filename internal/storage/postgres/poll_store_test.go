package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pollScope/internal/model"
	"pollScope/internal/storage"
)

func TestPollStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPollStore(pool)

	poll := &model.Poll{
		ChainID:        56,
		PollID:         1,
		Creator:        "0xAa00000000000000000000000000000000000001",
		Mode:           model.ModeManualPull,
		FirstSeenBlock: 100,
	}

	t.Run("insert reports created", func(t *testing.T) {
		created, err := store.Insert(ctx, poll)
		require.NoError(t, err)
		require.True(t, created)

		created, err = store.Insert(ctx, poll)
		require.NoError(t, err)
		require.False(t, created)
	})

	t.Run("get", func(t *testing.T) {
		got, err := store.Get(ctx, 56, 1)
		require.NoError(t, err)
		require.Equal(t, poll.Creator, got.Creator)
		require.Equal(t, model.ModeManualPull, got.Mode)
		require.Equal(t, "0", got.TotalFunded)
		require.Equal(t, uint64(100), got.FirstSeenBlock)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, 56, 999)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set distribution mode", func(t *testing.T) {
		updated, err := store.SetDistributionMode(ctx, 56, 1, model.ModeAutomated)
		require.NoError(t, err)
		require.True(t, updated)

		got, err := store.Get(ctx, 56, 1)
		require.NoError(t, err)
		require.Equal(t, model.ModeAutomated, got.Mode)

		updated, err = store.SetDistributionMode(ctx, 56, 999, model.ModeManualPush)
		require.NoError(t, err)
		require.False(t, updated)
	})

	t.Run("add funding accumulates", func(t *testing.T) {
		require.NoError(t, store.AddFunding(ctx, 56, 1, "1000"))
		require.NoError(t, store.AddFunding(ctx, 56, 1, "250"))

		got, err := store.Get(ctx, 56, 1)
		require.NoError(t, err)
		require.Equal(t, "1250", got.TotalFunded)
	})

	t.Run("add funding handles uint256 scale", func(t *testing.T) {
		// 2^255, far past int64.
		big := "57896044618658097711785492504343953926634992332820282019728792003956564819968"
		require.NoError(t, store.AddFunding(ctx, 56, 1, big))

		got, err := store.Get(ctx, 56, 1)
		require.NoError(t, err)
		require.Equal(t, "57896044618658097711785492504343953926634992332820282019728792003956564821218", got.TotalFunded)
	})
}
