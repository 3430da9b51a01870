package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pollScope/internal/model"
	"pollScope/internal/storage"
	"pollScope/internal/storage/memory"
)

const (
	testChainID = uint64(56)
	alice       = "0xAa00000000000000000000000000000000000001"
	bob         = "0xBb00000000000000000000000000000000000002"
	rewardToken = "0xCc00000000000000000000000000000000000003"
)

func newTestProcessor() (*Processor, *memory.Store) {
	store := memory.New()
	return New(store.Runner(), nil), store
}

func meta(block, logIndex uint64, txHash string) model.EventMeta {
	return model.EventMeta{
		ChainID:     testChainID,
		BlockNumber: block,
		TxHash:      txHash,
		LogIndex:    logIndex,
		Timestamp:   1700000000,
	}
}

func TestApplyPollCreated(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	ev := &model.PollCreated{
		EventMeta: meta(100, 0, "0xa1"),
		PollID:    1,
		Creator:   alice,
		Mode:      model.ModeManualPull,
	}
	require.NoError(t, proc.Apply(ctx, ev))

	poll, err := store.Polls().Get(ctx, testChainID, 1)
	require.NoError(t, err)
	require.Equal(t, alice, poll.Creator)
	require.Equal(t, model.ModeManualPull, poll.Mode)
	require.Equal(t, uint64(100), poll.FirstSeenBlock)

	entry, err := store.Leaderboard().Get(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(1), entry.PollsCreated)

	// Redelivery must not double-count the creator.
	require.NoError(t, proc.Apply(ctx, ev))
	entry, err = store.Leaderboard().Get(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(1), entry.PollsCreated)
	require.Equal(t, 1, store.PollCount())
}

func TestApplyPollFundedAccumulates(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	require.NoError(t, proc.Apply(ctx, &model.PollCreated{
		EventMeta: meta(100, 0, "0xa1"),
		PollID:    1,
		Creator:   alice,
		Mode:      model.ModeManualPull,
	}))

	funded := &model.PollFunded{
		EventMeta: meta(101, 0, "0xb1"),
		PollID:    1,
		Funder:    bob,
		Token:     rewardToken,
		Amount:    "1000",
	}
	require.NoError(t, proc.Apply(ctx, funded))
	require.NoError(t, proc.Apply(ctx, &model.PollFunded{
		EventMeta: meta(102, 0, "0xb2"),
		PollID:    1,
		Funder:    bob,
		Token:     rewardToken,
		Amount:    "250",
	}))

	poll, err := store.Polls().Get(ctx, testChainID, 1)
	require.NoError(t, err)
	require.Equal(t, "1250", poll.TotalFunded)

	// Same (tx_hash, log_index) replayed: total unchanged.
	require.NoError(t, proc.Apply(ctx, funded))
	poll, err = store.Polls().Get(ctx, testChainID, 1)
	require.NoError(t, err)
	require.Equal(t, "1250", poll.TotalFunded)
}

func TestApplyVotedDuplicateDelivery(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	vote := &model.Voted{
		EventMeta: meta(200, 3, "0xc1"),
		PollID:    1,
		Voter:     bob,
		Option:    "2",
	}
	require.NoError(t, proc.Apply(ctx, vote))
	require.NoError(t, proc.Apply(ctx, vote))

	entry, err := store.Leaderboard().Get(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, int64(1), entry.TotalVotes)
	require.Equal(t, int64(1), entry.PollsParticipated)
	require.Equal(t, 1, store.VoteCount())
}

func TestApplyVotedParticipationGating(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	// Two distinct votes on the same poll: votes count twice,
	// participation once.
	require.NoError(t, proc.Apply(ctx, &model.Voted{
		EventMeta: meta(200, 0, "0xc1"), PollID: 1, Voter: bob, Option: "1",
	}))
	require.NoError(t, proc.Apply(ctx, &model.Voted{
		EventMeta: meta(201, 0, "0xc2"), PollID: 1, Voter: bob, Option: "2",
	}))

	// A vote on a different poll adds a second participation.
	require.NoError(t, proc.Apply(ctx, &model.Voted{
		EventMeta: meta(202, 0, "0xc3"), PollID: 2, Voter: bob, Option: "1",
	}))

	entry, err := store.Leaderboard().Get(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, int64(3), entry.TotalVotes)
	require.Equal(t, int64(2), entry.PollsParticipated)
}

func TestApplyDistributionModeSet(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	require.NoError(t, proc.Apply(ctx, &model.PollCreated{
		EventMeta: meta(100, 0, "0xa1"),
		PollID:    1,
		Creator:   alice,
		Mode:      model.ModeManualPull,
	}))
	require.NoError(t, proc.Apply(ctx, &model.DistributionModeSet{
		EventMeta: meta(105, 0, "0xd1"),
		PollID:    1,
		Mode:      model.ModeAutomated,
	}))

	poll, err := store.Polls().Get(ctx, testChainID, 1)
	require.NoError(t, err)
	require.Equal(t, model.ModeAutomated, poll.Mode)

	// Unknown poll is tolerated, not an error.
	require.NoError(t, proc.Apply(ctx, &model.DistributionModeSet{
		EventMeta: meta(106, 0, "0xd2"),
		PollID:    999,
		Mode:      model.ModeManualPush,
	}))
}

func TestApplyRewardDistributedIdempotent(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	reward := &model.RewardDistributed{
		EventMeta: meta(300, 5, "0xe1"),
		PollID:    1,
		Recipient: bob,
		Token:     rewardToken,
		Amount:    "100",
	}
	require.NoError(t, proc.Apply(ctx, reward))
	require.NoError(t, proc.Apply(ctx, reward))

	entry, err := store.Leaderboard().Get(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, "100", entry.TotalRewards)
	require.Equal(t, 1, store.LedgerSize())

	logs, err := store.Ledger().ListByPoll(ctx, testChainID, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, model.LedgerDistributed, logs[0].EventType)
}

func TestApplyFundsWithdrawnNoRewards(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	require.NoError(t, proc.Apply(ctx, &model.FundsWithdrawn{
		EventMeta: meta(400, 0, "0xf1"),
		PollID:    1,
		Recipient: alice,
		Token:     rewardToken,
		Amount:    "5000",
	}))

	// Ledger records the withdrawal but no rewards accrue.
	require.Equal(t, 1, store.LedgerSize())
	_, err := store.Leaderboard().Get(ctx, alice)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApplyUnknownEventType(t *testing.T) {
	proc, _ := newTestProcessor()

	err := proc.Apply(context.Background(), unknownEvent{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unhandled event type")
}

type unknownEvent struct{ model.EventMeta }

func TestApplyBlockOrdersByLogIndex(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	// PollCreated carries a higher log index but must still land before
	// the funding is folded into the poll's total.
	events := []model.Event{
		&model.PollFunded{
			EventMeta: meta(100, 2, "0xa2"),
			PollID:    1, Funder: bob, Token: rewardToken, Amount: "300",
		},
		&model.PollCreated{
			EventMeta: meta(100, 1, "0xa1"),
			PollID:    1, Creator: alice, Mode: model.ModeManualPull,
		},
	}
	require.NoError(t, proc.ApplyBlock(ctx, events))

	poll, err := store.Polls().Get(ctx, testChainID, 1)
	require.NoError(t, err)
	require.Equal(t, "300", poll.TotalFunded)
}

func TestApplyBlockContinuesPastFailure(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	events := []model.Event{
		unknownEvent{meta(100, 0, "0x01")},
		&model.Voted{
			EventMeta: meta(100, 1, "0x02"),
			PollID:    1, Voter: bob, Option: "1",
		},
	}

	err := proc.ApplyBlock(ctx, events)
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 of 2 events failed")

	// The failing event did not block the rest of the block.
	require.Equal(t, 1, store.VoteCount())
}

func TestPartialBlockReprocessing(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	block := []model.Event{
		&model.PollCreated{EventMeta: meta(100, 0, "0x01"), PollID: 1, Creator: alice, Mode: model.ModeManualPull},
		&model.PollFunded{EventMeta: meta(100, 1, "0x02"), PollID: 1, Funder: bob, Token: rewardToken, Amount: "1000"},
		&model.Voted{EventMeta: meta(100, 2, "0x03"), PollID: 1, Voter: bob, Option: "1"},
	}

	// Crash window: only the first two events landed before the
	// checkpoint advance, so restart reprocesses the whole block.
	require.NoError(t, proc.Apply(ctx, block[0]))
	require.NoError(t, proc.Apply(ctx, block[1]))

	require.NoError(t, proc.ApplyBlock(ctx, block))

	poll, err := store.Polls().Get(ctx, testChainID, 1)
	require.NoError(t, err)
	require.Equal(t, "1000", poll.TotalFunded)

	entry, err := store.Leaderboard().Get(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(1), entry.PollsCreated)

	entry, err = store.Leaderboard().Get(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, int64(1), entry.TotalVotes)
}

func TestFullReplayIsIdempotent(t *testing.T) {
	proc, store := newTestProcessor()
	ctx := context.Background()

	stream := []model.Event{
		&model.PollCreated{EventMeta: meta(100, 0, "0x01"), PollID: 1, Creator: alice, Mode: model.ModeManualPull},
		&model.PollFunded{EventMeta: meta(101, 0, "0x02"), PollID: 1, Funder: bob, Token: rewardToken, Amount: "1000"},
		&model.Voted{EventMeta: meta(102, 0, "0x03"), PollID: 1, Voter: bob, Option: "1"},
		&model.DistributionModeSet{EventMeta: meta(103, 0, "0x04"), PollID: 1, Mode: model.ModeManualPush},
		&model.RewardDistributed{EventMeta: meta(104, 0, "0x05"), PollID: 1, Recipient: bob, Token: rewardToken, Amount: "400"},
		&model.RewardClaimed{EventMeta: meta(105, 0, "0x06"), PollID: 1, Recipient: alice, Token: rewardToken, Amount: "100"},
		&model.FundsWithdrawn{EventMeta: meta(106, 0, "0x07"), PollID: 1, Recipient: alice, Token: rewardToken, Amount: "500"},
	}

	for range [2]int{} {
		for _, ev := range stream {
			require.NoError(t, proc.Apply(ctx, ev))
		}
	}

	poll, err := store.Polls().Get(ctx, testChainID, 1)
	require.NoError(t, err)
	require.Equal(t, "1000", poll.TotalFunded)
	require.Equal(t, model.ModeManualPush, poll.Mode)

	bobEntry, err := store.Leaderboard().Get(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, "400", bobEntry.TotalRewards)
	require.Equal(t, int64(1), bobEntry.TotalVotes)

	aliceEntry, err := store.Leaderboard().Get(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "100", aliceEntry.TotalRewards)
	require.Equal(t, int64(1), aliceEntry.PollsCreated)

	require.Equal(t, 3, store.LedgerSize())
}
