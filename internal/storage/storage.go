// Package storage defines the persistence contracts for the projection
// tables and the per-chain checkpoint. The event processor is the sole
// writer of every entity here; query-side consumers only read.
package storage

import (
	"context"
	"errors"

	"pollScope/internal/model"
)

var (
	// ErrCheckpointRegression indicates an attempt to move a checkpoint
	// backwards. Fatal for the chain's processing loop.
	ErrCheckpointRegression = errors.New("checkpoint regression")

	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// CheckpointStore persists the last fully-applied block per chain.
type CheckpointStore interface {
	// Load returns the stored height, with ok=false on first run.
	Load(ctx context.Context, chainID uint64) (uint64, bool, error)

	// Initialize seeds the checkpoint for a chain that has none. Seeding
	// to the current head (not genesis) bounds the initial backfill.
	Initialize(ctx context.Context, chainID uint64, height uint64) error

	// Advance moves the checkpoint forward. Equal height is a no-op;
	// a lower height returns ErrCheckpointRegression.
	Advance(ctx context.Context, chainID uint64, height uint64) error
}

// PollStore holds the poll projection.
type PollStore interface {
	// Insert creates the poll keyed by (chain_id, poll_id). Returns
	// false when the poll already exists.
	Insert(ctx context.Context, poll *model.Poll) (bool, error)

	// SetDistributionMode overwrites the poll's payout mode. Returns
	// false when no such poll exists.
	SetDistributionMode(ctx context.Context, chainID, pollID uint64, mode model.DistributionMode) (bool, error)

	// AddFunding accumulates amount into the poll's total_funded. Must
	// only be called when the gating funding insert reported creation.
	AddFunding(ctx context.Context, chainID, pollID uint64, amount string) error

	Get(ctx context.Context, chainID, pollID uint64) (*model.Poll, error)
}

// FundingStore is the append-only record of PollFunded occurrences.
type FundingStore interface {
	// Insert appends a funding row. Returns false when the
	// (tx_hash, log_index) key was already recorded.
	Insert(ctx context.Context, funding *model.Funding) (bool, error)
}

// DistributionLogStore is the append-only payout audit trail.
type DistributionLogStore interface {
	// Insert appends a ledger row. Returns false when the
	// (tx_hash, log_index) key was already recorded.
	Insert(ctx context.Context, entry *model.DistributionLog) (bool, error)

	ListByPoll(ctx context.Context, chainID, pollID uint64) ([]*model.DistributionLog, error)
}

// VoteStore is the append-only record of cast votes.
type VoteStore interface {
	// Insert appends a vote row. Returns false when the
	// (tx_hash, log_index) key was already recorded.
	Insert(ctx context.Context, vote *model.Vote) (bool, error)

	// CountByVoter returns how many votes the voter has recorded for
	// the poll. A count of 1 right after a fresh insert marks the
	// voter's first participation in that poll.
	CountByVoter(ctx context.Context, chainID, pollID uint64, voter string) (int64, error)
}

// LeaderboardStore holds the per-address aggregates. Every increment
// here is gated by an insert that reported creation, so the upsert
// arithmetic itself can stay unconditional.
type LeaderboardStore interface {
	AddRewards(ctx context.Context, address string, amount string) error
	IncrementVotes(ctx context.Context, address string) error
	IncrementPollsParticipated(ctx context.Context, address string) error
	IncrementPollsCreated(ctx context.Context, address string) error

	Get(ctx context.Context, address string) (*model.LeaderboardEntry, error)
	TopByRewards(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error)
}

// Stores bundles the projection stores one unit of work can touch.
type Stores struct {
	Polls       PollStore
	Fundings    FundingStore
	Ledger      DistributionLogStore
	Votes       VoteStore
	Leaderboard LeaderboardStore
}

// TxRunner executes fn against the stores as one atomic unit. An error
// from fn rolls back every mutation made through the passed stores, so
// a gating insert and its dependent increments commit together or not
// at all.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}
