package postgres

import (
	"context"
	"fmt"

	"pollScope/internal/model"
	"pollScope/internal/storage"
)

// PollStore implements storage.PollStore using PostgreSQL.
type PollStore struct {
	db Querier
}

// NewPollStore creates a new PollStore.
func NewPollStore(db Querier) *PollStore {
	return &PollStore{db: db}
}

var _ storage.PollStore = (*PollStore)(nil)

// Insert creates the poll keyed by (chain_id, poll_id). Returns false
// when the poll already exists.
func (s *PollStore) Insert(ctx context.Context, poll *model.Poll) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO polls (
			chain_id, poll_id, creator, distribution_mode, total_funded, first_seen_block, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 0, $5, now(), now())
		ON CONFLICT (chain_id, poll_id) DO NOTHING
	`,
		int64(poll.ChainID),
		int64(poll.PollID),
		poll.Creator,
		string(poll.Mode),
		int64(poll.FirstSeenBlock),
	)
	if err != nil {
		return false, fmt.Errorf("insert poll: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetDistributionMode overwrites the poll's payout mode. The on-chain
// value is single-valued, so re-applying the same mode is harmless.
func (s *PollStore) SetDistributionMode(ctx context.Context, chainID, pollID uint64, mode model.DistributionMode) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE polls
		SET distribution_mode = $3, updated_at = now()
		WHERE chain_id = $1 AND poll_id = $2
	`, int64(chainID), int64(pollID), string(mode))
	if err != nil {
		return false, fmt.Errorf("set distribution mode: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AddFunding accumulates amount into total_funded. Callers gate this on
// the funding row insert reporting creation.
func (s *PollStore) AddFunding(ctx context.Context, chainID, pollID uint64, amount string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE polls
		SET total_funded = total_funded + $3::numeric, updated_at = now()
		WHERE chain_id = $1 AND poll_id = $2
	`, int64(chainID), int64(pollID), amount)
	if err != nil {
		return fmt.Errorf("add funding: %w", err)
	}
	return nil
}

// Get returns the poll or storage.ErrNotFound.
func (s *PollStore) Get(ctx context.Context, chainID, pollID uint64) (*model.Poll, error) {
	var poll model.Poll
	var dbChainID, dbPollID, firstSeen int64
	var mode string

	row := s.db.QueryRow(ctx, `
		SELECT chain_id, poll_id, creator, distribution_mode, total_funded::text, first_seen_block
		FROM polls
		WHERE chain_id = $1 AND poll_id = $2
	`, int64(chainID), int64(pollID))
	err := row.Scan(&dbChainID, &dbPollID, &poll.Creator, &mode, &poll.TotalFunded, &firstSeen)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get poll: %w", err)
	}

	poll.ChainID = uint64(dbChainID)
	poll.PollID = uint64(dbPollID)
	poll.Mode = model.DistributionMode(mode)
	poll.FirstSeenBlock = uint64(firstSeen)
	return &poll, nil
}
