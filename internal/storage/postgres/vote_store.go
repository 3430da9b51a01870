package postgres

import (
	"context"
	"fmt"

	"pollScope/internal/model"
	"pollScope/internal/storage"
)

// VoteStore implements storage.VoteStore using PostgreSQL.
type VoteStore struct {
	db Querier
}

// NewVoteStore creates a new VoteStore.
func NewVoteStore(db Querier) *VoteStore {
	return &VoteStore{db: db}
}

var _ storage.VoteStore = (*VoteStore)(nil)

// Insert appends a vote row. Returns false when the (tx_hash,
// log_index) key was already recorded.
func (s *VoteStore) Insert(ctx context.Context, vote *model.Vote) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO votes (
			chain_id, poll_id, voter, option, tx_hash, log_index, block_number, block_timestamp
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`,
		int64(vote.ChainID),
		int64(vote.PollID),
		vote.Voter,
		vote.Option,
		vote.TxHash,
		int64(vote.LogIndex),
		int64(vote.BlockNumber),
		int64(vote.Timestamp),
	)
	if err != nil {
		return false, fmt.Errorf("insert vote: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountByVoter returns how many votes the voter has recorded for the poll.
func (s *VoteStore) CountByVoter(ctx context.Context, chainID, pollID uint64, voter string) (int64, error) {
	var count int64
	row := s.db.QueryRow(ctx, `
		SELECT count(*) FROM votes
		WHERE chain_id = $1 AND poll_id = $2 AND voter = $3
	`, int64(chainID), int64(pollID), voter)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count votes by voter: %w", err)
	}
	return count, nil
}
