package postgres

import (
	"context"
	"fmt"

	"pollScope/internal/model"
	"pollScope/internal/storage"
)

// FundingStore implements storage.FundingStore using PostgreSQL.
type FundingStore struct {
	db Querier
}

// NewFundingStore creates a new FundingStore.
func NewFundingStore(db Querier) *FundingStore {
	return &FundingStore{db: db}
}

var _ storage.FundingStore = (*FundingStore)(nil)

// Insert appends a funding row. Returns false when the (tx_hash,
// log_index) key was already recorded.
func (s *FundingStore) Insert(ctx context.Context, funding *model.Funding) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO poll_fundings (
			chain_id, poll_id, funder, token, amount, tx_hash, log_index, block_number, block_timestamp
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`,
		int64(funding.ChainID),
		int64(funding.PollID),
		funding.Funder,
		funding.Token,
		funding.Amount,
		funding.TxHash,
		int64(funding.LogIndex),
		int64(funding.BlockNumber),
		int64(funding.Timestamp),
	)
	if err != nil {
		return false, fmt.Errorf("insert funding: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
