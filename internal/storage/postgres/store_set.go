package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"pollScope/internal/storage"
)

// StoreSet builds the projection stores over one pool and runs units
// of work in a single transaction.
type StoreSet struct {
	pool *Pool
}

// NewStoreSet creates a StoreSet.
func NewStoreSet(pool *Pool) *StoreSet {
	return &StoreSet{pool: pool}
}

var _ storage.TxRunner = (*StoreSet)(nil)

// Stores returns pool-backed stores for standalone reads.
func (s *StoreSet) Stores() storage.Stores {
	return storesFrom(s.pool)
}

// InTx runs fn with transaction-bound stores. An error from fn rolls
// the whole unit back.
func (s *StoreSet) InTx(ctx context.Context, fn func(storage.Stores) error) error {
	return pgx.BeginFunc(ctx, s.pool.Pool, func(tx pgx.Tx) error {
		return fn(storesFrom(tx))
	})
}

func storesFrom(db Querier) storage.Stores {
	return storage.Stores{
		Polls:       NewPollStore(db),
		Fundings:    NewFundingStore(db),
		Ledger:      NewDistributionLogStore(db),
		Votes:       NewVoteStore(db),
		Leaderboard: NewLeaderboardStore(db),
	}
}
