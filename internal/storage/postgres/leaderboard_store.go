package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pollScope/internal/model"
	"pollScope/internal/storage"
)

// LeaderboardStore implements storage.LeaderboardStore using PostgreSQL.
// Increments are plain upsert arithmetic; the processor only calls them
// when the gating insert reported a new row, which keeps the aggregates
// replay-safe.
type LeaderboardStore struct {
	db Querier
}

// NewLeaderboardStore creates a new LeaderboardStore.
func NewLeaderboardStore(db Querier) *LeaderboardStore {
	return &LeaderboardStore{db: db}
}

var _ storage.LeaderboardStore = (*LeaderboardStore)(nil)

// AddRewards accumulates amount into the address's total_rewards.
func (s *LeaderboardStore) AddRewards(ctx context.Context, address string, amount string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO leaderboard (address, total_rewards, total_votes, polls_participated, polls_created, last_updated)
		VALUES ($1, $2::numeric, 0, 0, 0, now())
		ON CONFLICT (address) DO UPDATE
		SET total_rewards = leaderboard.total_rewards + EXCLUDED.total_rewards, last_updated = now()
	`, address, amount)
	if err != nil {
		return fmt.Errorf("add rewards: %w", err)
	}
	return nil
}

// IncrementVotes adds one to the address's total_votes.
func (s *LeaderboardStore) IncrementVotes(ctx context.Context, address string) error {
	return s.incrementCounter(ctx, address, "total_votes")
}

// IncrementPollsParticipated adds one to the address's polls_participated.
func (s *LeaderboardStore) IncrementPollsParticipated(ctx context.Context, address string) error {
	return s.incrementCounter(ctx, address, "polls_participated")
}

// IncrementPollsCreated adds one to the address's polls_created.
func (s *LeaderboardStore) IncrementPollsCreated(ctx context.Context, address string) error {
	return s.incrementCounter(ctx, address, "polls_created")
}

func (s *LeaderboardStore) incrementCounter(ctx context.Context, address, column string) error {
	// column comes from a fixed caller set, never from input.
	ensure := `
		INSERT INTO leaderboard (address, total_rewards, total_votes, polls_participated, polls_created, last_updated)
		VALUES ($1, 0, 0, 0, 0, now())
		ON CONFLICT (address) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, ensure, address); err != nil {
		return fmt.Errorf("ensure leaderboard row: %w", err)
	}

	update := fmt.Sprintf(`
		UPDATE leaderboard SET %s = %s + 1, last_updated = now() WHERE address = $1
	`, column, column)
	if _, err := s.db.Exec(ctx, update, address); err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

// Get returns the entry for an address or storage.ErrNotFound.
func (s *LeaderboardStore) Get(ctx context.Context, address string) (*model.LeaderboardEntry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT address, total_rewards::text, total_votes, polls_participated, polls_created, last_updated
		FROM leaderboard
		WHERE address = $1
	`, address)

	var e model.LeaderboardEntry
	err := row.Scan(&e.Address, &e.TotalRewards, &e.TotalVotes, &e.PollsParticipated, &e.PollsCreated, &e.LastUpdated)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get leaderboard entry: %w", err)
	}
	return &e, nil
}

// TopByRewards returns the highest-earning addresses.
func (s *LeaderboardStore) TopByRewards(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT address, total_rewards::text, total_votes, polls_participated, polls_created, last_updated
		FROM leaderboard
		ORDER BY total_rewards DESC, address ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top by rewards: %w", err)
	}
	defer rows.Close()

	return scanLeaderboardEntries(rows)
}

func scanLeaderboardEntries(rows pgx.Rows) ([]*model.LeaderboardEntry, error) {
	var entries []*model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		err := rows.Scan(&e.Address, &e.TotalRewards, &e.TotalVotes, &e.PollsParticipated, &e.PollsCreated, &e.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard rows: %w", err)
	}
	return entries, nil
}
