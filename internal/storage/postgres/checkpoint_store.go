package postgres

import (
	"context"
	"fmt"

	"pollScope/internal/model"
	"pollScope/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL,
// one row per chain.
type CheckpointStore struct {
	db Querier
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(db Querier) *CheckpointStore {
	return &CheckpointStore{db: db}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Load returns the stored height for a chain, with ok=false on first run.
func (s *CheckpointStore) Load(ctx context.Context, chainID uint64) (uint64, bool, error) {
	var height int64
	row := s.db.QueryRow(ctx, `
		SELECT last_block_number FROM checkpoints WHERE chain_id = $1
	`, int64(chainID))
	if err := row.Scan(&height); err != nil {
		if isNotFoundError(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load checkpoint: %w", err)
	}
	return uint64(height), true, nil
}

// Initialize seeds the checkpoint row. A concurrent or repeated seed is
// a no-op; the stored value wins.
func (s *CheckpointStore) Initialize(ctx context.Context, chainID uint64, height uint64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO checkpoints (chain_id, last_block_number, last_processed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chain_id) DO NOTHING
	`, int64(chainID), int64(height))
	if err != nil {
		return fmt.Errorf("initialize checkpoint: %w", err)
	}
	return nil
}

// List returns every stored checkpoint, for operational inspection.
func (s *CheckpointStore) List(ctx context.Context) ([]model.Checkpoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT chain_id, last_block_number, last_processed_at
		FROM checkpoints
		ORDER BY chain_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []model.Checkpoint
	for rows.Next() {
		var cp model.Checkpoint
		var chainID, height int64
		if err := rows.Scan(&chainID, &height, &cp.LastProcessedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		cp.ChainID = uint64(chainID)
		cp.LastBlockNumber = uint64(height)
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint rows: %w", err)
	}
	return checkpoints, nil
}

// Advance moves the checkpoint forward. The update is conditional on
// the new height being strictly greater, so a replayed block (equal
// height) is a no-op and a regression is detected and surfaced.
func (s *CheckpointStore) Advance(ctx context.Context, chainID uint64, height uint64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE checkpoints
		SET last_block_number = $2, last_processed_at = now()
		WHERE chain_id = $1 AND last_block_number < $2
	`, int64(chainID), int64(height))
	if err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, ok, err := s.Load(ctx, chainID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("advance checkpoint: chain %d not initialized", chainID)
	}
	if height < current {
		return fmt.Errorf("%w: chain %d at %d, attempted %d",
			storage.ErrCheckpointRegression, chainID, current, height)
	}
	// Equal height: the block was already accounted for.
	return nil
}
