package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pollScope/internal/model"
	"pollScope/internal/storage"
)

// DistributionLogStore implements storage.DistributionLogStore using
// PostgreSQL.
type DistributionLogStore struct {
	db Querier
}

// NewDistributionLogStore creates a new DistributionLogStore.
func NewDistributionLogStore(db Querier) *DistributionLogStore {
	return &DistributionLogStore{db: db}
}

var _ storage.DistributionLogStore = (*DistributionLogStore)(nil)

// Insert appends a ledger row. Returns false when the (tx_hash,
// log_index) key was already recorded.
func (s *DistributionLogStore) Insert(ctx context.Context, entry *model.DistributionLog) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO distribution_logs (
			chain_id, poll_id, recipient, amount, token, tx_hash, log_index, event_type, block_number, block_timestamp
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`,
		int64(entry.ChainID),
		int64(entry.PollID),
		entry.Recipient,
		entry.Amount,
		entry.Token,
		entry.TxHash,
		int64(entry.LogIndex),
		string(entry.EventType),
		int64(entry.BlockNumber),
		int64(entry.Timestamp),
	)
	if err != nil {
		return false, fmt.Errorf("insert distribution log: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByPoll returns the poll's ledger rows in chain order.
func (s *DistributionLogStore) ListByPoll(ctx context.Context, chainID, pollID uint64) ([]*model.DistributionLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT chain_id, poll_id, recipient, amount::text, token, tx_hash, log_index, event_type, block_number, block_timestamp
		FROM distribution_logs
		WHERE chain_id = $1 AND poll_id = $2
		ORDER BY block_number ASC, log_index ASC
	`, int64(chainID), int64(pollID))
	if err != nil {
		return nil, fmt.Errorf("list distribution logs: %w", err)
	}
	defer rows.Close()

	return scanDistributionLogs(rows)
}

func scanDistributionLogs(rows pgx.Rows) ([]*model.DistributionLog, error) {
	var entries []*model.DistributionLog

	for rows.Next() {
		var e model.DistributionLog
		var chainID, pollID, logIndex, blockNumber, blockTimestamp int64
		var eventType string

		err := rows.Scan(
			&chainID,
			&pollID,
			&e.Recipient,
			&e.Amount,
			&e.Token,
			&e.TxHash,
			&logIndex,
			&eventType,
			&blockNumber,
			&blockTimestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan distribution log row: %w", err)
		}

		e.ChainID = uint64(chainID)
		e.PollID = uint64(pollID)
		e.LogIndex = uint64(logIndex)
		e.EventType = model.LedgerEventType(eventType)
		e.BlockNumber = uint64(blockNumber)
		e.Timestamp = uint64(blockTimestamp)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution log rows: %w", err)
	}

	return entries, nil
}
