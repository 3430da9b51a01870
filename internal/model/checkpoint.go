package model

import "time"

// Checkpoint marks the last block whose events are fully applied for a
// chain. It never decreases and is advanced only after the block's
// mutations have committed.
type Checkpoint struct {
	ChainID         uint64    `json:"chain_id"`
	LastBlockNumber uint64    `json:"last_block_number"`
	LastProcessedAt time.Time `json:"last_processed_at"`
}
