package model

// LedgerEventType classifies a distribution ledger row.
type LedgerEventType string

const (
	LedgerDistributed LedgerEventType = "distributed"
	LedgerClaimed     LedgerEventType = "claimed"
	LedgerWithdrawn   LedgerEventType = "withdrawn"
)

// DistributionLog is one immutable ledger row per on-chain payout
// occurrence, unique on (tx_hash, log_index).
type DistributionLog struct {
	ChainID     uint64          `json:"chain_id"`
	PollID      uint64          `json:"poll_id"`
	Recipient   string          `json:"recipient"`
	Amount      string          `json:"amount"`
	Token       string          `json:"token"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	EventType   LedgerEventType `json:"event_type"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   uint64          `json:"timestamp"`
}

// Funding is one append-only row per PollFunded occurrence, unique on
// (tx_hash, log_index). It gates the poll's total_funded accumulator.
type Funding struct {
	ChainID     uint64 `json:"chain_id"`
	PollID      uint64 `json:"poll_id"`
	Funder      string `json:"funder"`
	Token       string `json:"token"`
	Amount      string `json:"amount"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   uint64 `json:"timestamp"`
}
