package model

// Vote is one append-only row per Voted occurrence, unique on
// (tx_hash, log_index). It gates the leaderboard vote counters.
type Vote struct {
	ChainID     uint64 `json:"chain_id"`
	PollID      uint64 `json:"poll_id"`
	Voter       string `json:"voter"`
	Option      string `json:"option"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   uint64 `json:"timestamp"`
}
