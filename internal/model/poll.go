package model

// Poll is the projected poll record. One row per (chain_id, poll_id),
// created on first observation and never deleted.
type Poll struct {
	ChainID        uint64           `json:"chain_id"`
	PollID         uint64           `json:"poll_id"`
	Creator        string           `json:"creator"`
	Mode           DistributionMode `json:"mode"`
	TotalFunded    string           `json:"total_funded"`
	FirstSeenBlock uint64           `json:"first_seen_block"`
}
