package model

import "fmt"

// EventMeta carries the chain coordinates shared by every decoded event.
// (TxHash, LogIndex) is the natural key used for duplicate detection.
type EventMeta struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Timestamp   uint64 `json:"timestamp"`
}

// Meta returns the event coordinates. Embedding EventMeta makes a
// struct satisfy Event.
func (m EventMeta) Meta() EventMeta { return m }

// Event is the closed set of decoded contract events. The processor
// matches concrete types exhaustively; adding a variant is a
// compile-visible change.
type Event interface {
	Meta() EventMeta
}

// PollCreated is emitted once when a poll is registered on-chain.
type PollCreated struct {
	EventMeta
	PollID  uint64           `json:"poll_id"`
	Creator string           `json:"creator"`
	Mode    DistributionMode `json:"mode"`
}

// PollFunded is emitted when reward funds are deposited into a poll.
type PollFunded struct {
	EventMeta
	PollID uint64 `json:"poll_id"`
	Funder string `json:"funder"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// Voted is emitted once per cast vote.
type Voted struct {
	EventMeta
	PollID uint64 `json:"poll_id"`
	Voter  string `json:"voter"`
	Option string `json:"option"`
}

// DistributionModeSet is emitted when the poll creator changes how
// rewards are paid out.
type DistributionModeSet struct {
	EventMeta
	PollID uint64           `json:"poll_id"`
	Mode   DistributionMode `json:"mode"`
}

// RewardDistributed is emitted when the contract pushes a reward to a
// recipient.
type RewardDistributed struct {
	EventMeta
	PollID    uint64 `json:"poll_id"`
	Recipient string `json:"recipient"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
}

// RewardClaimed is emitted when a recipient pulls a pending reward.
type RewardClaimed struct {
	EventMeta
	PollID    uint64 `json:"poll_id"`
	Recipient string `json:"recipient"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
}

// FundsWithdrawn is emitted when unclaimed funds are returned to the
// poll creator.
type FundsWithdrawn struct {
	EventMeta
	PollID    uint64 `json:"poll_id"`
	Recipient string `json:"recipient"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
}

// DistributionMode is the poll's payout mode as stored on-chain.
type DistributionMode string

const (
	ModeManualPull DistributionMode = "MANUAL_PULL"
	ModeManualPush DistributionMode = "MANUAL_PUSH"
	ModeAutomated  DistributionMode = "AUTOMATED"
)

// DistributionModeFromChain maps the contract's uint8 encoding.
func DistributionModeFromChain(v uint8) (DistributionMode, error) {
	switch v {
	case 0:
		return ModeManualPull, nil
	case 1:
		return ModeManualPush, nil
	case 2:
		return ModeAutomated, nil
	default:
		return "", fmt.Errorf("unknown distribution mode: %d", v)
	}
}
