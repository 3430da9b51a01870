package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"pollScope/internal/model"
)

type eventKind int

const (
	kindPollCreated eventKind = iota
	kindPollFunded
	kindVoted
	kindDistributionModeSet
	kindRewardDistributed
	kindRewardClaimed
	kindFundsWithdrawn
)

// Decoder maps raw contract logs to typed events. It is pure: no RPC,
// no state beyond the parsed ABI.
type Decoder struct {
	abi         abi.ABI
	topicToKind map[common.Hash]eventKind
}

// NewDecoder builds a decoder for the poll-voting contract.
func NewDecoder() (*Decoder, error) {
	votingABI, err := VotingABI()
	if err != nil {
		return nil, err
	}

	topicToKind := map[common.Hash]eventKind{
		votingABI.Events["PollCreated"].ID:         kindPollCreated,
		votingABI.Events["PollFunded"].ID:          kindPollFunded,
		votingABI.Events["Voted"].ID:               kindVoted,
		votingABI.Events["DistributionModeSet"].ID: kindDistributionModeSet,
		votingABI.Events["RewardDistributed"].ID:   kindRewardDistributed,
		votingABI.Events["RewardClaimed"].ID:       kindRewardClaimed,
		votingABI.Events["FundsWithdrawn"].ID:      kindFundsWithdrawn,
	}

	return &Decoder{
		abi:         votingABI,
		topicToKind: topicToKind,
	}, nil
}

// Topics returns the topic0 filter covering every decodable event.
func (d *Decoder) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(d.topicToKind))
	for topic := range d.topicToKind {
		topics = append(topics, topic)
	}
	return topics
}

// CanDecode checks whether the topic0 is a known event signature.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.topicToKind[topic0]
	return ok
}

// Decode converts a raw log into one of the typed event variants.
func (d *Decoder) Decode(lg types.Log, chainID uint64, timestamp uint64) (model.Event, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	kind, ok := d.topicToKind[lg.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", lg.Topics[0].Hex())
	}

	meta := model.EventMeta{
		ChainID:     chainID,
		BlockNumber: lg.BlockNumber,
		BlockHash:   lg.BlockHash.Hex(),
		TxHash:      lg.TxHash.Hex(),
		LogIndex:    uint64(lg.Index),
		Address:     lg.Address.Hex(),
		Timestamp:   timestamp,
	}

	switch kind {
	case kindPollCreated:
		return d.decodePollCreated(lg, meta)
	case kindPollFunded:
		return d.decodePollFunded(lg, meta)
	case kindVoted:
		return d.decodeVoted(lg, meta)
	case kindDistributionModeSet:
		return d.decodeDistributionModeSet(lg, meta)
	case kindRewardDistributed:
		ev, err := d.decodePayout(lg, meta, "RewardDistributed")
		if err != nil {
			return nil, err
		}
		return &model.RewardDistributed{EventMeta: meta, PollID: ev.pollID, Recipient: ev.recipient, Token: ev.token, Amount: ev.amount}, nil
	case kindRewardClaimed:
		ev, err := d.decodePayout(lg, meta, "RewardClaimed")
		if err != nil {
			return nil, err
		}
		return &model.RewardClaimed{EventMeta: meta, PollID: ev.pollID, Recipient: ev.recipient, Token: ev.token, Amount: ev.amount}, nil
	case kindFundsWithdrawn:
		ev, err := d.decodePayout(lg, meta, "FundsWithdrawn")
		if err != nil {
			return nil, err
		}
		return &model.FundsWithdrawn{EventMeta: meta, PollID: ev.pollID, Recipient: ev.recipient, Token: ev.token, Amount: ev.amount}, nil
	default:
		return nil, fmt.Errorf("unhandled event kind: %d", kind)
	}
}

func (d *Decoder) decodePollCreated(lg types.Log, meta model.EventMeta) (model.Event, error) {
	event := d.abi.Events["PollCreated"]

	var indexed struct {
		PollId  *big.Int
		Creator common.Address
	}
	if err := parseIndexed(event, lg.Topics, &indexed); err != nil {
		return nil, err
	}
	pollID, err := pollIDFromBig(indexed.PollId)
	if err != nil {
		return nil, err
	}

	values, err := unpackNonIndexed(event, lg.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected PollCreated values: %d", len(values))
	}
	modeRaw, err := asUint8(values[0])
	if err != nil {
		return nil, err
	}
	mode, err := model.DistributionModeFromChain(modeRaw)
	if err != nil {
		return nil, err
	}

	return &model.PollCreated{
		EventMeta: meta,
		PollID:    pollID,
		Creator:   indexed.Creator.Hex(),
		Mode:      mode,
	}, nil
}

func (d *Decoder) decodePollFunded(lg types.Log, meta model.EventMeta) (model.Event, error) {
	event := d.abi.Events["PollFunded"]

	var indexed struct {
		PollId *big.Int
		Funder common.Address
	}
	if err := parseIndexed(event, lg.Topics, &indexed); err != nil {
		return nil, err
	}
	pollID, err := pollIDFromBig(indexed.PollId)
	if err != nil {
		return nil, err
	}

	values, err := unpackNonIndexed(event, lg.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected PollFunded values: %d", len(values))
	}
	token, err := asAddress(values[0])
	if err != nil {
		return nil, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}

	return &model.PollFunded{
		EventMeta: meta,
		PollID:    pollID,
		Funder:    indexed.Funder.Hex(),
		Token:     token.Hex(),
		Amount:    amount.String(),
	}, nil
}

func (d *Decoder) decodeVoted(lg types.Log, meta model.EventMeta) (model.Event, error) {
	event := d.abi.Events["Voted"]

	var indexed struct {
		PollId *big.Int
		Voter  common.Address
	}
	if err := parseIndexed(event, lg.Topics, &indexed); err != nil {
		return nil, err
	}
	pollID, err := pollIDFromBig(indexed.PollId)
	if err != nil {
		return nil, err
	}

	values, err := unpackNonIndexed(event, lg.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected Voted values: %d", len(values))
	}
	option, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}

	return &model.Voted{
		EventMeta: meta,
		PollID:    pollID,
		Voter:     indexed.Voter.Hex(),
		Option:    option.String(),
	}, nil
}

func (d *Decoder) decodeDistributionModeSet(lg types.Log, meta model.EventMeta) (model.Event, error) {
	event := d.abi.Events["DistributionModeSet"]

	var indexed struct {
		PollId *big.Int
	}
	if err := parseIndexed(event, lg.Topics, &indexed); err != nil {
		return nil, err
	}
	pollID, err := pollIDFromBig(indexed.PollId)
	if err != nil {
		return nil, err
	}

	values, err := unpackNonIndexed(event, lg.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected DistributionModeSet values: %d", len(values))
	}
	modeRaw, err := asUint8(values[0])
	if err != nil {
		return nil, err
	}
	mode, err := model.DistributionModeFromChain(modeRaw)
	if err != nil {
		return nil, err
	}

	return &model.DistributionModeSet{
		EventMeta: meta,
		PollID:    pollID,
		Mode:      mode,
	}, nil
}

// payoutFields are shared by the three ledger-producing events, which
// carry identical ABI signatures.
type payoutFields struct {
	pollID    uint64
	recipient string
	token     string
	amount    string
}

func (d *Decoder) decodePayout(lg types.Log, meta model.EventMeta, name string) (payoutFields, error) {
	event := d.abi.Events[name]

	var indexed struct {
		PollId    *big.Int
		Recipient common.Address
	}
	if err := parseIndexed(event, lg.Topics, &indexed); err != nil {
		return payoutFields{}, err
	}
	pollID, err := pollIDFromBig(indexed.PollId)
	if err != nil {
		return payoutFields{}, err
	}

	values, err := unpackNonIndexed(event, lg.Data)
	if err != nil {
		return payoutFields{}, err
	}
	if len(values) != 2 {
		return payoutFields{}, fmt.Errorf("unexpected %s values: %d", name, len(values))
	}
	token, err := asAddress(values[0])
	if err != nil {
		return payoutFields{}, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return payoutFields{}, err
	}

	return payoutFields{
		pollID:    pollID,
		recipient: indexed.Recipient.Hex(),
		token:     token.Hex(),
		amount:    amount.String(),
	}, nil
}

func parseIndexed(event abi.Event, topics []common.Hash, out interface{}) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(topics))
	}
	if err := abi.ParseTopics(out, indexed, topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func pollIDFromBig(v *big.Int) (uint64, error) {
	if v == nil {
		return 0, fmt.Errorf("poll id is nil")
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("poll id does not fit in uint64: %s", v)
	}
	return v.Uint64(), nil
}

func asBigInt(v interface{}) (*big.Int, error) {
	value, ok := v.(*big.Int)
	if !ok || value == nil {
		return nil, fmt.Errorf("expected *big.Int, got %T", v)
	}
	return value, nil
}

func asAddress(v interface{}) (common.Address, error) {
	value, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("expected address, got %T", v)
	}
	return value, nil
}

func asUint8(v interface{}) (uint8, error) {
	value, ok := v.(uint8)
	if !ok {
		return 0, fmt.Errorf("expected uint8, got %T", v)
	}
	return value, nil
}
